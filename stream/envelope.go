// Package stream implements the editor side of the execution event channel:
// JSON envelope framing and a connection manager with bounded reconnection.
// The channel carries {"type": <tag>, "payload": {...}} frames as emitted by
// the executor's broadcast hub.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// Envelope is the wire framing of one stream message.
type Envelope struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// DecodeEvent parses one frame into an Event. Unknown tags are passed
// through with their raw tag as the kind so the consumer can log and ignore
// them; only malformed JSON is an error.
func DecodeEvent(data []byte) (pocketgraph.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return pocketgraph.Event{}, fmt.Errorf("decoding stream frame: %w", err)
	}
	if env.Type == "" {
		return pocketgraph.Event{}, fmt.Errorf("stream frame missing type")
	}

	kind, known := pocketgraph.KindForTag(env.Type)
	if !known {
		kind = pocketgraph.EventKind(env.Type)
	}

	e := pocketgraph.Event{
		Kind:    kind,
		Time:    time.Now(),
		Payload: env.Payload,
	}
	if env.Payload != nil {
		if nodeID, ok := env.Payload["node_id"].(string); ok {
			e.NodeID = nodeID
		}
		if detail, ok := env.Payload["error"].(string); ok {
			e.Detail = detail
		}
	}
	return e, nil
}

// EncodeEvent renders an Event as a wire frame. Used by the reference
// server's hub and by tests.
func EncodeEvent(e pocketgraph.Event) ([]byte, error) {
	tag := e.Kind.WireTag()
	if tag == "" {
		return nil, fmt.Errorf("event kind %q has no wire tag", e.Kind)
	}

	payload := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		payload[k] = v
	}
	if e.NodeID != "" {
		payload["node_id"] = e.NodeID
	}
	if e.Detail != "" {
		payload["error"] = e.Detail
	}

	data, err := json.Marshal(Envelope{Type: tag, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encoding stream frame: %w", err)
	}
	return data, nil
}
