// Package wire implements the serialization codec between the in-memory
// workflow document and the wire format exchanged with the persistence and
// execution endpoints. The wire format deliberately renames fields at the
// boundary: the in-memory Kind travels as "type" and Params travel as
// "data". Port handles are prefixed "out-"/"in-" on the wire.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// Workflow is the serialized workflow exchanged with the executor.
type Workflow struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is the wire representation of a NodeRecord. Ports are not carried:
// they are re-resolved from the catalog on load.
type Node struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Label    string               `json:"label"`
	Position pocketgraph.Position `json:"position"`
	Data     *pocketgraph.Params  `json:"data"`
}

// Edge is the wire representation of an EdgeRecord.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Decode parses a serialized workflow payload.
func Decode(data []byte) (Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return Workflow{}, fmt.Errorf("decoding workflow: %w", err)
	}
	return wf, nil
}

// Encode serializes a workflow payload.
func Encode(wf Workflow) ([]byte, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encoding workflow: %w", err)
	}
	return data, nil
}

// SourceHandle renders a source port as a wire handle. Empty ports (the
// default port) stay empty.
func SourceHandle(port string) string {
	if port == "" {
		return ""
	}
	return "out-" + port
}

// TargetHandle renders a target port as a wire handle.
func TargetHandle(port string) string {
	if port == "" {
		return ""
	}
	return "in-" + port
}

// SourcePort recovers the port name from a wire source handle.
func SourcePort(handle string) string {
	return strings.TrimPrefix(handle, "out-")
}

// TargetPort recovers the port name from a wire target handle.
func TargetPort(handle string) string {
	return strings.TrimPrefix(handle, "in-")
}
