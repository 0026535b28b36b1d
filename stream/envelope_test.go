package stream

import (
	"testing"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind pocketgraph.EventKind
		wantNode string
		wantErr  string
	}{
		{
			name:     "node start",
			frame:    `{"type":"node_start","payload":{"node_id":"n1"}}`,
			wantKind: pocketgraph.EventNodeStarted,
			wantNode: "n1",
		},
		{
			name:     "node error carries detail",
			frame:    `{"type":"node_error","payload":{"node_id":"n2","error":"timeout"}}`,
			wantKind: pocketgraph.EventNodeFailed,
			wantNode: "n2",
			wantErr:  "timeout",
		},
		{
			name:     "workflow start without payload",
			frame:    `{"type":"workflow_start"}`,
			wantKind: pocketgraph.EventRunStarted,
		},
		{
			name:     "user input required",
			frame:    `{"type":"USER_INPUT_REQUIRED","payload":{"request_id":"r1"}}`,
			wantKind: pocketgraph.EventInterruptRequired,
		},
		{
			name:     "unknown tag passes through",
			frame:    `{"type":"telepathy","payload":{}}`,
			wantKind: pocketgraph.EventKind("telepathy"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := DecodeEvent([]byte(tt.frame))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", e.Kind, tt.wantKind)
			}
			if e.NodeID != tt.wantNode {
				t.Errorf("node = %q, want %q", e.NodeID, tt.wantNode)
			}
			if e.Detail != tt.wantErr {
				t.Errorf("detail = %q, want %q", e.Detail, tt.wantErr)
			}
		})
	}
}

func TestDecodeEventRejectsMalformedFrames(t *testing.T) {
	for _, frame := range []string{`not json`, `{"payload":{}}`, `{"type":""}`} {
		if _, err := DecodeEvent([]byte(frame)); err == nil {
			t.Errorf("frame %q accepted", frame)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := pocketgraph.NewEvent(pocketgraph.EventNodeFailed).
		WithNode("n3").
		WithDetail("bad input").
		WithPayload("attempt", "2")

	data, err := EncodeEvent(e)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	back, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if back.Kind != e.Kind || back.NodeID != "n3" || back.Detail != "bad input" {
		t.Errorf("round trip = %+v", back)
	}
	if back.Payload["attempt"] != "2" {
		t.Errorf("payload = %v", back.Payload)
	}
}

func TestEncodeEventRejectsUnknownKind(t *testing.T) {
	if _, err := EncodeEvent(pocketgraph.Event{Kind: "made_up"}); err == nil {
		t.Error("unknown kind encoded")
	}
}
