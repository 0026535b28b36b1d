package execution

import (
	"context"
	"errors"
	"testing"
)

// recordingSender captures submitted responses and can be told to fail.
type recordingSender struct {
	fail      error
	requestID string
	response  map[string]any
	calls     int
}

func (s *recordingSender) SubmitHumanResponse(_ context.Context, requestID string, response map[string]any) error {
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.requestID = requestID
	s.response = response
	return nil
}

func TestGateSubmitSendsValuesAndOutcome(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(sender, nil)
	g.Set(InterruptRequest{RequestID: "req-1", Prompt: "Name?"})

	err := g.Submit(context.Background(), map[string]any{"name": "ada"}, true)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sender.requestID != "req-1" {
		t.Errorf("request id = %q", sender.requestID)
	}
	if sender.response["name"] != "ada" || sender.response["approved"] != true {
		t.Errorf("response = %v", sender.response)
	}
	if _, ok := g.Pending(); ok {
		t.Error("request still pending after successful submit")
	}
}

func TestGateSubmitKeepsPendingOnTransportFailure(t *testing.T) {
	sender := &recordingSender{fail: errors.New("connection refused")}
	g := NewGate(sender, nil)
	g.Set(InterruptRequest{RequestID: "req-1"})

	if err := g.Submit(context.Background(), nil, false); err == nil {
		t.Fatal("transport failure not surfaced")
	}
	if _, ok := g.Pending(); !ok {
		t.Error("failed submit cleared the pending request")
	}

	// Retry succeeds once the transport recovers.
	sender.fail = nil
	if err := g.Submit(context.Background(), nil, false); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, ok := g.Pending(); ok {
		t.Error("retry did not clear the request")
	}
}

func TestGateSubmitWithoutPending(t *testing.T) {
	g := NewGate(&recordingSender{}, nil)
	if err := g.Submit(context.Background(), nil, true); err == nil {
		t.Error("submit without a pending request accepted")
	}
}

func TestGateNewRequestReplacesUnanswered(t *testing.T) {
	g := NewGate(&recordingSender{}, nil)
	g.Set(InterruptRequest{RequestID: "old"})
	g.Set(InterruptRequest{RequestID: "new"})

	req, ok := g.Pending()
	if !ok || req.RequestID != "new" {
		t.Errorf("pending = %+v, %v", req, ok)
	}
}

func TestGateDismiss(t *testing.T) {
	sender := &recordingSender{}
	g := NewGate(sender, nil)
	g.Set(InterruptRequest{RequestID: "req-1"})
	g.Dismiss()

	if _, ok := g.Pending(); ok {
		t.Error("dismiss left a pending request")
	}
	if sender.calls != 0 {
		t.Error("dismiss notified the remote side")
	}
	// Dismissing with nothing pending is fine.
	g.Dismiss()
}

func TestParseInterrupt(t *testing.T) {
	payload := map[string]any{
		"request_id": "req-9",
		"prompt":     "Fill in",
		"data":       map[string]any{"context": "x"},
		"fields": []any{
			map[string]any{"name": "reason", "type": "text", "label": "Reason"},
			map[string]any{"name": "confirm", "type": "checkbox"},
			map[string]any{"name": "weird", "type": "matrix"},
			map[string]any{"type": "string"}, // nameless, skipped
			"not a map",
		},
	}
	req, err := ParseInterrupt(payload)
	if err != nil {
		t.Fatalf("ParseInterrupt: %v", err)
	}
	if req.RequestID != "req-9" || req.Prompt != "Fill in" {
		t.Errorf("req = %+v", req)
	}
	if len(req.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(req.Fields))
	}
	if req.Fields[0].Type != FieldString || req.Fields[0].Label != "Reason" {
		t.Errorf("field 0 = %+v", req.Fields[0])
	}
	if req.Fields[1].Type != FieldBoolean {
		t.Errorf("field 1 = %+v", req.Fields[1])
	}
	if req.Fields[2].Type != FieldOther {
		t.Errorf("field 2 = %+v", req.Fields[2])
	}
}

func TestParseInterruptRequiresRequestID(t *testing.T) {
	if _, err := ParseInterrupt(map[string]any{"prompt": "hi"}); err == nil {
		t.Error("missing request_id accepted")
	}
}
