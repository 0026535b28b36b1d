package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// FieldType classifies the value a requested field expects.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldOther   FieldType = "other"
)

// Field is one structured input requested by a mid-run interrupt.
type Field struct {
	Name  string
	Type  FieldType
	Label string
}

// InterruptRequest is a mid-run pause asking for structured human input
// before the remote engine continues.
type InterruptRequest struct {
	RequestID string
	Prompt    string
	Fields    []Field
	Data      any
}

// ResponseSender delivers a human-input response back to the executor.
// Implemented by the REST client.
type ResponseSender interface {
	SubmitHumanResponse(ctx context.Context, requestID string, response map[string]any) error
}

// Gate holds at most one pending interrupt request: only one workflow run
// is assumed live, so a newer interrupt replaces an unanswered one. It is
// safe for concurrent use.
type Gate struct {
	sender ResponseSender
	logger *slog.Logger

	mu      sync.Mutex
	pending *InterruptRequest
}

// NewGate creates a Gate that submits responses through sender.
func NewGate(sender ResponseSender, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{sender: sender, logger: logger}
}

// Set installs req as the pending request, replacing any unanswered one.
func (g *Gate) Set(req InterruptRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.logger.Warn("replacing unanswered human-input request",
			"old_request_id", g.pending.RequestID, "new_request_id", req.RequestID)
	}
	g.pending = &req
}

// Pending returns the current pending request, if any.
func (g *Gate) Pending() (InterruptRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return InterruptRequest{}, false
	}
	return *g.pending, true
}

// Submit sends the collected field values plus the approved outcome as one
// response carrying the original request id. On transport failure the
// request stays pending so the user can retry.
func (g *Gate) Submit(ctx context.Context, values map[string]any, approved bool) error {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return fmt.Errorf("no pending human-input request")
	}
	requestID := g.pending.RequestID
	g.mu.Unlock()

	if g.sender == nil {
		return fmt.Errorf("no response sender configured")
	}

	response := make(map[string]any, len(values)+1)
	for k, v := range values {
		response[k] = v
	}
	response["approved"] = approved

	if err := g.sender.SubmitHumanResponse(ctx, requestID, response); err != nil {
		return fmt.Errorf("submitting human-input response %s: %w", requestID, err)
	}

	g.mu.Lock()
	// Clear only if the answered request is still the pending one.
	if g.pending != nil && g.pending.RequestID == requestID {
		g.pending = nil
	}
	g.mu.Unlock()
	return nil
}

// Dismiss drops the pending request without notifying the remote side.
// Fire-and-forget dismissal is a known limitation of the protocol; the
// engine's own timeout is the backstop.
func (g *Gate) Dismiss() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.logger.Info("dismissed human-input request without response",
			"request_id", g.pending.RequestID)
	}
	g.pending = nil
}

// ParseInterrupt decodes the USER_INPUT_REQUIRED payload. The request id is
// required; everything else degrades gracefully.
func ParseInterrupt(payload map[string]any) (InterruptRequest, error) {
	requestID, _ := payload["request_id"].(string)
	if requestID == "" {
		return InterruptRequest{}, fmt.Errorf("interrupt payload missing request_id")
	}

	req := InterruptRequest{
		RequestID: requestID,
		Data:      payload["data"],
	}
	if prompt, ok := payload["prompt"].(string); ok {
		req.Prompt = prompt
	}

	if raw, ok := payload["fields"].([]any); ok {
		for _, item := range raw {
			f, ok := item.(map[string]any)
			if !ok {
				continue
			}
			field := Field{}
			field.Name, _ = f["name"].(string)
			field.Label, _ = f["label"].(string)
			if field.Name == "" {
				continue
			}
			typeName, _ := f["type"].(string)
			field.Type = parseFieldType(typeName)
			req.Fields = append(req.Fields, field)
		}
	}
	return req, nil
}

func parseFieldType(name string) FieldType {
	switch name {
	case "string", "text":
		return FieldString
	case "boolean", "checkbox", "bool":
		return FieldBoolean
	default:
		return FieldOther
	}
}
