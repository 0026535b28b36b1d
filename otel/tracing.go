// Package otel provides OpenTelemetry integration for workflow run events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// TracingHandler translates run events into OpenTelemetry spans: one root
// span per run with a child span per node. The event channel carries a
// single run at a time, so span state is keyed by node id alone.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpan   trace.Span
	runCtx    context.Context
	nodeSpans map[string]trace.Span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer
// to create spans from run events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		nodeSpans: make(map[string]trace.Span),
	}
}

// Handle processes a run event and creates or ends spans accordingly.
func (h *TracingHandler) Handle(e pocketgraph.Event) {
	switch e.Kind {
	case pocketgraph.EventRunStarted:
		h.handleRunStarted(e)
	case pocketgraph.EventNodeStarted:
		h.handleNodeStarted(e)
	case pocketgraph.EventNodeFinished:
		h.handleNodeFinished(e)
	case pocketgraph.EventNodeFailed:
		h.handleNodeFailed(e)
	case pocketgraph.EventRunFinished:
		h.handleRunFinished(e, "")
	case pocketgraph.EventRunFailed:
		h.handleRunFinished(e, e.Detail)
	}
}

func (h *TracingHandler) handleRunStarted(e pocketgraph.Event) {
	ctx, span := h.tracer.Start(context.Background(), "run",
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	// A new run_started while a run span is open means the previous
	// terminal event was lost; close the stale span first.
	if h.runSpan != nil {
		h.runSpan.End()
	}
	for id, s := range h.nodeSpans {
		s.End()
		delete(h.nodeSpans, id)
	}
	h.runSpan = span
	h.runCtx = ctx
	h.mu.Unlock()
}

func (h *TracingHandler) handleNodeStarted(e pocketgraph.Event) {
	h.mu.RLock()
	parentCtx := h.runCtx
	h.mu.RUnlock()

	if parentCtx == nil {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "node:"+e.NodeID,
		trace.WithAttributes(
			attribute.String("pocketgraph.node_id", e.NodeID),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.nodeSpans[e.NodeID] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleNodeFinished(e pocketgraph.Event) {
	h.mu.Lock()
	span, ok := h.nodeSpans[e.NodeID]
	if ok {
		delete(h.nodeSpans, e.NodeID)
	}
	h.mu.Unlock()

	if ok {
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

func (h *TracingHandler) handleNodeFailed(e pocketgraph.Event) {
	h.mu.Lock()
	span, ok := h.nodeSpans[e.NodeID]
	if ok {
		delete(h.nodeSpans, e.NodeID)
	}
	h.mu.Unlock()

	if ok {
		errMsg := e.Detail
		if errMsg == "" {
			errMsg = "unknown error"
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(spanError(errMsg), trace.WithTimestamp(e.Time))
		span.End(trace.WithTimestamp(e.Time))
	}
}

func (h *TracingHandler) handleRunFinished(e pocketgraph.Event, errMsg string) {
	h.mu.Lock()
	span := h.runSpan
	h.runSpan = nil
	h.runCtx = nil
	for id, s := range h.nodeSpans {
		s.End(trace.WithTimestamp(e.Time))
		delete(h.nodeSpans, id)
	}
	h.mu.Unlock()

	if span == nil {
		return
	}
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// ActiveNodeSpanContext returns the SpanContext for a node whose span is
// open, or an empty SpanContext.
func (h *TracingHandler) ActiveNodeSpanContext(nodeID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.nodeSpans[nodeID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

type spanError string

func (e spanError) Error() string { return string(e) }
