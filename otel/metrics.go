package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// MetricsHandler translates run events into OpenTelemetry metrics:
// counters for node executions and failures, histograms for node and run
// durations. Node durations are measured from the matching start event.
type MetricsHandler struct {
	nodeExecutions metric.Int64Counter
	nodeFailures   metric.Int64Counter
	nodeDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram

	mu         sync.Mutex
	runStart   time.Time
	nodeStarts map[string]time.Time
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create its instruments.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	nodeExec, err := meter.Int64Counter("pocketgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeFail, err := meter.Int64Counter("pocketgraph.node.failures",
		metric.WithDescription("Number of node failures"),
	)
	if err != nil {
		return nil, err
	}

	nodeDur, err := meter.Float64Histogram("pocketgraph.node.duration",
		metric.WithDescription("Duration of node execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("pocketgraph.run.duration",
		metric.WithDescription("Duration of workflow run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		nodeExecutions: nodeExec,
		nodeFailures:   nodeFail,
		nodeDuration:   nodeDur,
		runDuration:    runDur,
		nodeStarts:     make(map[string]time.Time),
	}, nil
}

// Handle processes a run event and records the appropriate metrics.
func (h *MetricsHandler) Handle(e pocketgraph.Event) {
	switch e.Kind {
	case pocketgraph.EventRunStarted:
		h.mu.Lock()
		h.runStart = e.Time
		h.nodeStarts = make(map[string]time.Time)
		h.mu.Unlock()
	case pocketgraph.EventNodeStarted:
		h.mu.Lock()
		h.nodeStarts[e.NodeID] = e.Time
		h.mu.Unlock()
	case pocketgraph.EventNodeFinished:
		h.handleNodeFinished(e)
	case pocketgraph.EventNodeFailed:
		h.handleNodeFailed(e)
	case pocketgraph.EventRunFinished, pocketgraph.EventRunFailed:
		h.handleRunFinished(e)
	}
}

func (h *MetricsHandler) handleNodeFinished(e pocketgraph.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_id", e.NodeID),
	)
	h.nodeExecutions.Add(ctx, 1, attrs)
	if elapsed, ok := h.takeNodeStart(e); ok {
		h.nodeDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func (h *MetricsHandler) handleNodeFailed(e pocketgraph.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_id", e.NodeID),
	)
	h.nodeFailures.Add(ctx, 1, attrs)
	h.takeNodeStart(e)
}

func (h *MetricsHandler) handleRunFinished(e pocketgraph.Event) {
	h.mu.Lock()
	start := h.runStart
	h.runStart = time.Time{}
	h.mu.Unlock()

	if start.IsZero() {
		return
	}
	h.runDuration.Record(context.Background(), e.Time.Sub(start).Seconds(),
		metric.WithAttributes(attribute.String("status", statusForKind(e.Kind))),
	)
}

func (h *MetricsHandler) takeNodeStart(e pocketgraph.Event) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	start, ok := h.nodeStarts[e.NodeID]
	if !ok {
		return 0, false
	}
	delete(h.nodeStarts, e.NodeID)
	return e.Time.Sub(start), true
}

func statusForKind(k pocketgraph.EventKind) string {
	if k == pocketgraph.EventRunFailed {
		return "failed"
	}
	return "completed"
}
