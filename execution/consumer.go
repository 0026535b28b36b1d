// Package execution reconciles the remote executor's event stream with the
// editor: it projects per-node visual status from an ordered but possibly
// lossy stream, and gates mid-run human-input interrupts. Execution state is
// transient; it never round-trips through the serialization codec.
package execution

import (
	"log/slog"
	"sync"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
)

// RunStatus is the run-level state of the consumer.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// NodeStatus is the per-node visual status projected from the stream.
type NodeStatus string

const (
	NodeIdle    NodeStatus = "idle"
	NodeRunning NodeStatus = "running"
	NodeDone    NodeStatus = "done"
	NodeError   NodeStatus = "error"
)

// DocumentView is the read-only view of the live document the consumer
// needs. Events referencing nodes no longer in the document are ignored for
// coloring: the user may have edited the graph since the run started.
type DocumentView interface {
	HasNode(id string) bool
}

// Snapshot is the advisory shared-memory/results view published by the
// engine via state_update events. It is display-only and never required for
// correctness of node coloring.
type Snapshot struct {
	Memory  map[string]any
	Results map[string]any
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Document DocumentView
	Gate     *Gate
	Logger   *slog.Logger
}

// Consumer is the execution-stream state machine. It runs as an
// asynchronous listener with no ordering guarantee relative to user edits,
// so every handler tolerates nodes that have disappeared. It is safe for
// concurrent use.
type Consumer struct {
	doc    DocumentView
	gate   *Gate
	logger *slog.Logger

	mu           sync.Mutex
	run          RunStatus
	nodes        map[string]NodeStatus
	current      string
	hadNodeError bool
	failure      string
	snapshot     Snapshot
}

// NewConsumer creates a Consumer in the idle run state.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		doc:    cfg.Document,
		gate:   cfg.Gate,
		logger: logger,
		run:    RunIdle,
		nodes:  make(map[string]NodeStatus),
	}
}

// Handle consumes one decoded stream event. Unknown event kinds are logged
// and ignored so the protocol can evolve without breaking older editors.
func (c *Consumer) Handle(e pocketgraph.Event) {
	switch e.Kind {
	case pocketgraph.EventRunStarted:
		c.handleRunStarted()
	case pocketgraph.EventNodeStarted:
		c.handleNodeStarted(e)
	case pocketgraph.EventNodeFinished:
		c.setNodeStatus(e, NodeDone)
	case pocketgraph.EventNodeFailed:
		c.handleNodeFailed(e)
	case pocketgraph.EventRunFinished:
		c.handleRunFinished()
	case pocketgraph.EventRunFailed:
		c.handleRunFailed(e)
	case pocketgraph.EventInterruptRequired:
		c.handleInterrupt(e)
	case pocketgraph.EventStateUpdated:
		c.handleStateUpdated(e)
	default:
		c.logger.Debug("ignoring unknown stream event", "kind", string(e.Kind))
	}
}

func (c *Consumer) handleRunStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = RunRunning
	c.nodes = make(map[string]NodeStatus)
	c.current = ""
	c.hadNodeError = false
	c.failure = ""
	c.snapshot = Snapshot{}
}

func (c *Consumer) handleNodeStarted(e pocketgraph.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nodeKnown(e.NodeID) {
		c.logger.Info("node_start for node not in document", "node_id", e.NodeID)
		return
	}
	// Only the currently running node keeps the highlight.
	c.current = e.NodeID
	c.nodes[e.NodeID] = NodeRunning
}

func (c *Consumer) setNodeStatus(e pocketgraph.Event, status NodeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nodeKnown(e.NodeID) {
		c.logger.Info("event for node not in document", "kind", string(e.Kind), "node_id", e.NodeID)
		return
	}
	c.nodes[e.NodeID] = status
}

func (c *Consumer) handleNodeFailed(e pocketgraph.Event) {
	c.mu.Lock()
	c.hadNodeError = true
	c.mu.Unlock()
	// The engine may keep emitting events after a node error; the run is
	// flagged but not terminated.
	c.setNodeStatus(e, NodeError)
	if e.Detail != "" {
		c.logger.Warn("node failed", "node_id", e.NodeID, "error", e.Detail)
	}
}

func (c *Consumer) handleRunFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = RunCompleted
	c.current = ""
	// Clear running markers but keep done/error coloring until the next
	// run starts.
	for id, st := range c.nodes {
		if st == NodeRunning {
			delete(c.nodes, id)
		}
	}
}

func (c *Consumer) handleRunFailed(e pocketgraph.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = RunFailed
	c.failure = e.Detail
	c.current = ""
	c.logger.Warn("run failed", "error", e.Detail)
}

func (c *Consumer) handleInterrupt(e pocketgraph.Event) {
	if c.gate == nil {
		c.logger.Warn("interrupt_required received but no gate configured")
		return
	}
	req, err := ParseInterrupt(e.Payload)
	if err != nil {
		c.logger.Warn("dropping malformed interrupt payload", "error", err)
		return
	}
	c.gate.Set(req)
}

func (c *Consumer) handleStateUpdated(e pocketgraph.Event) {
	snap := Snapshot{}
	if mem, ok := e.Payload["memory"].(map[string]any); ok {
		snap.Memory = mem
	}
	if res, ok := e.Payload["results"].(map[string]any); ok {
		snap.Results = res
	}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}

// nodeKnown is called with c.mu held.
func (c *Consumer) nodeKnown(id string) bool {
	if id == "" {
		return false
	}
	return c.doc == nil || c.doc.HasNode(id)
}

// RunState returns the current run-level state.
func (c *Consumer) RunState() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// NodeStatus returns the projected status for a node, defaulting to idle.
func (c *Consumer) NodeStatus(id string) NodeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.nodes[id]; ok {
		return st
	}
	return NodeIdle
}

// Statuses returns a copy of all non-idle node statuses.
func (c *Consumer) Statuses() map[string]NodeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]NodeStatus, len(c.nodes))
	for id, st := range c.nodes {
		out[id] = st
	}
	return out
}

// CurrentNode returns the most recently started node, or "" when no node is
// highlighted.
func (c *Consumer) CurrentNode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// HadNodeError reports whether any node error was seen this run.
func (c *Consumer) HadNodeError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hadNodeError
}

// Failure returns the run-level failure detail, or "" if the run has not
// failed.
func (c *Consumer) Failure() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Snapshot returns the latest advisory state snapshot.
func (c *Consumer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Reset clears all execution state. Called when the document is switched or
// closed. A lost stream does not reset; the last projected state stays up.
func (c *Consumer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = RunIdle
	c.nodes = make(map[string]NodeStatus)
	c.current = ""
	c.hadNodeError = false
	c.failure = ""
	c.snapshot = Snapshot{}
}
