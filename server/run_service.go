package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
	"github.com/hamletlg/POCKETFLOWGRAPH/wire"
)

// Run statuses reported by the run endpoint.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// ErrUnknownRequest is returned when a human-input response names a
// request id that is not pending.
var ErrUnknownRequest = errors.New("no pending request with that id")

const defaultHumanInputTimeout = 5 * time.Minute

// RunResult is the terminal summary of a workflow run.
type RunResult struct {
	Status  string         `json:"status"`
	Results map[string]any `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type pendingInput struct {
	nodeID string
	ch     chan map[string]any
}

// RunServiceConfig configures a RunService.
type RunServiceConfig struct {
	Catalog *catalog.Catalog
	Emit    pocketgraph.EventHandler
	Logger  *slog.Logger
}

// RunService executes workflows node by node in dependency order and
// reports progress through the event channel. Nodes that request human
// input suspend the run until a response arrives or the node's timeout
// elapses.
type RunService struct {
	catalog *catalog.Catalog
	emit    pocketgraph.EventHandler
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingInput
}

// NewRunService creates a run service.
func NewRunService(cfg RunServiceConfig) *RunService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emit := cfg.Emit
	if emit == nil {
		emit = func(pocketgraph.Event) {}
	}
	return &RunService{
		catalog: cfg.Catalog,
		emit:    emit,
		logger:  logger,
		pending: make(map[string]*pendingInput),
	}
}

// Respond delivers a human-input response to the run waiting on the
// request id. The values map is handed to the suspended node as-is.
func (s *RunService) Respond(requestID string, values map[string]any) error {
	s.mu.Lock()
	p, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}
	p.ch <- values
	return nil
}

// PendingRequests returns the ids of requests currently awaiting input.
func (s *RunService) PendingRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run executes the workflow and returns its terminal result. Errors in
// individual nodes abort the remainder of the run but are reported in
// the result rather than as a Go error; only malformed workflows fail
// outright.
func (s *RunService) Run(ctx context.Context, wf wire.Workflow) RunResult {
	s.emit(pocketgraph.NewEvent(pocketgraph.EventRunStarted))

	order, err := executionOrder(wf)
	if err != nil {
		s.logger.Error("workflow rejected", "error", err)
		s.emit(pocketgraph.NewEvent(pocketgraph.EventRunFailed).WithDetail(err.Error()))
		return RunResult{Status: RunStatusError, Error: err.Error()}
	}

	memory := make(map[string]any)
	results := make(map[string]any)

	for _, node := range order {
		s.emit(pocketgraph.NewEvent(pocketgraph.EventNodeStarted).WithNode(node.ID))

		output, err := s.executeNode(ctx, node, memory)
		if err != nil {
			s.logger.Warn("node failed", "node", node.ID, "type", node.Type, "error", err)
			s.emit(pocketgraph.NewEvent(pocketgraph.EventNodeFailed).
				WithNode(node.ID).WithDetail(err.Error()))
			s.emit(pocketgraph.NewEvent(pocketgraph.EventRunFailed).WithDetail(err.Error()))
			return RunResult{Status: RunStatusError, Results: results, Error: err.Error()}
		}

		results[node.ID] = output
		s.emit(pocketgraph.NewEvent(pocketgraph.EventNodeFinished).WithNode(node.ID))
		s.emit(pocketgraph.NewEvent(pocketgraph.EventStateUpdated).
			WithPayload("memory", cloneAnyMap(memory)).
			WithPayload("results", cloneAnyMap(results)))
	}

	s.emit(pocketgraph.NewEvent(pocketgraph.EventRunFinished))
	return RunResult{Status: RunStatusSuccess, Results: results}
}

// executeNode runs a single node. Only control-surface behavior is
// modeled here: human_input suspends the run, delay sleeps, note is
// inert, and every other type records a completion marker carrying its
// configuration.
func (s *RunService) executeNode(ctx context.Context, node wire.Node, memory map[string]any) (any, error) {
	params := map[string]any{}
	if node.Data != nil {
		for _, k := range node.Data.Keys() {
			v, _ := node.Data.Get(k)
			params[k] = v
		}
	}

	switch node.Type {
	case catalog.KindHumanInput:
		return s.awaitHumanInput(ctx, node, params, memory)
	case catalog.KindNote:
		return nil, nil
	case "delay":
		return s.runDelay(ctx, params)
	default:
		out := map[string]any{"type": node.Type, "status": "completed"}
		if len(params) > 0 {
			out["params"] = params
		}
		return out, nil
	}
}

func (s *RunService) runDelay(ctx context.Context, params map[string]any) (any, error) {
	seconds := floatParam(params, "seconds", 1)
	select {
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return map[string]any{"delayed_seconds": seconds}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *RunService) awaitHumanInput(ctx context.Context, node wire.Node, params map[string]any, memory map[string]any) (any, error) {
	requestID := uuid.New().String()
	p := &pendingInput{nodeID: node.ID, ch: make(chan map[string]any, 1)}

	s.mu.Lock()
	s.pending[requestID] = p
	s.mu.Unlock()

	prompt, _ := params["prompt"].(string)
	event := pocketgraph.NewEvent(pocketgraph.EventInterruptRequired).
		WithNode(node.ID).
		WithPayload("request_id", requestID).
		WithPayload("prompt", prompt)
	if fields, ok := params["fields"]; ok {
		event = event.WithPayload("fields", fields)
	}
	s.emit(event)

	timeout := defaultHumanInputTimeout
	if secs := floatParam(params, "timeout", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	select {
	case values := <-p.ch:
		for k, v := range values {
			memory[k] = v
		}
		return map[string]any{"request_id": requestID, "response": values}, nil
	case <-time.After(timeout):
		s.dropPending(requestID)
		return nil, fmt.Errorf("human input request %s timed out", requestID)
	case <-ctx.Done():
		s.dropPending(requestID)
		return nil, ctx.Err()
	}
}

func (s *RunService) dropPending(requestID string) {
	s.mu.Lock()
	delete(s.pending, requestID)
	s.mu.Unlock()
}

// executionOrder returns the workflow's nodes in dependency order using
// Kahn's algorithm. Ties break on node id so runs are deterministic.
// Workflows with cycles or edges naming missing nodes are rejected.
func executionOrder(wf wire.Workflow) ([]wire.Node, error) {
	byID := make(map[string]wire.Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.ID == "" {
			return nil, errors.New("workflow contains a node without an id")
		}
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("workflow contains duplicate node id %q", n.ID)
		}
		byID[n.ID] = n
	}

	indegree := make(map[string]int, len(byID))
	successors := make(map[string][]string, len(byID))
	for id := range byID {
		indegree[id] = 0
	}
	for _, e := range wf.Edges {
		if _, ok := byID[e.Source]; !ok {
			return nil, fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if _, ok := byID[e.Target]; !ok {
			return nil, fmt.Errorf("edge references unknown target node %q", e.Target)
		}
		successors[e.Source] = append(successors[e.Source], e.Target)
		indegree[e.Target]++
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]wire.Node, 0, len(byID))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		next := successors[id]
		sort.Strings(next)
		for _, succ := range next {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(byID) {
		return nil, errors.New("workflow contains a cycle")
	}
	return order, nil
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return fallback
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
