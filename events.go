package pocketgraph

import "time"

// EventKind identifies the type of event arriving on the execution stream.
type EventKind string

const (
	// EventRunStarted is emitted when the remote engine begins a run.
	EventRunStarted EventKind = "run_started"

	// EventNodeStarted is emitted when a node begins execution.
	EventNodeStarted EventKind = "node_started"

	// EventNodeFinished is emitted when a node completes successfully.
	EventNodeFinished EventKind = "node_finished"

	// EventNodeFailed is emitted when a node encounters an error. The run
	// may continue past it.
	EventNodeFailed EventKind = "node_failed"

	// EventRunFinished is emitted when a run completes.
	EventRunFinished EventKind = "run_finished"

	// EventRunFailed is emitted when a run terminates with an error.
	EventRunFailed EventKind = "run_failed"

	// EventInterruptRequired is emitted when the engine pauses for
	// structured human input.
	EventInterruptRequired EventKind = "interrupt_required"

	// EventStateUpdated carries an advisory snapshot of shared memory and
	// per-node results.
	EventStateUpdated EventKind = "state_updated"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Wire tags for the JSON event channel. The stream frames events as
// {"type": <tag>, "payload": {...}}.
const (
	TagWorkflowStart     = "workflow_start"
	TagNodeStart         = "node_start"
	TagNodeEnd           = "node_end"
	TagNodeError         = "node_error"
	TagWorkflowEnd       = "workflow_end"
	TagWorkflowError     = "workflow_error"
	TagUserInputRequired = "USER_INPUT_REQUIRED"
	TagStateUpdate       = "state_update"
)

var tagToKind = map[string]EventKind{
	TagWorkflowStart:     EventRunStarted,
	TagNodeStart:         EventNodeStarted,
	TagNodeEnd:           EventNodeFinished,
	TagNodeError:         EventNodeFailed,
	TagWorkflowEnd:       EventRunFinished,
	TagWorkflowError:     EventRunFailed,
	TagUserInputRequired: EventInterruptRequired,
	TagStateUpdate:       EventStateUpdated,
}

var kindToTag = map[EventKind]string{
	EventRunStarted:        TagWorkflowStart,
	EventNodeStarted:       TagNodeStart,
	EventNodeFinished:      TagNodeEnd,
	EventNodeFailed:        TagNodeError,
	EventRunFinished:       TagWorkflowEnd,
	EventRunFailed:         TagWorkflowError,
	EventInterruptRequired: TagUserInputRequired,
	EventStateUpdated:      TagStateUpdate,
}

// KindForTag maps a wire tag to its EventKind. Unknown tags return ok=false;
// consumers ignore them to tolerate protocol evolution.
func KindForTag(tag string) (EventKind, bool) {
	k, ok := tagToKind[tag]
	return k, ok
}

// WireTag returns the wire tag for the kind, or "" for unknown kinds.
func (k EventKind) WireTag() string {
	return kindToTag[k]
}

// Event is a decoded execution-stream event.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// NodeID is the node the event refers to (empty for run-level events).
	NodeID string

	// Detail carries the error message for node_failed and run_failed.
	Detail string

	// Time is when the event was decoded.
	Time time.Time

	// Payload is the raw type-specific payload object.
	Payload map[string]any
}

// NewEvent creates an event with the current timestamp.
func NewEvent(kind EventKind) Event {
	return Event{Kind: kind, Time: time.Now(), Payload: make(map[string]any)}
}

// WithNode sets the node id on the event.
func (e Event) WithNode(nodeID string) Event {
	e.NodeID = nodeID
	return e
}

// WithDetail sets the error detail on the event.
func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling decoded stream events.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}
