package pocketgraph

import "testing"

func TestKindForTag(t *testing.T) {
	tests := []struct {
		tag  string
		want EventKind
		ok   bool
	}{
		{TagWorkflowStart, EventRunStarted, true},
		{TagNodeStart, EventNodeStarted, true},
		{TagNodeEnd, EventNodeFinished, true},
		{TagNodeError, EventNodeFailed, true},
		{TagWorkflowEnd, EventRunFinished, true},
		{TagWorkflowError, EventRunFailed, true},
		{TagUserInputRequired, EventInterruptRequired, true},
		{TagStateUpdate, EventStateUpdated, true},
		{"future_thing", "", false},
	}
	for _, tt := range tests {
		got, ok := KindForTag(tt.tag)
		if ok != tt.ok {
			t.Errorf("KindForTag(%q) ok = %v, want %v", tt.tag, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("KindForTag(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestWireTagRoundTrip(t *testing.T) {
	kinds := []EventKind{
		EventRunStarted, EventNodeStarted, EventNodeFinished, EventNodeFailed,
		EventRunFinished, EventRunFailed, EventInterruptRequired, EventStateUpdated,
	}
	for _, k := range kinds {
		tag := k.WireTag()
		if tag == "" {
			t.Errorf("%q has no wire tag", k)
			continue
		}
		back, ok := KindForTag(tag)
		if !ok || back != k {
			t.Errorf("tag %q maps back to %q, want %q", tag, back, k)
		}
	}
}

func TestMultiEventHandler(t *testing.T) {
	var calls []string
	h := MultiEventHandler(
		func(e Event) { calls = append(calls, "first:"+e.NodeID) },
		nil,
		func(e Event) { calls = append(calls, "second:"+e.NodeID) },
	)
	h(NewEvent(EventNodeStarted).WithNode("n1"))

	if len(calls) != 2 || calls[0] != "first:n1" || calls[1] != "second:n1" {
		t.Errorf("calls = %v", calls)
	}
}
