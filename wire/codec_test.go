package wire

import (
	"encoding/json"
	"strings"
	"testing"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
)

func buildDocument(t *testing.T) *pocketgraph.Document {
	t.Helper()
	c := catalog.Builtins()
	d := pocketgraph.DefaultDocument(c)
	d.SetName("pipeline")

	llm := d.PlaceNode(c, "llm", pocketgraph.Position{X: 100, Y: 100})
	d.UpdateNodeParams(llm.ID, pocketgraph.ParamsFrom("prompt", "hello", "model", "small"))
	if _, err := d.AddEdge("1", "default", llm.ID, "default"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	return d
}

func TestToWireIsPure(t *testing.T) {
	d := buildDocument(t)
	d.MarkClean()

	wf := ToWire(d)
	if d.Dirty() {
		t.Error("ToWire dirtied the document")
	}

	// Mutating the wire form must not leak back.
	wf.Nodes[0].Label = "mutated"
	wf.Nodes[1].Data.Set("prompt", "mutated")
	n, _ := d.Node(d.Nodes()[1].ID)
	if n.Params.GetString("prompt") != "hello" {
		t.Error("wire mutation leaked into document params")
	}
}

func TestRoundTripRestoresDocument(t *testing.T) {
	c := catalog.Builtins()
	d := buildDocument(t)

	data, err := Encode(ToWire(d))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	wf, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	back := pocketgraph.NewDocument()
	LoadInto(back, d.Name(), wf, c)

	if !d.Equal(back) {
		t.Error("round trip changed the document")
	}
	if back.Dirty() {
		t.Error("loaded document is dirty")
	}
}

func TestWireHandlesPortPrefixes(t *testing.T) {
	tests := []struct {
		port         string
		sourceHandle string
		targetHandle string
	}{
		{"", "", ""},
		{"default", "out-default", "in-default"},
		{"approved", "out-approved", "in-approved"},
	}
	for _, tt := range tests {
		if got := SourceHandle(tt.port); got != tt.sourceHandle {
			t.Errorf("SourceHandle(%q) = %q, want %q", tt.port, got, tt.sourceHandle)
		}
		if got := TargetHandle(tt.port); got != tt.targetHandle {
			t.Errorf("TargetHandle(%q) = %q, want %q", tt.port, got, tt.targetHandle)
		}
		if got := SourcePort(tt.sourceHandle); got != tt.port {
			t.Errorf("SourcePort(%q) = %q, want %q", tt.sourceHandle, got, tt.port)
		}
		if got := TargetPort(tt.targetHandle); got != tt.port {
			t.Errorf("TargetPort(%q) = %q, want %q", tt.targetHandle, got, tt.port)
		}
	}
}

func TestEncodeUsesWireFieldNames(t *testing.T) {
	d := buildDocument(t)
	data, err := Encode(ToWire(d))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	for _, field := range []string{`"type"`, `"data"`, `"position"`, `"sourceHandle"`, `"targetHandle"`} {
		if !strings.Contains(s, field) {
			t.Errorf("encoded payload missing %s: %s", field, s)
		}
	}
	if strings.Contains(s, `"Kind"`) || strings.Contains(s, `"Params"`) {
		t.Error("in-memory field names leaked onto the wire")
	}
}

func TestLoadIntoResolvesPortsFromCatalog(t *testing.T) {
	wf := Workflow{
		Nodes: []Node{
			{ID: "h", Type: catalog.KindHumanInput},
			{ID: "x", Type: "unknown_kind"},
		},
	}
	d := FromWire(wf, catalog.Builtins())

	h, _ := d.Node("h")
	def, _ := catalog.Builtins().Get(catalog.KindHumanInput)
	if len(h.Ports.Outputs) != len(def.Outputs) {
		t.Errorf("human_input ports = %v, want %v", h.Ports.Outputs, def.Outputs)
	}

	x, _ := d.Node("x")
	if len(x.Ports.Inputs) != 0 || len(x.Ports.Outputs) != 0 {
		t.Errorf("unknown kind got ports: %+v", x.Ports)
	}
	if x.Params == nil {
		t.Error("node without data has nil params")
	}
}

func TestLoadIntoSkipsDuplicateEdges(t *testing.T) {
	wf := Workflow{
		Nodes: []Node{{ID: "a", Type: "llm"}, {ID: "b", Type: "llm"}},
		Edges: []Edge{
			{Source: "a", Target: "b", SourceHandle: "out-default"},
			{Source: "a", Target: "b", SourceHandle: "out-other"},
		},
	}
	d := FromWire(wf, catalog.Builtins())
	edges := d.Edges()
	if len(edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(edges))
	}
	if edges[0].SourcePort != "default" {
		t.Errorf("kept edge port = %q, want first occurrence", edges[0].SourcePort)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode([]byte(`{"nodes": "nope"}`)); err == nil {
		t.Error("malformed workflow accepted")
	}
}

func TestNodeDataRoundTripsThroughJSON(t *testing.T) {
	wf := Workflow{
		Nodes: []Node{{
			ID:   "n",
			Type: "llm",
			Data: pocketgraph.ParamsFrom("prompt", "hi", "stream", true),
		}},
	}
	data, err := json.Marshal(wf)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !back.Nodes[0].Data.Equal(wf.Nodes[0].Data) {
		t.Errorf("data changed: %v", back.Nodes[0].Data.Keys())
	}
}
