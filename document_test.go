package pocketgraph

import (
	"fmt"
	"sync"
	"testing"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	d := NewDocument()
	for _, id := range []string{"a", "b", "c"} {
		if err := d.AddNode(&NodeRecord{ID: id, Kind: "llm"}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	if _, err := d.AddEdge("a", "", "b", ""); err != nil {
		t.Fatalf("AddEdge(a->b): %v", err)
	}
	if _, err := d.AddEdge("b", "", "c", ""); err != nil {
		t.Fatalf("AddEdge(b->c): %v", err)
	}
	d.MarkClean()
	return d
}

func TestNewDocumentIsClean(t *testing.T) {
	d := NewDocument()
	if d.Dirty() {
		t.Error("new document is dirty")
	}
	if len(d.Nodes()) != 0 || len(d.Edges()) != 0 {
		t.Error("new document is not empty")
	}
}

func TestAddNodeRejectsDuplicateAndEmptyID(t *testing.T) {
	d := NewDocument()
	if err := d.AddNode(&NodeRecord{ID: "x"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := d.AddNode(&NodeRecord{ID: "x"}); err == nil {
		t.Error("duplicate id accepted")
	}
	if err := d.AddNode(&NodeRecord{}); err == nil {
		t.Error("empty id accepted")
	}
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	d := newTestDocument(t)
	d.DeleteNode("b")

	if d.HasNode("b") {
		t.Error("node b still present")
	}
	if got := len(d.Edges()); got != 0 {
		t.Errorf("edges after cascade = %d, want 0", got)
	}
	if !d.Dirty() {
		t.Error("delete did not mark dirty")
	}
}

func TestDeleteAbsentNodeIsNoOp(t *testing.T) {
	d := newTestDocument(t)
	d.DeleteNode("missing")

	if d.Dirty() {
		t.Error("no-op delete marked the document dirty")
	}
	if len(d.Nodes()) != 3 || len(d.Edges()) != 2 {
		t.Error("no-op delete changed the graph")
	}
}

func TestAddEdgeRequiresEndpoints(t *testing.T) {
	d := newTestDocument(t)
	if _, err := d.AddEdge("a", "", "ghost", ""); err == nil {
		t.Error("edge to unknown target accepted")
	}
	if _, err := d.AddEdge("ghost", "", "a", ""); err == nil {
		t.Error("edge from unknown source accepted")
	}
}

func TestAddEdgeToExistingIDReturnsExisting(t *testing.T) {
	d := newTestDocument(t)
	first, _ := d.Edge(EdgeID("a", "b"))
	d.MarkClean()

	again, err := d.AddEdge("a", "out", "b", "in")
	if err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if again != first {
		t.Error("second add did not return the existing edge")
	}
	if again.SourcePort != "" {
		t.Errorf("existing edge ports changed: %q", again.SourcePort)
	}
	if len(d.Edges()) != 2 {
		t.Errorf("edge count = %d, want 2", len(d.Edges()))
	}
}

func TestRemoveEdge(t *testing.T) {
	d := newTestDocument(t)
	d.RemoveEdge(EdgeID("a", "b"))
	if len(d.Edges()) != 1 {
		t.Fatalf("edges = %d, want 1", len(d.Edges()))
	}
	if !d.Dirty() {
		t.Error("remove did not mark dirty")
	}

	d.MarkClean()
	d.RemoveEdge("edge_never_was")
	if d.Dirty() {
		t.Error("no-op remove marked dirty")
	}
}

func TestUpdateNodeParamsMerges(t *testing.T) {
	d := newTestDocument(t)
	d.UpdateNodeParams("a", ParamsFrom("prompt", "one"))
	d.UpdateNodeParams("a", ParamsFrom("prompt", "two", "model", "big"))

	n, _ := d.Node("a")
	if got := n.Params.GetString("prompt"); got != "two" {
		t.Errorf("prompt = %q, want %q", got, "two")
	}
	if got := n.Params.GetString("model"); got != "big" {
		t.Errorf("model = %q, want %q", got, "big")
	}
	if !d.Dirty() {
		t.Error("param update did not mark dirty")
	}
}

func TestUpdateNodeParamsUnknownIDIsNoOp(t *testing.T) {
	d := newTestDocument(t)
	d.UpdateNodeParams("missing", ParamsFrom("k", "v"))
	if d.Dirty() {
		t.Error("no-op update marked dirty")
	}
}

func TestSetNodeLabelAndPosition(t *testing.T) {
	d := newTestDocument(t)

	d.SetNodeLabel("a", "Renamed")
	if !d.Dirty() {
		t.Fatal("label change did not mark dirty")
	}
	d.MarkClean()

	// Unchanged values do not dirty.
	d.SetNodeLabel("a", "Renamed")
	if d.Dirty() {
		t.Error("no-op label change marked dirty")
	}

	d.SetNodePosition("a", Position{X: 10, Y: 20})
	if !d.Dirty() {
		t.Fatal("move did not mark dirty")
	}
	d.MarkClean()
	d.SetNodePosition("a", Position{X: 10, Y: 20})
	if d.Dirty() {
		t.Error("no-op move marked dirty")
	}
}

func TestSetNameDirties(t *testing.T) {
	d := newTestDocument(t)
	d.SetName("pipeline")
	if d.Name() != "pipeline" || !d.Dirty() {
		t.Errorf("SetName: name=%q dirty=%v", d.Name(), d.Dirty())
	}
	d.MarkClean()
	d.SetName("pipeline")
	if d.Dirty() {
		t.Error("same-name rename marked dirty")
	}
}

func TestReplaceComesOutClean(t *testing.T) {
	d := newTestDocument(t)
	d.SetName("old")

	nodes := []*NodeRecord{{ID: "n1", Kind: "start"}}
	d.Replace("fresh", nodes, nil)

	if d.Dirty() {
		t.Error("replaced document is dirty")
	}
	if d.Name() != "fresh" {
		t.Errorf("name = %q, want %q", d.Name(), "fresh")
	}
	if !d.HasNode("n1") || d.HasNode("a") {
		t.Error("replace did not swap the node set")
	}
	n, _ := d.Node("n1")
	if n.Params == nil {
		t.Error("replace left nil params")
	}
}

func TestDocumentEqualIgnoresDirty(t *testing.T) {
	a := newTestDocument(t)
	b := newTestDocument(t)
	a.SetNodeLabel("a", "touched")
	a.SetNodeLabel("a", "") // restore value, a stays dirty

	if !a.Equal(b) {
		t.Error("structurally equal documents reported unequal")
	}

	b.SetNodePosition("c", Position{X: 1, Y: 1})
	if a.Equal(b) {
		t.Error("moved node not detected by Equal")
	}
}

func TestDocumentConcurrentReadDuringEdit(t *testing.T) {
	// The execution consumer reads node ids from its goroutine while the
	// editor keeps mutating the same document mid-run.
	d := newTestDocument(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			d.HasNode("a")
			d.Node("b")
			d.Nodes()
			d.Edges()
			d.Dirty()
		}
	}()

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("n%d", i)
		if err := d.AddNode(&NodeRecord{ID: id, Kind: "llm"}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
		if _, err := d.AddEdge("a", "", id, ""); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		d.SetNodePosition(id, Position{X: float64(i), Y: 1})
		d.DeleteNode(id)
	}
	close(stop)
	wg.Wait()

	if !d.HasNode("a") || len(d.Nodes()) != 3 {
		t.Errorf("document corrupted by concurrent access: %d nodes", len(d.Nodes()))
	}
}

func TestNodesReturnsInsertionOrder(t *testing.T) {
	d := newTestDocument(t)
	got := d.Nodes()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("Nodes()[%d].ID = %q, want %q", i, got[i].ID, want[i])
		}
	}
}
