package pocketgraph

import (
	"fmt"
	"sync"
)

// Position is an x/y coordinate on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Ports lists the named input and output ports of a node. Ports are derived
// from the node-type catalog at creation or load time; they are not an
// authoritative part of the persisted document.
type Ports struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// Clone returns an independent copy of the port lists.
func (p Ports) Clone() Ports {
	out := Ports{}
	if p.Inputs != nil {
		out.Inputs = append([]string(nil), p.Inputs...)
	}
	if p.Outputs != nil {
		out.Outputs = append([]string(nil), p.Outputs...)
	}
	return out
}

// NodeRecord is a single node in a workflow document. The ID is opaque and
// unique within the document. Kind is the type tag resolved against the
// external metadata catalog; Label is display-only and independent of Kind.
type NodeRecord struct {
	ID       string
	Kind     string
	Label    string
	Position Position
	Params   *Params
	Ports    Ports
}

// Clone returns a deep copy of the node record.
func (n *NodeRecord) Clone() *NodeRecord {
	out := *n
	out.Params = n.Params.Clone()
	out.Ports = n.Ports.Clone()
	return &out
}

// EdgeRecord connects an output port of one node to an input port of
// another. Empty ports denote the default port. Both endpoints must exist
// in the same document; dangling edges are forbidden and node deletion
// cascades atomically.
type EdgeRecord struct {
	ID         string
	Source     string
	Target     string
	SourcePort string
	TargetPort string
}

// EdgeID derives the deterministic edge identity used across the editor and
// the wire format.
func EdgeID(source, target string) string {
	return "edge_" + source + "_" + target
}

// Document is the editable workflow graph currently open in the editor:
// nodes in insertion order, edges, an optional persisted name, and a
// derived dirty flag. Exactly one Document is live per editor session.
// Mutation is single-writer (the editor goroutine), but reads are guarded
// so the execution consumer can consult the document mid-run.
type Document struct {
	mu    sync.RWMutex
	name  string
	nodes []*NodeRecord
	index map[string]*NodeRecord
	edges []*EdgeRecord
	dirty bool
}

// NewDocument creates an empty, clean, unnamed document.
func NewDocument() *Document {
	return &Document{index: make(map[string]*NodeRecord)}
}

// Name returns the persisted workflow name, or "" for a new document.
func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// SetName records the workflow name. Renaming is a mutation.
func (d *Document) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.name == name {
		return
	}
	d.name = name
	d.dirty = true
}

// Dirty reports whether any mutation occurred since the last successful
// load, save, or reset.
func (d *Document) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// MarkClean clears the dirty flag after a successful save.
func (d *Document) MarkClean() {
	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
}

// Nodes returns the nodes in insertion order. The slice is a copy; the
// records are shared.
func (d *Document) Nodes() []*NodeRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*NodeRecord, len(d.nodes))
	copy(out, d.nodes)
	return out
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*NodeRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.index[id]
	return n, ok
}

// HasNode reports whether a node with the given id exists.
func (d *Document) HasNode(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.index[id]
	return ok
}

// Edges returns the edges. The slice is a copy; the records are shared.
func (d *Document) Edges() []*EdgeRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*EdgeRecord, len(d.edges))
	copy(out, d.edges)
	return out
}

// Edge returns the edge with the given id.
func (d *Document) Edge(id string) (*EdgeRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.edgeByID(id)
}

func (d *Document) edgeByID(id string) (*EdgeRecord, bool) {
	for _, e := range d.edges {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// AddNode inserts a node and marks the document dirty. The id must be
// non-empty and unique within the document.
func (d *Document) AddNode(n *NodeRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if _, exists := d.index[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	if n.Params == nil {
		n.Params = NewParams()
	}
	d.nodes = append(d.nodes, n)
	d.index[n.ID] = n
	d.dirty = true
	return nil
}

// DeleteNode removes the node and every edge touching it in one atomic
// step. Deleting an absent id is a no-op and leaves the document unchanged,
// dirty flag included.
func (d *Document) DeleteNode(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[id]; !ok {
		return
	}
	delete(d.index, id)
	for i, n := range d.nodes {
		if n.ID == id {
			d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
			break
		}
	}
	kept := d.edges[:0]
	for _, e := range d.edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	d.edges = kept
	d.dirty = true
}

// UpdateNodeParams merges patch into the node's parameters, last write wins
// per key. Ports are untouched. Unknown ids are a no-op.
func (d *Document) UpdateNodeParams(id string, patch *Params) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.index[id]
	if !ok || patch == nil || patch.Len() == 0 {
		return
	}
	n.Params.Merge(patch)
	d.dirty = true
}

// SetNodeLabel updates the display label. Unknown ids are a no-op.
func (d *Document) SetNodeLabel(id, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.index[id]
	if !ok || n.Label == label {
		return
	}
	n.Label = label
	d.dirty = true
}

// SetNodePosition moves a node on the canvas. Unknown ids are a no-op.
func (d *Document) SetNodePosition(id string, pos Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.index[id]
	if !ok || n.Position == pos {
		return
	}
	n.Position = pos
	d.dirty = true
}

// AddEdge connects source's output port to target's input port. Both
// endpoints must be present; the edge id is derived via EdgeID. Adding an
// edge whose id already exists returns the existing edge unchanged.
func (d *Document) AddEdge(source, sourcePort, target, targetPort string) (*EdgeRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[source]; !ok {
		return nil, fmt.Errorf("edge source %q references unknown node", source)
	}
	if _, ok := d.index[target]; !ok {
		return nil, fmt.Errorf("edge target %q references unknown node", target)
	}
	id := EdgeID(source, target)
	if existing, ok := d.edgeByID(id); ok {
		return existing, nil
	}
	e := &EdgeRecord{
		ID:         id,
		Source:     source,
		Target:     target,
		SourcePort: sourcePort,
		TargetPort: targetPort,
	}
	d.edges = append(d.edges, e)
	d.dirty = true
	return e, nil
}

// RemoveEdge deletes the edge with the given id. Absent ids are a no-op.
func (d *Document) RemoveEdge(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.edges {
		if e.ID == id {
			d.edges = append(d.edges[:i], d.edges[i+1:]...)
			d.dirty = true
			return
		}
	}
}

// Replace swaps in an entirely new graph, typically from a load. The
// document comes out clean. Nodes and edges are adopted as-is; callers must
// not retain aliases.
func (d *Document) Replace(name string, nodes []*NodeRecord, edges []*EdgeRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
	d.nodes = nodes
	d.edges = edges
	d.index = make(map[string]*NodeRecord, len(nodes))
	for _, n := range nodes {
		if n.Params == nil {
			n.Params = NewParams()
		}
		d.index[n.ID] = n
	}
	d.dirty = false
}

// Reset clears the document back to a new, unnamed, clean state.
func (d *Document) Reset() {
	d.Replace("", nil, nil)
}

// Equal reports structural equality: same name, same nodes in the same
// order with equal attributes, same edges in the same order. The dirty flag
// is derived state and not part of equality.
func (d *Document) Equal(other *Document) bool {
	if d == other {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	if d.name != other.name || len(d.nodes) != len(other.nodes) || len(d.edges) != len(other.edges) {
		return false
	}
	for i, n := range d.nodes {
		o := other.nodes[i]
		if n.ID != o.ID || n.Kind != o.Kind || n.Label != o.Label || n.Position != o.Position {
			return false
		}
		if !n.Params.Equal(o.Params) {
			return false
		}
		if !stringSlicesEqual(n.Ports.Inputs, o.Ports.Inputs) || !stringSlicesEqual(n.Ports.Outputs, o.Ports.Outputs) {
			return false
		}
	}
	for i, e := range d.edges {
		if *e != *other.edges[i] {
			return false
		}
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
