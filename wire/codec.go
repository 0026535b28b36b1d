package wire

import (
	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
)

// ToWire maps a document to its wire representation. The transform is pure:
// the document is not touched.
func ToWire(d *pocketgraph.Document) Workflow {
	nodes := d.Nodes()
	edges := d.Edges()

	wf := Workflow{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
	}
	for _, n := range nodes {
		wf.Nodes = append(wf.Nodes, Node{
			ID:       n.ID,
			Type:     n.Kind,
			Label:    n.Label,
			Position: n.Position,
			Data:     n.Params.Clone(),
		})
	}
	for _, e := range edges {
		wf.Edges = append(wf.Edges, Edge{
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: SourceHandle(e.SourcePort),
			TargetHandle: TargetHandle(e.TargetPort),
		})
	}
	return wf
}

// FromWire reconstructs a document from its wire representation. Ports are
// re-resolved from the catalog by kind and never trusted from the payload,
// since the catalog may have evolved since the document was saved. Edge ids
// are derived deterministically. The returned document is clean and
// unnamed; use LoadInto to replace a live document under a name.
func FromWire(wf Workflow, c *catalog.Catalog) *pocketgraph.Document {
	d := pocketgraph.NewDocument()
	LoadInto(d, "", wf, c)
	return d
}

// LoadInto replaces the entire live document with the decoded workflow and
// resets the dirty flag. Callers are expected to clear any transient
// execution state alongside.
func LoadInto(d *pocketgraph.Document, name string, wf Workflow, c *catalog.Catalog) {
	nodes := make([]*pocketgraph.NodeRecord, 0, len(wf.Nodes))
	for _, wn := range wf.Nodes {
		n := &pocketgraph.NodeRecord{
			ID:       wn.ID,
			Kind:     wn.Type,
			Label:    wn.Label,
			Position: wn.Position,
			Params:   wn.Data.Clone(),
		}
		if c != nil {
			if def, ok := c.Get(wn.Type); ok {
				n.Ports = pocketgraph.Ports{
					Inputs:  append([]string(nil), def.Inputs...),
					Outputs: append([]string(nil), def.Outputs...),
				}
			}
		}
		nodes = append(nodes, n)
	}

	edges := make([]*pocketgraph.EdgeRecord, 0, len(wf.Edges))
	seen := make(map[string]bool, len(wf.Edges))
	for _, we := range wf.Edges {
		id := pocketgraph.EdgeID(we.Source, we.Target)
		if seen[id] {
			continue
		}
		seen[id] = true
		edges = append(edges, &pocketgraph.EdgeRecord{
			ID:         id,
			Source:     we.Source,
			Target:     we.Target,
			SourcePort: SourcePort(we.SourceHandle),
			TargetPort: TargetPort(we.TargetHandle),
		})
	}

	d.Replace(name, nodes, edges)
}
