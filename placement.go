package pocketgraph

import (
	"github.com/google/uuid"

	"github.com/hamletlg/POCKETFLOWGRAPH/catalog"
)

// Place resolves a drag-and-drop gesture into a new NodeRecord: a fresh id,
// ports copied from the catalog entry for kind, empty params, and a label
// defaulting to the kind. Unknown kinds are accepted with empty ports so
// that documents survive catalog drift. The note kind gets an empty label;
// it renders as free text, not a connectable unit.
func Place(c *catalog.Catalog, kind string, pos Position) *NodeRecord {
	n := &NodeRecord{
		ID:       uuid.New().String(),
		Kind:     kind,
		Label:    kind,
		Position: pos,
		Params:   NewParams(),
	}
	if kind == catalog.KindNote {
		n.Label = ""
	}
	if c != nil {
		if def, ok := c.Get(kind); ok {
			n.Ports = Ports{
				Inputs:  append([]string(nil), def.Inputs...),
				Outputs: append([]string(nil), def.Outputs...),
			}
		}
	}
	return n
}

// PlaceNode places a new node of the given kind into the document and marks
// it dirty.
func (d *Document) PlaceNode(c *catalog.Catalog, kind string, pos Position) *NodeRecord {
	n := Place(c, kind, pos)
	// The id is freshly generated, so AddNode cannot collide.
	_ = d.AddNode(n)
	return n
}

// DefaultDocument creates the single-node document every new editor session
// opens with: a start node with id "1".
func DefaultDocument(c *catalog.Catalog) *Document {
	d := NewDocument()
	start := &NodeRecord{
		ID:       "1",
		Kind:     catalog.KindStart,
		Label:    "Start",
		Position: Position{X: 250, Y: 50},
		Params:   NewParams(),
	}
	if c != nil {
		if def, ok := c.Get(catalog.KindStart); ok {
			start.Ports = Ports{
				Inputs:  append([]string(nil), def.Inputs...),
				Outputs: append([]string(nil), def.Outputs...),
			}
		}
	}
	_ = d.AddNode(start)
	d.MarkClean()
	return d
}
