// Package catalog provides the node-type metadata catalog for the editor.
// It maps kind names to their declared ports and parameter schema, as served
// by the executor's /api/nodes endpoint. The placement resolver and the
// properties panel consult it; nothing in the editor mutates it.
package catalog

import (
	"encoding/json"
	"fmt"
	"sync"
)

// NodeTypeDef describes one node kind known to the remote executor.
type NodeTypeDef struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Inputs      []string   `json:"inputs"`
	Outputs     []string   `json:"outputs"`
	Params      []ParamDef `json:"params,omitempty"`
}

// ParamDef describes a single configurable parameter of a node kind.
type ParamDef struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "int", "boolean"
	Default     any      `json:"default,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Param returns the parameter definition with the given name.
func (d NodeTypeDef) Param(name string) (ParamDef, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamDef{}, false
}

// Catalog holds all known node types in registration order. It is safe for
// concurrent readers.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]NodeTypeDef
	order []string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{types: make(map[string]NodeTypeDef)}
}

// Register adds a node type definition. A definition with the same type
// name overwrites the previous one but keeps its position.
func (c *Catalog) Register(def NodeTypeDef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.types[def.Type]; !exists {
		c.order = append(c.order, def.Type)
	}
	c.types[def.Type] = def
}

// Get returns a node type definition by kind.
func (c *Catalog) Get(kind string) (NodeTypeDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.types[kind]
	return def, ok
}

// Has reports whether the kind is registered.
func (c *Catalog) Has(kind string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.types[kind]
	return ok
}

// All returns all node types in registration order.
func (c *Catalog) All() []NodeTypeDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NodeTypeDef, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.types[name])
	}
	return out
}

// Len returns the number of registered node types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// FromDefs builds a catalog from a definition list, preserving order.
func FromDefs(defs []NodeTypeDef) *Catalog {
	c := New()
	for _, def := range defs {
		c.Register(def)
	}
	return c
}

// DecodeList parses the JSON payload of the node-type listing endpoint.
func DecodeList(data []byte) ([]NodeTypeDef, error) {
	var defs []NodeTypeDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decoding node-type list: %w", err)
	}
	return defs, nil
}
