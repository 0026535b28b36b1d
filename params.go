package pocketgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Params is an insertion-ordered mapping of parameter names to values.
// Values are the user-edited node parameters; they are expected to be
// strings or booleans, matching the editable surface of the properties
// panel. Order is preserved so that documents iterate and serialize stably.
type Params struct {
	keys   []string
	values map[string]any
}

// NewParams creates an empty parameter mapping.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// ParamsFrom builds a Params from alternating key/value pairs, preserving
// the given order. It panics on an odd number of arguments or a non-string
// key; it is intended for literals in tests and builtins.
func ParamsFrom(pairs ...any) *Params {
	if len(pairs)%2 != 0 {
		panic("pocketgraph: ParamsFrom requires key/value pairs")
	}
	p := NewParams()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("pocketgraph: ParamsFrom key %d is not a string", i/2))
		}
		p.Set(key, pairs[i+1])
	}
	return p
}

// Set stores a value under key, appending the key to the iteration order if
// it is new.
func (p *Params) Set(key string, value any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil || p.values == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// GetString returns the value under key as a string, or "" if absent or not
// a string.
func (p *Params) GetString(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetBool returns the value under key as a bool, or false if absent or not
// a bool.
func (p *Params) GetBool(key string) bool {
	v, ok := p.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Delete removes key from the mapping. Absent keys are a no-op.
func (p *Params) Delete(key string) {
	if p == nil || p.values == nil {
		return
	}
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Merge applies patch on top of the receiver, last write wins per key. New
// keys are appended in the patch's order.
func (p *Params) Merge(patch *Params) {
	if patch == nil {
		return
	}
	for _, key := range patch.keys {
		p.Set(key, patch.values[key])
	}
}

// Clone returns a deep-enough copy (values are scalars).
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	for _, key := range p.keys {
		out.Set(key, p.values[key])
	}
	return out
}

// Equal reports whether both mappings hold the same keys in the same order
// with equal values. A nil Params equals an empty one.
func (p *Params) Equal(other *Params) bool {
	if p.Len() != other.Len() {
		return false
	}
	if p == nil || other == nil {
		return true
	}
	for i, key := range p.keys {
		if other.keys[i] != key {
			return false
		}
		if !reflect.DeepEqual(p.values[key], other.values[key]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as a JSON object preserving key order.
func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil || len(p.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, fmt.Errorf("marshaling param %q: %w", key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the key order of the
// source document.
func (p *Params) UnmarshalJSON(data []byte) error {
	p.keys = nil
	p.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("params: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("params: expected object key, got %v", keyTok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("params: decoding value for %q: %w", key, err)
		}
		p.Set(key, normalizeParamValue(value))
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// normalizeParamValue converts json.Number tokens into plain strings so the
// value domain stays string|bool across round trips.
func normalizeParamValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	default:
		return v
	}
}
