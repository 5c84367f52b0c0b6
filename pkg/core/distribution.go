package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TypeCount is one entry of a TypeDistribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TypeDistribution maps equipment type to count while keeping the order in
// which the analytics service reported the keys. Charts label categories in
// that order, so a plain Go map is not enough.
type TypeDistribution struct {
	entries []TypeCount
	index   map[string]int
}

// NewTypeDistribution builds a distribution from ordered entries.
// A repeated type is rejected.
func NewTypeDistribution(entries ...TypeCount) (TypeDistribution, error) {
	var d TypeDistribution
	for _, e := range entries {
		if d.Has(e.Type) {
			return TypeDistribution{}, fmt.Errorf("duplicate equipment type %q", e.Type)
		}
		d.append(e)
	}
	return d, nil
}

// MustTypeDistribution is NewTypeDistribution for literals known to be valid.
func MustTypeDistribution(entries ...TypeCount) TypeDistribution {
	d, err := NewTypeDistribution(entries...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *TypeDistribution) append(e TypeCount) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	d.index[e.Type] = len(d.entries)
	d.entries = append(d.entries, e)
}

// Len returns the number of types.
func (d TypeDistribution) Len() int {
	return len(d.entries)
}

// Has reports whether typ is a key.
func (d TypeDistribution) Has(typ string) bool {
	_, ok := d.index[typ]
	return ok
}

// Count returns the count for typ (0 when absent).
func (d TypeDistribution) Count(typ string) int {
	if i, ok := d.index[typ]; ok {
		return d.entries[i].Count
	}
	return 0
}

// Entries returns a copy of the entries in reported order.
func (d TypeDistribution) Entries() []TypeCount {
	out := make([]TypeCount, len(d.entries))
	copy(out, d.entries)
	return out
}

// Types returns the keys in reported order.
func (d TypeDistribution) Types() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Type
	}
	return out
}

// Total returns the sum of all counts.
func (d TypeDistribution) Total() int {
	total := 0
	for _, e := range d.entries {
		total += e.Count
	}
	return total
}

// Clone returns an independent copy.
func (d TypeDistribution) Clone() TypeDistribution {
	var out TypeDistribution
	for _, e := range d.entries {
		out.append(e)
	}
	return out
}

// UnmarshalJSON decodes a JSON object, preserving key order.
func (d *TypeDistribution) UnmarshalJSON(data []byte) error {
	*d = TypeDistribution{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("type_distribution: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("type_distribution: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("type_distribution: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("type_distribution: expected string key, got %v", keyTok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("type_distribution[%q]: %w", key, err)
		}
		if d.Has(key) {
			return fmt.Errorf("type_distribution: duplicate key %q", key)
		}
		d.append(TypeCount{Type: key, Count: count})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("type_distribution: %w", err)
	}
	return nil
}

// MarshalJSON encodes the distribution as a JSON object in reported order.
func (d TypeDistribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", e.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
