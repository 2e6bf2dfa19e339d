package manifest

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// OrderedMap is a string-keyed JSON object that preserves insertion
// order across decode/encode, because spec §8's round-trip laws require
// that a "require" block with no actual changes re-serialize with its
// keys in the same order the manifest author wrote them — something
// Go's map type cannot guarantee.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]string)}
}

// Len reports the number of entries.
func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the constraint string for key and whether it was present.
func (m *OrderedMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set inserts or updates key. New keys are appended to the end,
// matching how Composer appends newly required packages.
func (m *OrderedMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key, if present.
func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// ToMap flattens m into a plain map, for callers (the rule generator, the
// pool builder) that only care about lookup, not declaration order.
func (m *OrderedMap) ToMap() map[string]string {
	out := make(map[string]string, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = v
	}
	return out
}

// FromMap builds an OrderedMap from a plain map, with keys appended in
// sorted order since a plain map has no declaration order to preserve.
func FromMap(in map[string]string) *OrderedMap {
	m := NewOrderedMap()
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Set(k, in[k])
	}
	return m
}

// UnmarshalJSON decodes a JSON object into an OrderedMap, preserving key
// order, and accepts the Composer quirk of "[]" standing in for "{}"
// when a map-typed field has never been populated (spec §8).
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		m.keys = nil
		m.values = make(map[string]string)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "decoding ordered map")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return errors.Errorf("expected JSON object, got %v", tok)
	}

	m.keys = nil
	m.values = make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "decoding ordered map key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("ordered map key is not a string")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "decoding ordered map value for %q", key)
		}
		m.Set(key, value)
	}
	return nil
}

// MarshalJSON re-encodes m preserving insertion order. An empty map
// still encodes as "{}", not "[]" — the "[]" quirk is accepted on
// decode only, never produced on encode.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		val, _ := m.Get(k)
		valJSON, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// OrderedMapRaw is like OrderedMap but keeps each value as a raw JSON
// fragment instead of a string, used for decoding the "repositories"
// object form and other maps-of-objects.
type OrderedMapRaw struct {
	Keys   []string
	Values map[string]json.RawMessage
}

// UnmarshalJSON decodes a JSON object preserving key order and raw
// per-value JSON.
func (m *OrderedMapRaw) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "decoding ordered raw map")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return errors.Errorf("expected JSON object, got %v", tok)
	}

	m.Keys = nil
	m.Values = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "decoding ordered raw map key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("ordered raw map key is not a string")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return errors.Wrapf(err, "decoding ordered raw map value for %q", key)
		}
		m.Keys = append(m.Keys, key)
		m.Values[key] = value
	}
	return nil
}
