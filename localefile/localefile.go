// Package localefile implements reading and writing of flat JSON locale files.
//
// Each locale is persisted as one <code>.json file holding a single
// string-to-string object:
//
//	{
//	  "checkout.title": "Checkout",
//	  "checkout.total": "Total: {amount, number}"
//	}
//
// Key order from the file is preserved on parse so that rewrites produce
// minimal diffs. Serialization uses 2-space indentation and exactly one
// trailing newline.
package localefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Map is an insertion-ordered mapping from translation key to value.
type Map struct {
	keys   []string
	values map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

// Parse parses a flat string-to-string JSON object preserving key order.
func Parse(data []byte) (*Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Read opening brace.
	t, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected {, got %v", t)
	}

	m := New()

	for dec.More() {
		// Read key.
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}

		// Read value.
		vt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		value, ok := vt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value for key %q, got %T", key, vt)
		}

		if m.Has(key) {
			return nil, fmt.Errorf("duplicate key %q", key)
		}
		m.Set(key, value)
	}

	// Read closing brace, then make sure nothing follows the object.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON object")
	}

	return m, nil
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position and only its value changes.
func (m *Map) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
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

// Keys returns the keys in map order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Marshal renders the map as a flat JSON object with 2-space indentation,
// keys in map order, and one trailing newline.
func (m *Map) Marshal() []byte {
	if m.Len() == 0 {
		return []byte("{}\n")
	}

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range m.keys {
		b.WriteString(fmt.Sprintf("  %s: %s", jsonString(k), jsonString(m.values[k])))
		if i < len(m.keys)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}\n")

	return []byte(b.String())
}

// jsonString returns the JSON encoding of s. JSON has no \xXX or \v
// escapes, so control characters outside \n, \r, \t get \uXXXX.
func jsonString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Bundle is the complete set of locale maps for one project, keyed by
// locale code. It is the unit the remote service exports per project.
type Bundle map[string]*Map

// Locales returns the bundle's locale codes in sorted order.
func (b Bundle) Locales() []string {
	locales := make([]string, 0, len(b))
	for code := range b {
		locales = append(locales, code)
	}
	sort.Strings(locales)
	return locales
}
