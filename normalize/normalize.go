// Package normalize canonicalizes locale maps for deterministic output.
//
// Normalization drops keys the reference locale no longer allows, cleans
// whitespace damage out of values, and fixes the key order to ascending
// lexicographic, so that serialized locale files diff minimally between
// runs regardless of the order the remote service exported them in.
package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/loksync/loksync/localefile"
)

var tabRun = regexp.MustCompile(`\t+`)

// CleanValue replaces every run of tab characters with a single space and
// strips leading and trailing whitespace.
func CleanValue(s string) string {
	return strings.TrimSpace(tabRun.ReplaceAllString(s, " "))
}

// Normalize returns a new map holding only the keys of m that appear in
// allowed, with cleaned values and keys in ascending lexicographic order.
// m itself is never modified.
func Normalize(m *localefile.Map, allowed []string) *localefile.Map {
	keep := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		keep[k] = true
	}

	var keys []string
	for _, k := range m.Keys() {
		if keep[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := localefile.New()
	for _, k := range keys {
		v, _ := m.Get(k)
		out.Set(k, CleanValue(v))
	}
	return out
}
