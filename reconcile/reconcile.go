// Package reconcile merges a downloaded translation bundle with the locally
// tracked reference locale.
//
// The reference locale is the single authority over which keys exist. Keys
// it carries that the remote default locale does not know yet are newly
// authored and get seeded into the bundle with their local values. Keys the
// remote default locale still carries but the reference no longer has are
// retired and disappear from every locale in the bundle. Translated values
// for everything else always come from the remote side.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/loksync/loksync/localefile"
)

// ErrMissingDefaultLocale is returned when the downloaded bundle carries no
// map for the project's default locale. Nothing can be reconciled against
// in that case, so the caller must not write any files for the project.
var ErrMissingDefaultLocale = errors.New("bundle is missing the default locale")

// Reconcile applies local key additions and removals to b in place.
//
//   - Keys present in ref but absent from b[defaultLocale] are added to
//     b[defaultLocale] with the locally authored value, so the new text
//     shows up in the written files before it is translated upstream.
//   - Keys present in b[defaultLocale] but absent from ref are deleted
//     from every locale map in b, not just the default one.
//
// Returns the added and removed key lists for reporting.
func Reconcile(b localefile.Bundle, ref *localefile.Map, defaultLocale string) (added, removed []string, err error) {
	def, ok := b[defaultLocale]
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", defaultLocale, ErrMissingDefaultLocale)
	}

	// Local additions: in the reference, unknown to the remote.
	for _, k := range ref.Keys() {
		if !def.Has(k) {
			v, _ := ref.Get(k)
			def.Set(k, v)
			added = append(added, k)
		}
	}

	// Local removals: known to the remote, retired from the reference.
	for _, k := range def.Keys() {
		if !ref.Has(k) {
			removed = append(removed, k)
		}
	}
	for _, k := range removed {
		for _, m := range b {
			m.Delete(k)
		}
	}

	return added, removed, nil
}
