// Package scan classifies reference-locale keys as used or unused by
// searching a project's source tree for textual references.
//
// The analysis is deliberately textual, not syntactic: a key counts as used
// when it appears quoted anywhere in the concatenated source text, or when
// a backtick template interpolates its trailing segments. Missed dynamic
// usages and accidental matches inside unrelated strings are accepted
// limitations of this approach.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// SourceExtensions marks the implementation-file extensions whose content
// is searched for key usage.
var SourceExtensions = map[string]bool{
	".js":     true,
	".jsx":    true,
	".ts":     true,
	".tsx":    true,
	".vue":    true,
	".svelte": true,
	".html":   true,
}

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"coverage":     true,
}

// Collect concatenates the text of every source file under dir, joined with
// line separators. The directory itself must be readable; unreadable entries
// below it are skipped. A missing source tree is an error, never an empty
// result, so that unused-key detection cannot mistake a bad path for a
// project without references.
func Collect(fsys afero.Fs, dir string) (string, error) {
	var parts []string

	err := afero.Walk(fsys, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !SourceExtensions[filepath.Ext(path)] {
			return nil
		}

		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		parts = append(parts, string(data))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", dir, err)
	}

	return strings.Join(parts, "\n"), nil
}

// Report splits a key set into the keys the source text references and the
// keys it does not. Both lists keep the input key order.
type Report struct {
	Used   []string
	Unused []string
}

// Scan classifies every key against the collected source text.
func Scan(source string, keys []string) Report {
	var r Report
	for _, k := range keys {
		if Used(source, k) {
			r.Used = append(r.Used, k)
		} else {
			r.Unused = append(r.Unused, k)
		}
	}
	return r
}

// Used reports whether source references key, either as a quoted literal or
// through a backtick template that interpolates the last one or two key
// segments, e.g. `section.${field}` for "section.field.price".
func Used(source, key string) bool {
	for _, quote := range []string{`"`, "`", `'`} {
		if strings.Contains(source, quote+key+quote) {
			return true
		}
	}

	prefix := key
	for i := 0; i < 2; i++ {
		dot := strings.LastIndex(prefix, ".")
		if dot < 0 {
			break
		}
		prefix = prefix[:dot]
		if strings.Contains(source, "`"+prefix+".${") {
			return true
		}
	}

	return false
}
