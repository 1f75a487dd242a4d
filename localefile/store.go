package localefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Store.Read when the locale file does not exist.
var ErrNotFound = errors.New("locale file not found")

// ErrParse is returned by Store.Read when the locale file is not a valid
// flat string-to-string JSON object.
var ErrParse = errors.New("invalid locale file")

// Store reads and writes locale files through an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore returns a Store backed by fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Path returns the file path of a locale inside dir.
func Path(dir, locale string) string {
	return filepath.Join(dir, locale+".json")
}

// Read loads and parses the locale file for locale inside dir.
func (s *Store) Read(dir, locale string) (*Map, error) {
	path := Path(dir, locale)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrParse, err)
	}
	return m, nil
}

// Write serializes m to the locale file inside dir. The write is skipped
// when the serialized content is byte-identical to the existing file, so
// unchanged files keep their modification time. Otherwise the content goes
// through a same-directory temp file and a rename, so a crash never leaves
// a half-written locale file behind.
func (s *Store) Write(dir, locale string, m *Map) (bool, error) {
	path := Path(dir, locale)
	data := m.Marshal()

	if existing, err := afero.ReadFile(s.fs, path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+locale+".json.*")
	if err != nil {
		return false, fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return false, fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return false, fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := s.fs.Chmod(tmpName, 0644); err != nil {
		s.fs.Remove(tmpName)
		return false, fmt.Errorf("writing %s: %w", tmpName, err)
	}

	if err := s.fs.Rename(tmpName, path); err != nil {
		// MemMapFs refuses to rename over an existing file.
		if rmErr := s.fs.Remove(path); rmErr != nil {
			s.fs.Remove(tmpName)
			return false, fmt.Errorf("replacing %s: %w", path, err)
		}
		if err := s.fs.Rename(tmpName, path); err != nil {
			s.fs.Remove(tmpName)
			return false, fmt.Errorf("replacing %s: %w", path, err)
		}
	}

	return true, nil
}

// List returns the locale codes of all *.json files directly inside dir,
// sorted ascending.
func (s *Store) List(dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var locales []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		locales = append(locales, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(locales)
	return locales, nil
}
