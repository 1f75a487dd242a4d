// Package config — .loksync.yaml configuration file support.
//
// The .loksync.yaml file is the sole source of truth for which projects
// loksync manages. Every project must be explicitly declared; there is no
// auto-detection. The file is loaded once at startup and validated before
// any command runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .loksync.yaml structure.
type File struct {
	// Projects is the list of managed translation projects.
	Projects []Project `yaml:"projects"`
}

// Project describes a single unit of translation work.
type Project struct {
	// Name is a unique label, also used as a path segment in output.
	Name string `yaml:"name"`
	// ID is the project identifier at the remote translation service.
	ID string `yaml:"id"`
	// DefaultLocale is the reference locale code (default "en"). The
	// reference locale's file decides which keys are allowed to exist.
	DefaultLocale string `yaml:"default_locale,omitempty"`
	// SourceDir is the source tree scanned for key usage, relative to
	// the config file.
	SourceDir string `yaml:"source_dir"`
	// LocalesDir is the directory holding one <locale>.json per locale,
	// relative to the config file.
	LocalesDir string `yaml:"locales_dir"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// FileName is the config file name.
const FileName = ".loksync.yaml"

// Find walks up from startDir looking for a .loksync.yaml file and returns
// its path.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory", FileName, startDir)
		}
		dir = parent
	}
}

// Load reads, validates, and resolves the config file at path. Project
// directories come back as absolute paths anchored at the config file's
// directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(f.Projects) == 0 {
		return nil, fmt.Errorf("%s: no projects declared", path)
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	// Validate & resolve projects
	seen := make(map[string]bool)
	for i := range f.Projects {
		p := &f.Projects[i]

		if p.Name == "" {
			return nil, fmt.Errorf("%s: project #%d has no name", path, i+1)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%s: duplicate project name %q", path, p.Name)
		}
		seen[p.Name] = true

		if p.ID == "" {
			return nil, fmt.Errorf("%s: project %q has no id", path, p.Name)
		}

		// Default reference locale
		if p.DefaultLocale == "" {
			p.DefaultLocale = "en"
		}
		if _, err := language.Parse(p.DefaultLocale); err != nil {
			return nil, fmt.Errorf("%s: project %q has invalid default locale %q", path, p.Name, p.DefaultLocale)
		}

		if p.SourceDir == "" {
			return nil, fmt.Errorf("%s: project %q has no source_dir", path, p.Name)
		}
		if p.LocalesDir == "" {
			return nil, fmt.Errorf("%s: project %q has no locales_dir", path, p.Name)
		}

		if !filepath.IsAbs(p.SourceDir) {
			p.SourceDir = filepath.Join(root, p.SourceDir)
		}
		if !filepath.IsAbs(p.LocalesDir) {
			p.LocalesDir = filepath.Join(root, p.LocalesDir)
		}
	}

	return &f, nil
}
