package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loksync/loksync/remote"
	"github.com/loksync/loksync/syncer"
)

func TestFlagFromRegion(t *testing.T) {
	if got := flagFromRegion("us"); got != "🇺🇸" {
		t.Fatalf("flagFromRegion(us) = %q, want %q", got, "🇺🇸")
	}
	if got := flagFromRegion("USA"); got != "" {
		t.Fatalf("flagFromRegion(USA) = %q, want empty", got)
	}
	if got := flagFromRegion("1A"); got != "" {
		t.Fatalf("flagFromRegion(1A) = %q, want empty", got)
	}
}

func TestLangFlag(t *testing.T) {
	if got := langFlag("zz-BR"); got != "🇧🇷" {
		t.Fatalf("langFlag(zz-BR) = %q, want %q", got, "🇧🇷")
	}
	if got := langFlag("pt_BR"); got != "🇧🇷" {
		t.Fatalf("langFlag(pt_BR) = %q, want %q", got, "🇧🇷")
	}
	if got := langFlag("invalid"); got != "" {
		t.Fatalf("langFlag(invalid) = %q, want empty", got)
	}
	if got := langFlag("zh-Hant"); got != "" {
		t.Fatalf("langFlag(zh-Hant) = %q, want empty", got)
	}
}

func TestLocaleLabel(t *testing.T) {
	if got := localeLabel("de"); got != "de (German)" {
		t.Fatalf("localeLabel(de) = %q, want %q", got, "de (German)")
	}

	label := localeLabel("pt-BR")
	if !strings.Contains(label, "🇧🇷") || !strings.Contains(label, "pt-BR") || !strings.Contains(label, "Portuguese") {
		t.Fatalf("localeLabel(pt-BR) = %q, want flag, code, and display name", label)
	}

	if got := localeLabel("!!"); got != "!!" {
		t.Fatalf("localeLabel(!!) = %q, want code unchanged", got)
	}
}

func TestTint(t *testing.T) {
	orig := colorsEnabled
	defer func() { colorsEnabled = orig }()

	colorsEnabled = false
	if got := tint(colorRed, "boom"); got != "boom" {
		t.Fatalf("tint() with colors off = %q, want plain text", got)
	}

	colorsEnabled = true
	if got := tint(colorRed, "boom"); got != colorRed+"boom"+colorReset {
		t.Fatalf("tint() with colors on = %q, want wrapped in escapes", got)
	}
}

// chdirWithConfig drops a minimal .loksync.yaml into a temp dir and makes
// it the working directory for the duration of the test.
func chdirWithConfig(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	body := `projects:
  - name: web
    id: "123.abc"
    source_dir: src
    locales_dir: locales
`
	if err := os.WriteFile(filepath.Join(dir, ".loksync.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("os.WriteFile() error: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("os.Getwd() error: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("os.Chdir() error: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestSetupRequiresToken(t *testing.T) {
	chdirWithConfig(t)
	t.Setenv(remote.TokenEnv, "")

	_, err := setup()
	if err == nil || !strings.Contains(err.Error(), remote.TokenEnv) {
		t.Fatalf("setup() without token error = %v, want mention of %s", err, remote.TokenEnv)
	}
}

func TestSetupLoadsProjects(t *testing.T) {
	chdirWithConfig(t)
	t.Setenv(remote.TokenEnv, "tok")

	env, err := setup()
	if err != nil {
		t.Fatalf("setup() error: %v", err)
	}
	if env.runner == nil {
		t.Fatalf("setup() returned nil runner")
	}
	if len(env.projects) != 1 || env.projects[0].Name != "web" {
		t.Fatalf("setup() projects = %#v, want one project named web", env.projects)
	}
	if env.projects[0].DefaultLocale != "en" {
		t.Fatalf("DefaultLocale = %q, want default en", env.projects[0].DefaultLocale)
	}
	if !filepath.IsAbs(env.projects[0].LocalesDir) {
		t.Fatalf("LocalesDir = %q, want absolute", env.projects[0].LocalesDir)
	}
}

func TestRunCommandMapsOutcome(t *testing.T) {
	chdirWithConfig(t)
	t.Setenv(remote.TokenEnv, "tok")

	err := runCommand("done", func(env *runEnv) (syncer.Outcome, error) {
		return syncer.LintFailed, nil
	})
	if !errors.Is(err, errValidationFailed) {
		t.Fatalf("runCommand() with lint findings error = %v, want errValidationFailed", err)
	}

	if err := runCommand("done", func(env *runEnv) (syncer.Outcome, error) {
		return syncer.OK, nil
	}); err != nil {
		t.Fatalf("runCommand() error = %v, want nil", err)
	}

	boom := errors.New("boom")
	if err := runCommand("done", func(env *runEnv) (syncer.Outcome, error) {
		return syncer.OK, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("runCommand() error = %v, want driver error passed through", err)
	}
}
