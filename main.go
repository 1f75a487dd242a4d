// loksync — keeps project locale files in lockstep with the remote translation service.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/loksync/loksync/config"
	"github.com/loksync/loksync/i18n"
	"github.com/loksync/loksync/remote"
	"github.com/loksync/loksync/syncer"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// colorsEnabled gates ANSI output: off when stderr is not a terminal or
// NO_COLOR is set.
var colorsEnabled = isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == ""

func tint(color, s string) string {
	if !colorsEnabled {
		return s
	}
	return color + s + colorReset
}

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, tint(colorBlue, "[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, tint(colorGreen, "[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, tint(colorYellow, "[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, tint(colorRed, "[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loksync",
		Short: "Keep local locale files in sync with the remote translation service",
		Long: `loksync — translation file synchronizer.

Pulls remote translations into per-locale JSON files, pushes local edits
back, validates ICU message syntax, and finds translation keys no source
file references anymore.

The reference locale (default_locale in .loksync.yaml) decides which keys
exist: keys added to it locally are seeded into the remote project on the
next sync, keys removed from it disappear from every locale everywhere.

Commands:
  sync           Pull then push every project
  pull           Download, reconcile, and rewrite locale files
  push           Validate and upload local locale files
  clean          Normalize locale files in place
  lint           Check ICU message syntax, write nothing
  find-unused    List reference keys no source file mentions
  remove-unused  Delete unused keys from every locale file

Requires a .loksync.yaml in the working directory (or a parent) and the
` + remote.TokenEnv + ` environment variable.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncCmd(),
		newPullCmd(),
		newPushCmd(),
		newCleanCmd(),
		newLintCmd(),
		newFindUnusedCmd(),
		newRemoveUnusedCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Startup plumbing
// ---------------------------------------------------------------------------

// errValidationFailed carries lint findings to the exit code after all
// reporting is done.
var errValidationFailed = errors.New("message validation failed")

// runEnv holds everything a command needs after startup validation.
type runEnv struct {
	projects []config.Project
	runner   *syncer.Runner
}

// setup loads and validates the configuration and the API token, then
// wires the runner. Any error here is fatal before a single project is
// touched.
func setup() (*runEnv, error) {
	path, err := config.Find(".")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	token := os.Getenv(remote.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%s is not set", remote.TokenEnv)
	}

	// One request per second towards the translation service, shared by
	// every project in the run.
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)

	runner := syncer.New(afero.NewOsFs(), remote.NewClient(token), limiter, syncer.Options{
		OnInfo:      logInfo,
		OnWarn:      logWarning,
		OnError:     logError,
		LocaleLabel: localeLabel,
	})

	return &runEnv{projects: cfg.Projects, runner: runner}, nil
}

// runCommand is the shared body of every subcommand: validate startup,
// drive the projects, map lint findings to a nonzero exit.
func runCommand(done string, drive func(*runEnv) (syncer.Outcome, error)) error {
	env, err := setup()
	if err != nil {
		return err
	}

	outcome, err := drive(env)
	if err != nil {
		return err
	}
	if outcome == syncer.LintFailed {
		return errValidationFailed
	}

	logSuccess("%s", done)
	return nil
}

// ---------------------------------------------------------------------------
// sync / pull / push
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull then push every project",
		Long: `Pull every project from the translation service, then push the
resulting files back, one project at a time.

A remote failure skips the affected project and the run continues; any
message validation finding stops the run with exit status 1 after it has
been reported in full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Sync complete"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.SyncAll(cmd.Context(), env.projects)
			})
		},
	}

	return cmd
}

func newPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download, reconcile, and rewrite locale files",
		Long: `Download every project's translation bundle, merge it with the local
reference locale, and rewrite the locale files on disk.

Keys added to the reference locale locally survive the pull with their
authored values; keys removed from it are dropped from every locale.
All other translations come from the remote bundle. Files are normalized
(sorted keys, cleaned whitespace) and validated afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Pull complete"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.PullAll(cmd.Context(), env.projects)
			})
		},
	}

	return cmd
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Validate and upload local locale files",
		Long: `Normalize and validate every project's locale files, then upload each
file to the translation service with full-replace semantics.

Validation findings block the upload for the whole run: nothing is sent
until every message parses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Push complete"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.PushAll(cmd.Context(), env.projects)
			})
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// clean / lint
// ---------------------------------------------------------------------------

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize locale files in place",
		Long: `Rewrite every project's locale files in canonical form: keys sorted
ascending, values stripped of tab runs and surrounding whitespace, keys
the reference locale no longer carries removed.

Unchanged files are left untouched, so repeated runs produce no diffs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Clean complete"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.CleanAll(env.projects)
			})
		},
	}

	return cmd
}

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check ICU message syntax, write nothing",
		Long: `Validate the ICU MessageFormat syntax of every value in every locale
file. Each broken message is reported with its file, key, and position.

Exits with status 1 when any project has findings; no file is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("All locale files are valid"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.LintAll(env.projects)
			})
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// find-unused / remove-unused
// ---------------------------------------------------------------------------

func newFindUnusedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find-unused",
		Short: "List reference keys no source file mentions",
		Long: `Scan every project's source tree for references to its reference-locale
keys and list the keys nothing mentions.

A key counts as used when it appears quoted in a source file, or when a
template literal interpolates its trailing segments, e.g. ` + "`items.${col}`" + `
matches "items.price". The check is textual, so keys assembled
dynamically beyond that pattern can show up as unused; review the list
before removing anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Scan complete"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.FindUnusedAll(env.projects)
			})
		},
	}

	return cmd
}

func newRemoveUnusedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-unused",
		Short: "Delete unused keys from every locale file",
		Long: `Scan every project's source tree, then rewrite its locale files keeping
only the keys the source still references.

Run find-unused first to review what would be deleted; the removal
itself does not ask for confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(i18n.T("Unused keys removed"), func(env *runEnv) (syncer.Outcome, error) {
				return env.runner.RemoveUnusedAll(env.projects)
			})
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loksync version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Locale presentation
// ---------------------------------------------------------------------------

// localeLabel renders a locale code for human output: "fr (French)",
// with an emoji flag when the code carries a region subtag. Codes the
// language registry does not know come back unchanged.
func localeLabel(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	if flag := langFlag(code); flag != "" {
		return fmt.Sprintf("%s %s (%s)", flag, code, name)
	}
	return fmt.Sprintf("%s (%s)", code, name)
}

// langFlag returns the emoji flag for a locale code with a region
// subtag: "pt-BR" → 🇧🇷. Codes without one yield "".
func langFlag(code string) string {
	code = strings.ReplaceAll(code, "_", "-")
	parts := strings.Split(code, "-")
	if len(parts) < 2 {
		return ""
	}
	return flagFromRegion(parts[len(parts)-1])
}

// flagFromRegion maps a two-letter region code to its regional
// indicator pair.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	r0 := unicode.ToUpper(rune(region[0]))
	r1 := unicode.ToUpper(rune(region[1]))
	if r0 < 'A' || r0 > 'Z' || r1 < 'A' || r1 > 'Z' {
		return ""
	}
	return string(rune(0x1F1E6+r0-'A')) + string(rune(0x1F1E6+r1-'A'))
}
