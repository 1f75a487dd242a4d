// Package syncer sequences translation work across the configured projects.
//
// A Runner owns the collaborators every command needs: the locale file
// store, the remote exchange, and the shared request limiter that keeps
// traffic to the translation service under one request per second.
// Projects are processed strictly one at a time, in configuration order.
//
// Per-project operations (Pull, Push, Clean, Lint, FindUnused,
// RemoveUnused) return data and errors; the multi-project drivers
// (SyncAll, PullAll, ...) add the failure-isolation policy: a remote
// call failure or a bundle without the default locale skips that project
// and the run continues, while a local parse or I/O error aborts the
// whole run. Lint findings stop sync/pull/push after they are fully
// reported. Nothing in this package exits the process; the CLI maps the
// returned Outcome and error to an exit code.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/loksync/loksync/config"
	"github.com/loksync/loksync/icu"
	"github.com/loksync/loksync/localefile"
	"github.com/loksync/loksync/normalize"
	"github.com/loksync/loksync/reconcile"
	"github.com/loksync/loksync/remote"
	"github.com/loksync/loksync/scan"
)

// ---------------------------------------------------------------------------
// Outcome
// ---------------------------------------------------------------------------

// Outcome is the overall result of a multi-project command.
type Outcome int

const (
	// OK means the command finished without validation findings.
	OK Outcome = iota
	// LintFailed means at least one message failed validation. The
	// command's reporting is complete, but the process must exit nonzero.
	LintFailed
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options carries the presentation callbacks. The syncer reports through
// them and never prints on its own, so the CLI decides color and wording
// and tests record lines instead of parsing output.
type Options struct {
	// OnInfo emits progress and summary lines.
	OnInfo func(format string, args ...any)
	// OnWarn emits findings that do not fail the run.
	OnWarn func(format string, args ...any)
	// OnError emits per-key validation errors and skipped-project reports.
	OnError func(format string, args ...any)
	// LocaleLabel renders a locale code for human output, e.g.
	// "fr (French)". Nil leaves codes bare.
	LocaleLabel func(code string) string
}

func (o *Options) info(format string, args ...any) {
	if o.OnInfo != nil {
		o.OnInfo(format, args...)
	}
}

func (o *Options) warn(format string, args ...any) {
	if o.OnWarn != nil {
		o.OnWarn(format, args...)
	} else if o.OnInfo != nil {
		o.OnInfo(format, args...)
	}
}

func (o *Options) errorf(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnInfo != nil {
		o.OnInfo(format, args...)
	}
}

func (o *Options) locale(code string) string {
	if o.LocaleLabel != nil {
		return o.LocaleLabel(code)
	}
	return code
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// RemoteError marks a failed call to the translation service. The drivers
// treat it as a per-project failure: the project is skipped and the run
// continues. Remote calls are never retried.
type RemoteError struct {
	Err error
}

func (e *RemoteError) Error() string { return e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// Runner executes commands against a set of projects.
type Runner struct {
	fs       afero.Fs
	store    *localefile.Store
	exchange remote.Exchange
	limiter  *rate.Limiter
	opts     Options
}

// New returns a Runner. The limiter is waited on before every download
// and upload; production passes one token per second, tests pass
// rate.NewLimiter(rate.Inf, 1) to run without delays.
func New(fs afero.Fs, exchange remote.Exchange, limiter *rate.Limiter, opts Options) *Runner {
	return &Runner{
		fs:       fs,
		store:    localefile.NewStore(fs),
		exchange: exchange,
		limiter:  limiter,
		opts:     opts,
	}
}

// reference reads the project's reference locale, the authority over
// which keys exist.
func (r *Runner) reference(p config.Project) (*localefile.Map, error) {
	ref, err := r.store.Read(p.LocalesDir, p.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("reference locale: %w", err)
	}
	return ref, nil
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

// PullResult summarizes one project's pull.
type PullResult struct {
	// Added holds keys authored locally that the remote project did not
	// know yet; their local values were seeded into the bundle.
	Added []string
	// Removed holds keys retired from the reference locale; they were
	// dropped from every locale in the bundle.
	Removed []string
	// Locales lists the locale codes the bundle carried, sorted.
	Locales []string
	// Written counts locale files whose on-disk content changed.
	Written int
	// LintErrors counts message syntax findings after the pull.
	LintErrors int
}

// Pull downloads the project's bundle, reconciles it against the local
// reference locale, rewrites every locale file, then normalizes and
// lints the result. When no reference file exists yet (a fresh checkout
// before any local authoring) the remote bundle is adopted as-is.
func (r *Runner) Pull(ctx context.Context, p config.Project) (*PullResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bundle, err := r.exchange.Download(ctx, p.ID)
	if err != nil {
		return nil, &RemoteError{Err: fmt.Errorf("downloading project %s: %w", p.ID, err)}
	}

	res := &PullResult{}

	ref, err := r.store.Read(p.LocalesDir, p.DefaultLocale)
	switch {
	case errors.Is(err, localefile.ErrNotFound):
		if _, ok := bundle[p.DefaultLocale]; !ok {
			return nil, fmt.Errorf("%q: %w", p.DefaultLocale, reconcile.ErrMissingDefaultLocale)
		}
	case err != nil:
		return nil, err
	default:
		added, removed, err := reconcile.Reconcile(bundle, ref, p.DefaultLocale)
		if err != nil {
			return nil, err
		}
		res.Added, res.Removed = added, removed
	}

	res.Locales = bundle.Locales()
	changed := make(map[string]bool)
	for _, locale := range res.Locales {
		wrote, err := r.store.Write(p.LocalesDir, locale, bundle[locale])
		if err != nil {
			return nil, err
		}
		if wrote {
			changed[locale] = true
		}
	}

	// The clean pass may touch files the bundle write skipped, e.g. when
	// only the key order on disk was off.
	cleaned, err := r.clean(p)
	if err != nil {
		return nil, err
	}
	for _, locale := range cleaned {
		changed[locale] = true
	}
	res.Written = len(changed)

	res.LintErrors, err = r.Lint(p)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

// PushResult summarizes one project's push.
type PushResult struct {
	// Uploaded lists the locale codes whose files reached the remote.
	Uploaded []string
	// LintErrors counts message syntax findings. Any finding blocks the
	// entire upload.
	LintErrors int
}

// Push normalizes and lints the project's locale files, then uploads
// every file found on disk with full-replace semantics. Files that fail
// validation block the whole upload; nothing is sent.
func (r *Runner) Push(ctx context.Context, p config.Project) (*PushResult, error) {
	if _, err := r.Clean(p); err != nil {
		return nil, err
	}

	res := &PushResult{}
	var err error
	res.LintErrors, err = r.Lint(p)
	if err != nil {
		return nil, err
	}
	if res.LintErrors > 0 {
		return res, nil
	}

	locales, err := r.store.List(p.LocalesDir)
	if err != nil {
		return nil, err
	}

	for _, locale := range locales {
		path := localefile.Path(p.LocalesDir, locale)
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", path, err)
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return res, err
		}
		if err := r.exchange.Upload(ctx, p.ID, locale, data); err != nil {
			return res, &RemoteError{Err: fmt.Errorf("uploading %s.json: %w", locale, err)}
		}
		res.Uploaded = append(res.Uploaded, locale)
		r.opts.info("%s: uploaded %s", p.Name, r.opts.locale(locale))
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Clean
// ---------------------------------------------------------------------------

// Clean normalizes every locale file of the project in place: keys the
// reference locale no longer carries are dropped, values lose tab runs
// and surrounding whitespace, and keys are rewritten in ascending order.
// Returns how many files actually changed.
func (r *Runner) Clean(p config.Project) (int, error) {
	rewritten, err := r.clean(p)
	return len(rewritten), err
}

// clean is Clean reporting the rewritten locale codes.
func (r *Runner) clean(p config.Project) ([]string, error) {
	ref, err := r.reference(p)
	if err != nil {
		return nil, err
	}
	allowed := ref.Keys()

	locales, err := r.store.List(p.LocalesDir)
	if err != nil {
		return nil, err
	}

	var rewritten []string
	for _, locale := range locales {
		m, err := r.store.Read(p.LocalesDir, locale)
		if err != nil {
			return rewritten, err
		}
		wrote, err := r.store.Write(p.LocalesDir, locale, normalize.Normalize(m, allowed))
		if err != nil {
			return rewritten, err
		}
		if wrote {
			rewritten = append(rewritten, locale)
		}
	}
	return rewritten, nil
}

// ---------------------------------------------------------------------------
// Lint
// ---------------------------------------------------------------------------

// Lint validates the message syntax of every locale file and reports
// each finding through the error callback. It returns the number of
// findings and never modifies a file.
func (r *Runner) Lint(p config.Project) (int, error) {
	locales, err := r.store.List(p.LocalesDir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, locale := range locales {
		m, err := r.store.Read(p.LocalesDir, locale)
		if err != nil {
			return count, err
		}
		for _, ke := range icu.Lint(m) {
			r.opts.errorf("%s: %q: %v", localefile.Path(p.LocalesDir, locale), ke.Key, ke.Err)
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Unused keys
// ---------------------------------------------------------------------------

// FindUnused classifies every reference-locale key of the project as
// used or unused by searching the project's source tree. Read-only.
func (r *Runner) FindUnused(p config.Project) (scan.Report, error) {
	ref, err := r.reference(p)
	if err != nil {
		return scan.Report{}, err
	}

	source, err := scan.Collect(r.fs, p.SourceDir)
	if err != nil {
		return scan.Report{}, err
	}
	return scan.Scan(source, ref.Keys()), nil
}

// RemoveUnused scans the source tree, then rewrites every locale file
// keeping only the keys the source still references. Returns the scan
// report and how many files changed.
func (r *Runner) RemoveUnused(p config.Project) (scan.Report, int, error) {
	report, err := r.FindUnused(p)
	if err != nil {
		return report, 0, err
	}

	locales, err := r.store.List(p.LocalesDir)
	if err != nil {
		return report, 0, err
	}

	rewritten := 0
	for _, locale := range locales {
		m, err := r.store.Read(p.LocalesDir, locale)
		if err != nil {
			return report, rewritten, err
		}
		wrote, err := r.store.Write(p.LocalesDir, locale, normalize.Normalize(m, report.Used))
		if err != nil {
			return report, rewritten, err
		}
		if wrote {
			rewritten++
		}
	}
	return report, rewritten, nil
}

// ---------------------------------------------------------------------------
// Multi-project drivers
// ---------------------------------------------------------------------------

// projectFailure reports whether err concerns only one project. Remote
// call failures and bundles without the default locale skip the project;
// everything else (malformed local files, I/O errors) is corrupted local
// state and aborts the run.
func projectFailure(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) || errors.Is(err, reconcile.ErrMissingDefaultLocale)
}

// SyncAll pulls then pushes each project in order. A per-project failure
// during either half skips the rest of that project; lint findings stop
// the run after they are reported.
func (r *Runner) SyncAll(ctx context.Context, projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		res, err := r.Pull(ctx, p)
		if err != nil {
			if projectFailure(err) {
				r.opts.errorf("%s: skipped: %v", p.Name, err)
				continue
			}
			return OK, err
		}
		r.reportPull(p, res)
		if res.LintErrors > 0 {
			return LintFailed, nil
		}

		push, err := r.Push(ctx, p)
		if err != nil {
			if projectFailure(err) {
				r.opts.errorf("%s: skipped: %v", p.Name, err)
				continue
			}
			return OK, err
		}
		if push.LintErrors > 0 {
			return LintFailed, nil
		}
		r.opts.info("%s: uploaded %d locale files", p.Name, len(push.Uploaded))
	}
	return OK, nil
}

// PullAll pulls each project in order.
func (r *Runner) PullAll(ctx context.Context, projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		res, err := r.Pull(ctx, p)
		if err != nil {
			if projectFailure(err) {
				r.opts.errorf("%s: skipped: %v", p.Name, err)
				continue
			}
			return OK, err
		}
		r.reportPull(p, res)
		if res.LintErrors > 0 {
			return LintFailed, nil
		}
	}
	return OK, nil
}

// PushAll pushes each project in order.
func (r *Runner) PushAll(ctx context.Context, projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		res, err := r.Push(ctx, p)
		if err != nil {
			if projectFailure(err) {
				r.opts.errorf("%s: skipped: %v", p.Name, err)
				continue
			}
			return OK, err
		}
		if res.LintErrors > 0 {
			return LintFailed, nil
		}
		r.opts.info("%s: uploaded %d locale files", p.Name, len(res.Uploaded))
	}
	return OK, nil
}

// CleanAll normalizes every project's locale files.
func (r *Runner) CleanAll(projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		rewritten, err := r.Clean(p)
		if err != nil {
			return OK, err
		}
		if rewritten == 0 {
			r.opts.info("%s: already clean", p.Name)
		} else {
			r.opts.info("%s: rewrote %d locale files", p.Name, rewritten)
		}
	}
	return OK, nil
}

// LintAll validates every project's locale files. Unlike sync/pull/push
// it always visits every project and reports LintFailed at the end.
func (r *Runner) LintAll(projects []config.Project) (Outcome, error) {
	outcome := OK
	for _, p := range projects {
		count, err := r.Lint(p)
		if err != nil {
			return outcome, err
		}
		if count > 0 {
			r.opts.warn("%s: %d message syntax problems", p.Name, count)
			outcome = LintFailed
		} else {
			r.opts.info("%s: all messages valid", p.Name)
		}
	}
	return outcome, nil
}

// FindUnusedAll reports each project's unused reference keys. Read-only.
func (r *Runner) FindUnusedAll(projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		report, err := r.FindUnused(p)
		if err != nil {
			return OK, err
		}
		total := len(report.Used) + len(report.Unused)
		if len(report.Unused) == 0 {
			r.opts.info("%s: all %d keys are referenced", p.Name, total)
			continue
		}
		r.opts.warn("%s: %d of %d keys are unused:", p.Name, len(report.Unused), total)
		for _, k := range report.Unused {
			r.opts.info("  %s", k)
		}
	}
	return OK, nil
}

// RemoveUnusedAll deletes each project's unused keys from every locale
// file on disk.
func (r *Runner) RemoveUnusedAll(projects []config.Project) (Outcome, error) {
	for _, p := range projects {
		report, rewritten, err := r.RemoveUnused(p)
		if err != nil {
			return OK, err
		}
		if len(report.Unused) == 0 {
			r.opts.info("%s: no unused keys", p.Name)
			continue
		}
		r.opts.info("%s: removed %d unused keys (%s), rewrote %d files",
			p.Name, len(report.Unused), strings.Join(report.Unused, ", "), rewritten)
	}
	return OK, nil
}

// reportPull logs one project's pull summary.
func (r *Runner) reportPull(p config.Project, res *PullResult) {
	labels := make([]string, len(res.Locales))
	for i, code := range res.Locales {
		labels[i] = r.opts.locale(code)
	}
	r.opts.info("%s: pulled %s", p.Name, strings.Join(labels, ", "))
	if len(res.Added) > 0 {
		r.opts.info("%s: %d new local keys seeded: %s", p.Name, len(res.Added), strings.Join(res.Added, ", "))
	}
	if len(res.Removed) > 0 {
		r.opts.info("%s: %d retired keys removed: %s", p.Name, len(res.Removed), strings.Join(res.Removed, ", "))
	}
	r.opts.info("%s: %d locale files changed", p.Name, res.Written)
}
