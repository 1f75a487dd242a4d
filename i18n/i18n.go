// Package i18n localizes loksync's own console output.
//
// Translations ship inside the binary as gettext catalogs, one directory
// per language under locales/. Init matches the caller's language
// preferences against that embedded set and loads the winning catalog;
// English wins by default and needs no catalog because every msgid
// already is the English text.
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

// catalogs holds the embedded gettext files, laid out as
// locales/<lang>/LC_MESSAGES/loksync.po.
//
//go:embed all:locales
var catalogs embed.FS

// domain is the gettext domain, the basename of every catalog file.
const domain = "loksync"

// active is the loaded catalog; nil means English passthrough.
var active *gotext.Locale

// Init selects and loads the catalog for lang. An empty lang leaves the
// choice to the environment: the preferences from LANGUAGE, LC_ALL,
// LC_MESSAGES, and LANG are matched, in that order, against the embedded
// catalogs. Languages without a catalog fall back to English.
//
// Init should run once at program startup, before any T or N call.
func Init(lang string) {
	prefs := []string{lang}
	if lang == "" {
		prefs = envPreferences()
	}

	dir := matchCatalog(prefs)
	if dir == "" {
		active = nil
		return
	}

	l := gotext.NewLocaleFSWithPath(dir, catalogs, "locales")
	l.AddDomain(domain)
	l.SetDomain(domain)
	active = l
}

// T returns the translation of msgid, or msgid itself when no catalog is
// loaded or the catalog has no entry for it.
func T(msgid string) string {
	if active == nil {
		return msgid
	}
	// Called through a method value so vet's printf analyzer does not
	// take msgid for a format string; without vars, Get never formats.
	get := active.Get
	return get(msgid)
}

// N returns the plural form appropriate for n under the active language's
// plural rules. Without a catalog it applies English's two forms.
func N(singular, plural string, n int) string {
	if active == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return active.GetN(singular, plural, n)
}

// matchCatalog returns the embedded catalog directory best matching the
// preference list, or "" when English wins.
func matchCatalog(prefs []string) string {
	// English leads the supported list: it is the matcher's fallback and
	// stands for "no catalog needed".
	dirs := []string{"en"}
	if entries, err := fs.ReadDir(catalogs, "locales"); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, e.Name())
			}
		}
	}

	supported := make([]language.Tag, 0, len(dirs))
	supportedDirs := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		tag, err := language.Parse(dir)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		supportedDirs = append(supportedDirs, dir)
	}

	var wanted []language.Tag
	for _, pref := range prefs {
		if tag, err := language.Parse(pref); err == nil {
			wanted = append(wanted, tag)
		}
	}
	if len(wanted) == 0 {
		return ""
	}

	_, index, conf := language.NewMatcher(supported).Match(wanted...)
	if conf == language.No || supportedDirs[index] == "en" {
		return ""
	}
	return supportedDirs[index]
}

// envPreferences collects language preferences the way GNU gettext does:
// LANGUAGE (a colon-separated list) outranks LC_ALL, LC_MESSAGES, and
// LANG. Encoding suffixes (".UTF-8") and modifiers ("@euro") are
// stripped; "C" and "POSIX" mean untranslated output and are dropped.
func envPreferences() []string {
	var prefs []string
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		for _, val := range strings.Split(os.Getenv(env), ":") {
			if i := strings.IndexAny(val, ".@"); i >= 0 {
				val = val[:i]
			}
			if val == "" || val == "C" || val == "POSIX" {
				continue
			}
			prefs = append(prefs, val)
		}
	}
	return prefs
}
