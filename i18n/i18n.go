// Package i18n translates stringlate's own messages.
//
// Catalogs are gettext .po files embedded under locales/<lang>/LC_MESSAGES/
// and read with gotext. Messages without a translation are returned as is,
// so callers always pass the English text as the msgid:
//
//	i18n.Init("")
//	logInfo(i18n.N("Removed %d translation", "Removed %d translations", n), n)
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "stringlate"

var po *gotext.Locale

// Init loads the catalog for lang, or for the language of the environment
// when lang is empty. Call it once before the first T or N.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T returns the translation of msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N returns the plural form of a message for n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage follows gettext's lookup order: LANGUAGE, LC_ALL,
// LC_MESSAGES, then LANG. "C" and "POSIX" mean untranslated.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		val, _, _ = strings.Cut(val, ".")
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
