package android

import (
	"path"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Locale detection from res/ paths
// ---------------------------------------------------------------------------

var (
	// reValuesLocale matches ".../values[-qualifier]/<file>.xml".
	reValuesLocale = regexp.MustCompile(`(?:^|/)values(?:-([\w-]+))?/[^/]+?\.xml$`)

	// reDoNotTranslate matches default resource file names that hold strings
	// which should never be translated ("donottranslate.xml", "untranslatable.xml").
	reDoNotTranslate = regexp.MustCompile(`(?i)(?:do?[ _-]*no?t?|[u|i]n)[ _-]*trans(?:lat(?:e|able))?`)
)

// ValuesLocale returns the locale qualifier of a resources path such as
// "app/src/main/res/values-pt-rBR/strings.xml". The default values/ directory
// yields ("", true). Paths outside a values directory yield ("", false).
func ValuesLocale(p string) (locale string, ok bool) {
	m := reValuesLocale.FindStringSubmatch(path.Clean(strings.ReplaceAll(p, `\`, "/")))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DoNotTranslate reports whether a default resource file name marks strings
// that must not be translated.
func DoNotTranslate(name string) bool {
	return reDoNotTranslate.MatchString(path.Base(name))
}

// TemplatePath maps the remote path of a default resource file to the path
// of its translation for locale ("res/values/x.xml" -> "res/values-es/x.xml").
func TemplatePath(remotePath, locale string) string {
	p := strings.ReplaceAll(remotePath, `\`, "/")
	if strings.HasPrefix(p, "values/") {
		return "values-" + locale + "/" + strings.TrimPrefix(p, "values/")
	}
	return strings.Replace(p, "/values/", "/values-"+locale+"/", 1)
}

// StandardLocale converts an Android locale qualifier to BCP-47.
// e.g., "pt-rBR" -> "pt-BR", "zh-rCN" -> "zh-CN", "ru" -> "ru"
func StandardLocale(androidLocale string) string {
	if idx := strings.Index(androidLocale, "-r"); idx >= 0 {
		return androidLocale[:idx] + "-" + androidLocale[idx+2:]
	}
	return androidLocale
}

// AndroidLocale converts a BCP-47 tag to an Android locale qualifier.
// e.g., "pt-BR" -> "pt-rBR", "zh-CN" -> "zh-rCN", "ru" -> "ru"
func AndroidLocale(lang string) string {
	if strings.Contains(lang, "-r") {
		return lang
	}
	parts := strings.SplitN(lang, "-", 2)
	if len(parts) == 2 && len(parts[1]) > 0 {
		return parts[0] + "-r" + parts[1]
	}
	return lang
}

// Densities lists the drawable density qualifiers from lowest to highest.
var Densities = []string{"ldpi", "mdpi", "tvdpi", "hdpi", "xhdpi", "xxhdpi", "xxxhdpi"}

// DensityIndex returns the position of density in Densities, or -1.
func DensityIndex(density string) int {
	for i, d := range Densities {
		if d == density {
			return i
		}
	}
	return -1
}
