// Package repo manages translation projects on disk and keeps them in sync
// with their remote source.
//
// A project lives in its own directory under the data dir:
//
//	<root>/settings.yaml          project settings
//	<root>/source.yaml           settings private to the strings source
//	<root>/default/strings.xml   untranslated resources (strings2.xml, ...)
//	<root>/<locale>/strings.xml  one file per translated locale
//	<root>/icon.png              project icon, when the source has one
package repo

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/lockfile"
	"github.com/minios-linux/stringlate/resources"
	"github.com/minios-linux/stringlate/settings"
)

const (
	stringsFile = "strings.xml"
	iconName    = "icon"
)

var (
	// ErrInvalidLocale is returned for locale names that are not BCP-47 tags.
	ErrInvalidLocale = errors.New("repo: invalid locale")
	// ErrNoLocale is returned when a locale has no resources file.
	ErrNoLocale = errors.New("repo: locale does not exist")
	// ErrNothingTranslated is returned when no default file has a
	// translated string for the locale.
	ErrNothingTranslated = errors.New("repo: nothing translated")
)

// Handler is one project root.
type Handler struct {
	root     string
	settings *settings.Project
	source   *settings.Source
	locales  []string
}

// ProjectID returns the directory name used for the project of url.
func ProjectID(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:8])
}

// Exists reports whether dataDir already holds a project for url.
func Exists(dataDir, url string) bool {
	return settings.ProjectExists(filepath.Join(dataDir, ProjectID(url)))
}

// Open returns the project for url under dataDir, creating its settings
// if it does not exist yet.
func Open(dataDir, url string) (*Handler, error) {
	h, err := OpenRoot(filepath.Join(dataDir, ProjectID(url)))
	if err != nil {
		return nil, err
	}
	if h.settings.Source != url {
		h.settings.Source = url
		if err := h.settings.Save(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// OpenRoot loads the project at root.
func OpenRoot(root string) (*Handler, error) {
	p, err := settings.LoadProject(root)
	if err != nil {
		return nil, err
	}
	src, err := settings.LoadSource(root)
	if err != nil {
		return nil, err
	}
	h := &Handler{root: root, settings: p, source: src}
	if err := h.LoadLocales(); err != nil {
		return nil, err
	}
	return h, nil
}

// Root returns the project directory.
func (h *Handler) Root() string { return h.root }

// Settings returns the project settings. Call SaveSettings after changing them.
func (h *Handler) Settings() *settings.Project { return h.settings }

// SourceSettings returns the settings of the strings source.
func (h *Handler) SourceSettings() *settings.Source { return h.source }

// SaveSettings writes both settings files.
func (h *Handler) SaveSettings() error {
	if err := h.settings.Save(); err != nil {
		return err
	}
	return h.source.Save()
}

// ---------------------------------------------------------------------------
// Locales
// ---------------------------------------------------------------------------

// LoadLocales rescans the project root for locale directories.
func (h *Handler) LoadLocales() error {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.locales = nil
			return nil
		}
		return fmt.Errorf("reading %s: %w", h.root, err)
	}

	var locales []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == DefaultLocale || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		locales = append(locales, e.Name())
	}
	sort.SliceStable(locales, func(i, j int) bool {
		return DisplayName(locales[i]) < DisplayName(locales[j])
	})
	h.locales = locales
	return nil
}

// Locales returns the translated locales sorted by display name.
func (h *Handler) Locales() []string { return append([]string(nil), h.locales...) }

// DisplayName returns the English name of an Android locale, e.g.
// "pt-rBR" -> "Brazilian Portuguese". Unknown locales are returned as is.
func DisplayName(locale string) string {
	tag, err := language.Parse(android.StandardLocale(locale))
	if err != nil {
		return locale
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return locale
}

// LocalePath returns the resources file of locale.
func (h *Handler) LocalePath(locale string) string {
	return filepath.Join(h.root, locale, stringsFile)
}

// HasLocale reports whether locale has a resources file.
func (h *Handler) HasLocale(locale string) bool {
	info, err := os.Stat(h.LocalePath(locale))
	return err == nil && info.Mode().IsRegular()
}

// ValidateLocale checks that locale is an Android locale qualifier such as
// "es" or "pt-rBR".
func ValidateLocale(locale string) error {
	if locale == "" || locale == DefaultLocale || strings.ContainsAny(locale, `/\. `) {
		return fmt.Errorf("%w: %q", ErrInvalidLocale, locale)
	}
	if _, err := language.Parse(android.StandardLocale(locale)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLocale, locale, err)
	}
	return nil
}

// CreateLocale adds an empty resources file for locale. Creating an
// existing locale does nothing.
func (h *Handler) CreateLocale(locale string) error {
	if err := ValidateLocale(locale); err != nil {
		return err
	}
	if h.HasLocale(locale) {
		return nil
	}
	if err := android.WriteFile(h.LocalePath(locale), nil, true); err != nil {
		return err
	}
	return h.LoadLocales()
}

// DeleteLocale removes locale and all its translations.
func (h *Handler) DeleteLocale(locale string) error {
	if !h.HasLocale(locale) {
		return nil
	}
	if err := resources.New(h.LocalePath(locale)).Delete(); err != nil {
		return err
	}
	return h.LoadLocales()
}

// ---------------------------------------------------------------------------
// Resources
// ---------------------------------------------------------------------------

// LoadResources loads the translations of locale. A locale without a file
// yields an empty store.
func (h *Handler) LoadResources(locale string) (*resources.Store, error) {
	return resources.Load(h.LocalePath(locale))
}

func (h *Handler) defaultDir() string { return filepath.Join(h.root, DefaultLocale) }

// DefaultResourceFiles returns the untranslated resources files, sorted.
func (h *Handler) DefaultResourceFiles() []string {
	entries, err := os.ReadDir(h.defaultDir())
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(h.defaultDir(), e.Name()))
		}
	}
	return files
}

// HasDefaultLocale reports whether any untranslated file exists.
func (h *Handler) HasDefaultLocale() bool { return len(h.DefaultResourceFiles()) > 0 }

// LoadDefaultResources merges every untranslated file into one store.
func (h *Handler) LoadDefaultResources() (*resources.Store, error) {
	merged := resources.New(filepath.Join(h.defaultDir(), stringsFile))
	for _, f := range h.DefaultResourceFiles() {
		s, err := resources.Load(f)
		if err != nil {
			return nil, err
		}
		for _, t := range s.Tags() {
			merged.AddTag(t)
		}
	}
	return merged, nil
}

// uniqueDefaultFile returns the first free name among strings.xml,
// strings2.xml, strings3.xml and so on.
func (h *Handler) uniqueDefaultFile() string {
	p := filepath.Join(h.defaultDir(), stringsFile)
	for i := 2; ; i++ {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
		p = filepath.Join(h.defaultDir(), "strings"+strconv.Itoa(i)+".xml")
	}
}

// AnyModified reports whether any locale holds local edits.
func (h *Handler) AnyModified() (bool, error) {
	for _, l := range h.locales {
		s, err := h.LoadResources(l)
		if err != nil {
			return false, err
		}
		if s.Modified() {
			return true, nil
		}
	}
	return false, nil
}

// IsEmpty reports whether the project has no translated locale.
func (h *Handler) IsEmpty() bool { return len(h.locales) == 0 }

// Stats returns how many translatable default entries exist and how many of
// them locale translates.
func (h *Handler) Stats(locale string) (translated, total int, err error) {
	def, err := h.LoadDefaultResources()
	if err != nil {
		return 0, 0, err
	}
	tr, err := h.LoadResources(locale)
	if err != nil {
		return 0, 0, err
	}
	for _, t := range def.Tags() {
		if !t.Translatable() {
			continue
		}
		total++
		if tr.Content(t.ID()) != "" {
			translated++
		}
	}
	return translated, total, nil
}

// Delete removes the whole project from disk.
func (h *Handler) Delete() error {
	if err := os.RemoveAll(h.root); err != nil {
		return fmt.Errorf("removing %s: %w", h.root, err)
	}
	h.locales = nil
	return nil
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// CanApplyTemplate reports whether locale translates at least one entry of
// template.
func (h *Handler) CanApplyTemplate(template, locale string) bool {
	if !h.HasLocale(locale) {
		return false
	}
	tmpl, err := resources.Load(template)
	if err != nil || tmpl.IsEmpty() {
		return false
	}
	tr, err := h.LoadResources(locale)
	if err != nil {
		return false
	}
	for _, id := range tr.IDs() {
		if tmpl.Contains(id) {
			return true
		}
	}
	return false
}

// ApplyTemplate writes template translated into locale to w. It reports
// false when the locale or template is missing or nothing was translated.
func (h *Handler) ApplyTemplate(template, locale string, w io.Writer) (bool, error) {
	if !h.HasLocale(locale) {
		return false, fmt.Errorf("%w: %s", ErrNoLocale, locale)
	}
	tr, err := h.LoadResources(locale)
	if err != nil {
		return false, err
	}
	return android.ApplyTemplate(template, tr, w)
}

// MergeDefaultTemplate applies every default file to locale and joins the
// results, each preceded by a comment naming its remote path. Files with
// nothing translated are left out.
func (h *Handler) MergeDefaultTemplate(locale string) (string, error) {
	var out, file bytes.Buffer
	for _, tmpl := range h.DefaultResourceFiles() {
		file.Reset()
		ok, err := h.ApplyTemplate(tmpl, locale, &file)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		name := filepath.Base(tmpl)
		if rp, ok := h.settings.RemotePath(name); ok {
			name = rp
		}
		fmt.Fprintf(&out, "<!-- File \"%s\" -->\n", name)
		out.Write(file.Bytes())
		out.WriteString("\n")
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNothingTranslated, locale)
	}
	return out.String(), nil
}

// TemplateRemotePath returns where the translation into locale of the
// default file name belongs upstream.
func (h *Handler) TemplateRemotePath(name, locale string) (string, bool) {
	remote, ok := h.settings.RemotePath(name)
	if !ok {
		return "", false
	}
	return android.TemplatePath(remote, locale), true
}

// TemplateRemotePaths maps each default file to the remote path its
// translation into locale should be written to.
func (h *Handler) TemplateRemotePaths(locale string) map[string]string {
	out := make(map[string]string, len(h.settings.RemotePaths))
	for name, remote := range h.settings.RemotePaths {
		out[filepath.Join(h.defaultDir(), name)] = android.TemplatePath(remote, locale)
	}
	return out
}

// HasRemotePaths reports whether every default file knows where it came from.
func (h *Handler) HasRemotePaths() bool {
	n := len(h.DefaultResourceFiles())
	return n > 0 && n == len(h.settings.RemotePaths)
}

// ---------------------------------------------------------------------------
// Naming
// ---------------------------------------------------------------------------

// String returns the source URL without scheme and ".git" suffix.
func (h *Handler) String() string {
	u := h.settings.Source
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	return strings.TrimSuffix(u, ".git")
}

// ProjectName returns the display name, derived from the source URL and
// remembered when none was set.
func (h *Handler) ProjectName() string {
	if h.settings.Name == "" {
		h.settings.Name = nameFromSource(h.settings.Source)
	}
	return h.settings.Name
}

func nameFromSource(source string) string {
	source = strings.TrimRight(source, "/")
	if i := strings.LastIndexByte(source, '/'); i >= 0 {
		source = source[i+1:]
	}
	return strings.TrimSuffix(source, ".git")
}

// SourceName returns the name of the strings source last used.
func (h *Handler) SourceName() string { return h.source.Name }

// Syncing reports whether another process is synchronizing the project.
// Syncs of this process are tracked by Syncer.Syncing.
func (h *Handler) Syncing() (*lockfile.Holder, bool) {
	holder, err := lockfile.ReadHolder(h.root)
	if err != nil || holder == nil {
		return nil, false
	}
	return holder, true
}
