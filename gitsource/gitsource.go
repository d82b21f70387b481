// Package gitsource fetches Android string resources from a git repository.
//
// The repository is cloned with the external git client into a work
// directory, scanned for resources files, and discarded by Dispose.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/repo"
	"github.com/minios-linux/stringlate/settings"
)

// Name identifies this source in the project source settings.
const Name = "git"

// Source settings keys.
const (
	KeyGitURL             = "git_url"
	KeyRemoteBranches     = "remote_branches"
	KeyTranslationService = "translation_service"
)

var (
	// ErrNoResources is returned when a repository has no string resources.
	ErrNoResources = errors.New("gitsource: no string resources found")
	// ErrNoDefault is returned when resources exist only for translated locales.
	ErrNoDefault = errors.New("gitsource: no default string resources found")
)

// Source is a repo.Source backed by a git clone.
type Source struct {
	url    string
	branch string
	git    string

	workDir string
	// files maps a locale to its resources files, relative to workDir.
	// The default locale uses the key "".
	files map[string][]string
	icon  string

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
}

var _ repo.Source = (*Source)(nil)

// New returns a source for the repository at url. branch may be empty for
// the remote default, or a remote-tracking name such as "origin/dev".
// gitBinary defaults to "git".
func New(url, branch, gitBinary string) *Source {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &Source{url: url, branch: branch, git: gitBinary, files: make(map[string][]string)}
}

// Name returns "git".
func (s *Source) Name() string { return Name }

// Setup clones the repository into workDir and indexes its resources.
func (s *Source) Setup(ctx context.Context, st *settings.Source, workDir, iconDensity string, progress repo.ProgressFunc) error {
	if progress == nil {
		progress = func(repo.Progress) {}
	}
	progress(repo.Progress{Stage: 1, Message: "Cloning " + s.url})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return repo.ErrCancelled
	}
	s.cancel = cancel
	s.workDir = workDir
	s.mu.Unlock()

	if err := st.Set(KeyGitURL, s.url); err != nil {
		return err
	}

	if err := s.clone(ctx, progress); err != nil {
		if s.isCancelled() || errors.Is(ctx.Err(), context.Canceled) {
			return repo.ErrCancelled
		}
		return err
	}

	if branches, err := s.remoteBranches(ctx); err != nil {
		slog.Warn("listing remote branches failed", "url", s.url, "error", err)
	} else if err := st.SetList(KeyRemoteBranches, branches); err != nil {
		return err
	}

	if err := s.index(st, iconDensity); err != nil {
		return err
	}

	slog.Debug("git source ready", "url", s.url, "locales", len(s.files)-1, "icon", s.icon)
	if s.isCancelled() {
		return repo.ErrCancelled
	}
	return nil
}

// index scans the clone for resources, the icon and translation services.
func (s *Source) index(st *settings.Source, iconDensity string) error {
	found, err := scan(s.workDir)
	if err != nil {
		return err
	}
	resources := found.androidResources()
	if len(resources) == 0 {
		return ErrNoResources
	}

	if icon := found.icon(iconDensity); icon != "" {
		s.icon = filepath.Join(s.workDir, icon)
	}

	s.files = make(map[string][]string)
	for _, rel := range resources {
		locale, ok := android.ValuesLocale(rel)
		if !ok {
			continue
		}
		if locale == "" && android.DoNotTranslate(rel) {
			continue
		}
		s.files[locale] = append(s.files[locale], rel)
	}
	if len(s.files[""]) == 0 {
		return ErrNoDefault
	}

	return st.Set(KeyTranslationService, found.translationService())
}

// Cancel stops a running Setup.
func (s *Source) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Source) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Locales returns the translated locales found, sorted.
func (s *Source) Locales() []string {
	locales := make([]string, 0, len(s.files))
	for l := range s.files {
		if l != "" {
			locales = append(locales, l)
		}
	}
	sort.Strings(locales)
	return locales
}

// Resources decodes every file of locale. Entries of later files replace
// earlier ones with the same id.
func (s *Source) Resources(locale string) ([]android.Tag, error) {
	var tags []android.Tag
	for _, rel := range s.files[locale] {
		t, err := android.DecodeFile(filepath.Join(s.workDir, rel))
		if err != nil {
			slog.Warn("skipping malformed part of resources file", "file", rel, "error", err)
		}
		tags = append(tags, t...)
	}
	return tags, nil
}

// DefaultResources returns the paths of the default files, relative to
// the repository root.
func (s *Source) DefaultResources() []string {
	return append([]string(nil), s.files[""]...)
}

func (s *Source) defaultPath(name string) (string, bool) {
	for _, rel := range s.files[""] {
		if rel == name {
			return filepath.Join(s.workDir, rel), true
		}
	}
	return "", false
}

// DefaultResource decodes the default file name.
func (s *Source) DefaultResource(name string) ([]android.Tag, error) {
	path, ok := s.defaultPath(name)
	if !ok {
		return nil, fmt.Errorf("no default resources named %q", name)
	}
	tags, err := android.DecodeFile(path)
	if err != nil && len(tags) == 0 {
		return nil, err
	}
	return tags, nil
}

// DefaultResourceXML returns the raw content of the default file name.
func (s *Source) DefaultResourceXML(name string) ([]byte, bool) {
	path, ok := s.defaultPath(name)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Icon returns the path of the project icon inside the clone, or "".
func (s *Source) Icon() string { return s.icon }

// Dispose deletes the clone.
func (s *Source) Dispose() error {
	s.files = make(map[string][]string)
	s.icon = ""
	if s.workDir == "" {
		return nil
	}
	if err := os.RemoveAll(s.workDir); err != nil {
		return fmt.Errorf("removing %s: %w", s.workDir, err)
	}
	return nil
}
