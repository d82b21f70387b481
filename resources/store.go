// Package resources holds the in-memory store of one resources file: every
// entry keyed by id, plus what changed since the file was last written.
//
// A Store is owned by a single caller and is not safe for concurrent use.
package resources

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/merge"
)

// ErrNotSaved is returned when a store could not be written. In-memory
// edits are kept so the save can be retried.
var ErrNotSaved = errors.New("resources: store not saved")

// legacyModifiedExt names the sidecar file older versions kept next to a
// store to remember that it held local edits.
const legacyModifiedExt = ".modified"

// Store is the set of tags of one resources file.
type Store struct {
	path string
	tags map[string]android.Tag

	// unsaved holds ids edited through SetContent since the last save.
	unsaved mapset.Set[string]
	// saved is false while the file on disk is behind the store.
	saved bool
	// modified is set once local edits have been written.
	modified bool

	filter string
}

// New returns an empty store backed by path. Nothing is written until Save.
func New(path string) *Store {
	return &Store{
		path:    path,
		tags:    make(map[string]android.Tag),
		unsaved: mapset.NewThreadUnsafeSet[string](),
		saved:   true,
	}
}

// Load reads the store at path. A missing file yields an empty store that
// has nothing to save. A malformed file yields the entries read before the
// syntax error.
func Load(path string) (*Store, error) {
	s := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tags, err := android.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("resources file is malformed, keeping what could be read",
			"file", path, "entries", len(tags), "error", err)
	}
	for _, t := range tags {
		s.tags[t.ID()] = t
	}

	if err := s.migrateLegacyModified(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrateLegacyModified upgrades stores written before the modified flag
// lived inside the file: every entry is flagged, the store is rewritten and
// the sidecar removed.
func (s *Store) migrateLegacyModified() error {
	sidecar := strings.TrimSuffix(s.path, filepath.Ext(s.path)) + legacyModifiedExt
	if _, err := os.Stat(sidecar); err != nil {
		return nil
	}

	for _, t := range s.tags {
		android.MarkModified(t)
	}
	s.saved = false
	if err := s.Save(); err != nil {
		return fmt.Errorf("migrating %s: %w", s.path, err)
	}
	if err := os.Remove(sidecar); err != nil {
		return fmt.Errorf("removing %s: %w", sidecar, err)
	}

	slog.Info("migrated legacy modified marker", "file", s.path, "entries", len(s.tags))
	return nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.tags) }

// IsEmpty reports whether the store has no entries.
func (s *Store) IsEmpty() bool { return len(s.tags) == 0 }

// Get returns the entry with exactly this id.
func (s *Store) Get(id string) (android.Tag, bool) {
	t, ok := s.tags[id]
	return t, ok
}

// Find is like Get but also accepts the name of a <string-array> or
// <plurals>, returning its first item.
func (s *Store) Find(id string) (android.Tag, bool) {
	if t, ok := s.tags[id]; ok {
		return t, true
	}
	for _, childID := range s.IDs() {
		if android.ParentID(childID) == id && childID != id {
			return s.tags[childID], true
		}
	}
	return nil, false
}

// Contains reports whether id has an entry.
func (s *Store) Contains(id string) bool {
	_, ok := s.tags[id]
	return ok
}

// Content returns the content of id, or "" if it has no entry.
func (s *Store) Content(id string) string {
	if t, ok := s.tags[id]; ok {
		return t.Content()
	}
	return ""
}

// WasModified reports whether the entry id carries a local edit.
func (s *Store) WasModified(id string) bool {
	t, ok := s.tags[id]
	return ok && t.Modified()
}

// Modified reports whether the store holds, or has ever saved, local edits.
func (s *Store) Modified() bool {
	if s.modified {
		return true
	}
	for _, t := range s.tags {
		if t.Modified() {
			return true
		}
	}
	return false
}

// Unsaved returns the number of entries edited since the last save.
func (s *Store) Unsaved() int { return s.unsaved.Cardinality() }

// IDs returns all ids in lexicographic order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.tags))
	for id := range s.tags {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tags returns all entries ordered by id.
func (s *Store) Tags() []android.Tag {
	ids := s.IDs()
	tags := make([]android.Tag, len(ids))
	for i, id := range ids {
		tags[i] = s.tags[id]
	}
	return tags
}

// ---------------------------------------------------------------------------
// Filtering
// ---------------------------------------------------------------------------

// SetFilter sets a case-insensitive query matched against ids and content.
// An empty query disables filtering.
func (s *Store) SetFilter(query string) { s.filter = strings.ToLower(strings.TrimSpace(query)) }

// Filter returns the active query.
func (s *Store) Filter() string { return s.filter }

// Filtered returns the entries matching the filter, ordered by id.
func (s *Store) Filtered() []android.Tag {
	if s.filter == "" {
		return s.Tags()
	}
	var out []android.Tag
	for _, t := range s.Tags() {
		if strings.Contains(strings.ToLower(t.ID()), s.filter) ||
			strings.Contains(strings.ToLower(t.Content()), s.filter) {
			out = append(out, t)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// SetContent edits the entry id and reports whether anything changed.
// Empty content deletes the entry. A missing id becomes a new <string>, or a
// new item when a sibling of the same array or plurals already exists.
func (s *Store) SetContent(id, content string) bool {
	if strings.TrimSpace(content) == "" {
		return s.DeleteID(id)
	}

	if t, ok := s.tags[id]; ok {
		if !t.SetContent(content) {
			return false
		}
		s.markUnsaved(id)
		return true
	}

	t := s.newTag(id)
	if t == nil {
		return false
	}
	return s.SetContentFrom(t, content)
}

// SetContentFrom stores a copy of original holding content, typically the
// default-locale tag being translated.
func (s *Store) SetContentFrom(original android.Tag, content string) bool {
	id := original.ID()
	if strings.TrimSpace(content) == "" {
		return s.DeleteID(id)
	}
	if existing, ok := s.tags[id]; ok {
		if !existing.SetContent(content) {
			return false
		}
		s.markUnsaved(id)
		return true
	}
	s.tags[id] = original.WithContent(content)
	s.markUnsaved(id)
	return true
}

// newTag builds an empty tag for an id that has no entry yet.
func (s *Store) newTag(id string) android.Tag {
	if android.ValidID(id) {
		return android.NewString(id, "")
	}

	parent := android.ParentID(id)
	suffix := strings.TrimPrefix(id, parent+android.Separator)
	sibling, ok := s.Find(parent)
	if !ok {
		return nil
	}
	switch v := sibling.(type) {
	case *android.ArrayItem:
		index, err := strconv.Atoi(suffix)
		if err != nil || index < 0 {
			return nil
		}
		return android.NewArrayItem(v.Group(), index, "")
	case *android.PluralItem:
		return android.NewPluralItem(v.Group(), suffix, "")
	}
	return nil
}

func (s *Store) markUnsaved(id string) {
	s.unsaved.Add(id)
	s.saved = false
}

// AddTag inserts t, replacing any entry with the same id.
func (s *Store) AddTag(t android.Tag) {
	if old, ok := s.tags[t.ID()]; ok && old.Content() == t.Content() && old.Modified() == t.Modified() {
		s.tags[t.ID()] = t
		return
	}
	s.tags[t.ID()] = t
	s.saved = false
}

// DeleteID removes the entry id and reports whether it existed.
func (s *Store) DeleteID(id string) bool {
	if _, ok := s.tags[id]; !ok {
		return false
	}
	delete(s.tags, id)
	s.unsaved.Remove(id)
	s.saved = false
	return true
}

// Merge folds remote tags into the store. Locally modified entries win.
func (s *Store) Merge(incoming []android.Tag) merge.Result {
	return merge.Merge(s, incoming)
}

// Prune removes every entry whose id is not in keep.
func (s *Store) Prune(keep mapset.Set[string]) []string {
	return merge.Prune(s, keep)
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Dirty reports whether Save has anything to write.
func (s *Store) Dirty() bool { return !s.saved || s.unsaved.Cardinality() > 0 }

// Save writes the store with metadata. It does nothing when nothing changed
// since the last save. On failure a zero-length file is removed and the
// in-memory state is kept.
func (s *Store) Save() error {
	if !s.Dirty() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: creating directory: %v", ErrNotSaved, err)
	}
	if err := os.WriteFile(s.path, android.Marshal(s.Tags(), true), 0644); err != nil {
		if info, statErr := os.Stat(s.path); statErr == nil && info.Size() == 0 {
			_ = os.Remove(s.path)
		}
		return fmt.Errorf("%w: writing %s: %v", ErrNotSaved, s.path, err)
	}

	if s.unsaved.Cardinality() > 0 {
		s.modified = true
	}
	s.unsaved.Clear()
	s.saved = true
	return nil
}

// Encode writes the store to w, ordered by id.
func (s *Store) Encode(w io.Writer, metadata bool) error {
	return android.Encode(w, s.Tags(), metadata)
}

// Delete removes the backing file and its directory if that is left empty.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", s.path, err)
	}
	_ = os.Remove(filepath.Dir(s.path))
	return nil
}
