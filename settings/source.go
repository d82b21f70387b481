package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceFileName holds settings private to the strings source of a project.
const SourceFileName = "source.yaml"

// ErrReservedKey is returned for keys starting with an underscore.
var ErrReservedKey = errors.New("settings: keys starting with '_' are reserved")

// Source is a free-form key/value store a strings source keeps between
// syncs, such as the remote branches or the translation service it found.
type Source struct {
	Name   string              `yaml:"_name"`
	Values map[string]string   `yaml:"values,omitempty"`
	Lists  map[string][]string `yaml:"lists,omitempty"`

	path string
}

// LoadSource reads the source settings of the project at root. A missing
// file yields empty settings.
func LoadSource(root string) (*Source, error) {
	s := &Source{path: filepath.Join(root, SourceFileName)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return s, nil
}

// Save writes the settings back.
func (s *Source) Save() error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling source settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

// Reset drops every value and assigns the settings to another source.
func (s *Source) Reset(name string) {
	s.Name = name
	s.Values = nil
	s.Lists = nil
}

// Get returns a value, or "" if unset.
func (s *Source) Get(key string) string { return s.Values[key] }

// Set stores a value.
func (s *Source) Set(key, value string) error {
	if strings.HasPrefix(key, "_") {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	s.Values[key] = value
	return nil
}

// List returns a list value, or nil if unset.
func (s *Source) List(key string) []string { return s.Lists[key] }

// SetList stores a list value.
func (s *Source) SetList(key string, values []string) error {
	if strings.HasPrefix(key, "_") {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	if s.Lists == nil {
		s.Lists = make(map[string][]string)
	}
	s.Lists[key] = append([]string(nil), values...)
	return nil
}
