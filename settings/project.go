package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the settings file kept in every project root.
const ProjectFileName = "settings.yaml"

// Project holds the settings of one project.
type Project struct {
	Source       string    `yaml:"source"`
	HomepageURL  string    `yaml:"project_homepage_url,omitempty"`
	Name         string    `yaml:"project_name,omitempty"`
	Mail         string    `yaml:"project_mail,omitempty"`
	LastLocale   string    `yaml:"last_locale,omitempty"`
	IconPath     string    `yaml:"icon_path,omitempty"`
	SearchFilter string    `yaml:"search_filter,omitempty"`
	LastSync     time.Time `yaml:"last_sync,omitempty"`

	// RemotePaths maps a local default resource file name to the path it
	// was fetched from, e.g. "strings.xml" -> "app/src/main/res/values/strings.xml".
	RemotePaths map[string]string `yaml:"remote_paths,omitempty"`

	// CreatedIssues maps a locale to the number of the issue opened for it.
	CreatedIssues map[string]int `yaml:"created_issues,omitempty"`

	path string
}

// ProjectExists reports whether root holds a settings file.
func ProjectExists(root string) bool {
	info, err := os.Stat(filepath.Join(root, ProjectFileName))
	return err == nil && info.Mode().IsRegular()
}

// LoadProject reads the settings of the project at root. A missing file
// yields empty settings.
func LoadProject(root string) (*Project, error) {
	p := &Project{path: filepath.Join(root, ProjectFileName)}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	return p, nil
}

// Save writes the settings back to the project root.
func (p *Project) Save() error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling project settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", p.path, err)
	}
	return nil
}

// Path returns the settings file path.
func (p *Project) Path() string { return p.path }

// Homepage returns the project web page, falling back to the source URL.
func (p *Project) Homepage() string {
	if p.HomepageURL != "" {
		return p.HomepageURL
	}
	return p.Source
}

// Icon returns the icon path if it still points at a file.
func (p *Project) Icon() string {
	if p.IconPath == "" {
		return ""
	}
	if info, err := os.Stat(p.IconPath); err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return p.IconPath
}

// AddRemotePath records where a default resource file came from.
func (p *Project) AddRemotePath(name, remotePath string) {
	if p.RemotePaths == nil {
		p.RemotePaths = make(map[string]string)
	}
	p.RemotePaths[name] = remotePath
}

// ClearRemotePaths forgets every remote path.
func (p *Project) ClearRemotePaths() { p.RemotePaths = nil }

// RemotePath returns the remote path of a default resource file.
func (p *Project) RemotePath(name string) (string, bool) {
	rp, ok := p.RemotePaths[name]
	return rp, ok
}

// RemoteNames returns the local names that have a remote path, sorted.
func (p *Project) RemoteNames() []string {
	names := make([]string, 0, len(p.RemotePaths))
	for n := range p.RemotePaths {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetIssue remembers the issue opened for locale.
func (p *Project) SetIssue(locale string, number int) {
	if p.CreatedIssues == nil {
		p.CreatedIssues = make(map[string]int)
	}
	p.CreatedIssues[locale] = number
}

// Issue returns the issue opened for locale, if any.
func (p *Project) Issue(locale string) (int, bool) {
	n, ok := p.CreatedIssues[locale]
	return n, ok
}
