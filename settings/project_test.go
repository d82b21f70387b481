package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadProjectMissing(t *testing.T) {
	root := t.TempDir()
	if ProjectExists(root) {
		t.Fatal("ProjectExists on empty dir = true")
	}
	p, err := LoadProject(root)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if p.Source != "" || len(p.RemotePaths) != 0 {
		t.Fatalf("expected empty settings, got %+v", p)
	}
}

func TestProjectSaveLoad(t *testing.T) {
	root := t.TempDir()
	p, err := LoadProject(root)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}

	p.Source = "https://github.com/acme/notes.git"
	p.LastLocale = "es"
	p.LastSync = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.AddRemotePath("strings.xml", "app/src/main/res/values/strings.xml")
	p.AddRemotePath("strings2.xml", "lib/res/values/strings.xml")
	p.SetIssue("es", 42)
	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !ProjectExists(root) {
		t.Fatal("ProjectExists after Save = false")
	}

	got, err := LoadProject(root)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if got.Source != p.Source || got.LastLocale != "es" {
		t.Fatalf("got %+v", got)
	}
	if !got.LastSync.Equal(p.LastSync) {
		t.Fatalf("LastSync = %v, want %v", got.LastSync, p.LastSync)
	}
	if rp, ok := got.RemotePath("strings2.xml"); !ok || rp != "lib/res/values/strings.xml" {
		t.Fatalf("RemotePath(strings2.xml) = %q, %v", rp, ok)
	}
	if names := got.RemoteNames(); len(names) != 2 || names[0] != "strings.xml" {
		t.Fatalf("RemoteNames = %v", names)
	}
	if n, ok := got.Issue("es"); !ok || n != 42 {
		t.Fatalf("Issue(es) = %d, %v", n, ok)
	}
	if _, ok := got.Issue("de"); ok {
		t.Fatal("Issue(de) should be unset")
	}

	got.ClearRemotePaths()
	if len(got.RemoteNames()) != 0 {
		t.Fatal("ClearRemotePaths left entries")
	}
}

func TestProjectHomepageAndIcon(t *testing.T) {
	root := t.TempDir()
	p := &Project{Source: "https://github.com/acme/notes"}
	if p.Homepage() != p.Source {
		t.Fatalf("Homepage = %q, want source", p.Homepage())
	}
	p.HomepageURL = "https://notes.example"
	if p.Homepage() != "https://notes.example" {
		t.Fatalf("Homepage = %q", p.Homepage())
	}

	p.IconPath = filepath.Join(root, "icon.png")
	if p.Icon() != "" {
		t.Fatal("Icon should be empty while the file is missing")
	}
	if err := os.WriteFile(p.IconPath, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	if p.Icon() != p.IconPath {
		t.Fatalf("Icon = %q, want %q", p.Icon(), p.IconPath)
	}
}

func TestProjectInvalidYAML(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ProjectFileName), []byte("source: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(root); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSourceSettings(t *testing.T) {
	root := t.TempDir()
	s, err := LoadSource(root)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	s.Reset("git")
	if err := s.Set("translation_service", "weblate"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.SetList("remote_branches", []string{"origin/main", "origin/dev"}); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	if err := s.Set("_name", "x"); !errors.Is(err, ErrReservedKey) {
		t.Fatalf("Set(_name) error = %v, want ErrReservedKey", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadSource(root)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if got.Name != "git" || got.Get("translation_service") != "weblate" {
		t.Fatalf("got %+v", got)
	}
	if l := got.List("remote_branches"); len(l) != 2 || l[1] != "origin/dev" {
		t.Fatalf("List = %v", l)
	}

	got.Reset("other")
	if got.Get("translation_service") != "" || got.List("remote_branches") != nil {
		t.Fatal("Reset kept values")
	}
}
