package gitsource

import (
	"bytes"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/minios-linux/stringlate/android"
)

const manifestName = "AndroidManifest.xml"

var (
	reReadme = regexp.MustCompile(`(?i)(?:read|le[ea])[-_.]?me(?:\.(?:md|rst|txt))?`)
	reIcon   = regexp.MustCompile(`<application[\s\S]+?android:icon="@(mipmap|drawable)/(\w+)"[\s\S]+?>`)

	translationServices = []string{"transifex", "crowdin", "weblate", "zanata", "pootle"}
)

// found holds the files of a clone worth looking at, as slash-separated
// paths relative to its root.
type found struct {
	root   string
	xml    []string
	img    []string
	readme []string
}

// scan walks root, skipping dot files and directories, and classifies
// the remaining files.
func scan(root string) (*found, error) {
	f := &found{root: root}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case match("**/*.[xX][mM][lL]", rel):
			f.xml = append(f.xml, rel)
		case match("**/*.[pP][nN][gG]", rel):
			f.img = append(f.img, rel)
		case reReadme.MatchString(d.Name()):
			f.readme = append(f.readme, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func match(pattern, name string) bool {
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

// androidResources returns the XML files that declare strings or plurals.
func (f *found) androidResources() []string {
	var out []string
	for _, rel := range f.xml {
		if fileContains(filepath.Join(f.root, rel), "<string", "<plurals") >= 0 {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// translationService names the first translation platform mentioned by a
// README, or "".
func (f *found) translationService() string {
	for _, rel := range f.readme {
		if i := fileContains(filepath.Join(f.root, rel), translationServices...); i >= 0 {
			return translationServices[i]
		}
	}
	return ""
}

// fileContains returns the index of the first needle found in the file,
// case-insensitively, or -1.
func fileContains(path string, needles ...string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	data = bytes.ToLower(data)
	for i, n := range needles {
		if bytes.Contains(data, []byte(strings.ToLower(n))) {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Icon
// ---------------------------------------------------------------------------

// icon picks the launcher icon closest to density, or "".
func (f *found) icon(density string) string {
	icons := f.icons("**/mipmap*/ic_launcher.png")
	if len(icons) == 0 {
		icons = f.icons("**/ic_launcher-web.png")
	}
	if len(icons) == 0 {
		icons = f.manifestIcons()
	}
	return pickDensity(icons, density)
}

func (f *found) icons(pattern string) []string {
	var out []string
	for _, rel := range f.img {
		if match(pattern, rel) {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// manifestIcons resolves the android:icon of the application manifest.
func (f *found) manifestIcons() []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	for _, rel := range f.xml {
		if path.Base(rel) != manifestName {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.root, rel))
		if err != nil {
			continue
		}
		m := reIcon.FindSubmatch(data)
		if m == nil {
			continue
		}
		for _, icon := range f.icons("**/" + string(m[1]) + "*/" + string(m[2]) + ".*") {
			if seen.Add(icon) {
				out = append(out, icon)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return out
}

// pickDensity chooses the icon for density, searching higher densities
// first and then lower ones. Mipmaps are two densities larger than the
// drawable of the same qualifier, so the wanted index drops by two.
func pickDensity(icons []string, density string) string {
	switch len(icons) {
	case 0:
		return ""
	case 1:
		return icons[0]
	}

	wanted := android.DensityIndex(density)
	if wanted < 0 {
		wanted = len(android.Densities) - 1
	}
	if !strings.Contains(icons[0], "drawable-") {
		wanted = max(wanted-2, 0)
	}

	find := func(i int) string {
		for _, icon := range icons {
			if hasQualifier(icon, android.Densities[i]) {
				return icon
			}
		}
		return ""
	}
	for i := wanted; i < len(android.Densities); i++ {
		if icon := find(i); icon != "" {
			return icon
		}
	}
	for i := wanted - 1; i >= 0; i-- {
		if icon := find(i); icon != "" {
			return icon
		}
	}
	return icons[0]
}

// hasQualifier reports whether the directory of rel carries qualifier,
// e.g. "res/mipmap-hdpi-v4/ic_launcher.png" has "hdpi".
func hasQualifier(rel, qualifier string) bool {
	parts := strings.Split(path.Base(path.Dir(rel)), "-")
	for _, q := range parts[1:] {
		if q == qualifier {
			return true
		}
	}
	return false
}
