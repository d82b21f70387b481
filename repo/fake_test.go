package repo

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/settings"
)

// fakeSource serves resources from memory.
type fakeSource struct {
	locales     map[string][]android.Tag
	defaultXML  map[string]string
	defaultTags map[string][]android.Tag
	icon        string
	setupErr    error

	// started is closed when Setup begins; Setup then waits for release.
	started chan struct{}
	release chan struct{}

	setups    atomic.Int32
	cancelled atomic.Bool
	disposed  atomic.Bool
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Setup(ctx context.Context, st *settings.Source, workDir, iconDensity string, progress ProgressFunc) error {
	f.setups.Add(1)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ErrCancelled
		}
	}
	if f.setupErr != nil {
		return f.setupErr
	}
	return st.Set("fetched", "yes")
}

func (f *fakeSource) Locales() []string {
	var out []string
	for l := range f.locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (f *fakeSource) Resources(locale string) ([]android.Tag, error) {
	return f.locales[locale], nil
}

func (f *fakeSource) DefaultResources() []string {
	var out []string
	for n := range f.defaultXML {
		out = append(out, n)
	}
	for n := range f.defaultTags {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (f *fakeSource) DefaultResource(name string) ([]android.Tag, error) {
	return f.defaultTags[name], nil
}

func (f *fakeSource) DefaultResourceXML(name string) ([]byte, bool) {
	x, ok := f.defaultXML[name]
	return []byte(x), ok
}

func (f *fakeSource) Icon() string { return f.icon }
func (f *fakeSource) Cancel()      { f.cancelled.Store(true) }

func (f *fakeSource) Dispose() error {
	f.disposed.Store(true)
	return nil
}

const defaultsXML = `<?xml version="1.0" encoding="utf-8"?>
<resources>
    <string name="app_name" translatable="false">Demo</string>
    <string name="greeting">Hello</string>
    <string name="farewell">Bye</string>
</resources>
`

func newFake() *fakeSource {
	return &fakeSource{
		defaultXML: map[string]string{"app/src/main/res/values/strings.xml": defaultsXML},
		locales: map[string][]android.Tag{
			"es": {
				android.NewString("greeting", "Hola"),
				android.NewString("farewell", "Adiós"),
			},
		},
	}
}
