package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/stringlate/android"
)

const testURL = "https://github.com/example/demo.git"

func newSyncer(t *testing.T) (*Syncer, string) {
	t.Helper()
	dir := t.TempDir()
	return NewSyncer(filepath.Join(dir, "cache"), "xxhdpi"), filepath.Join(dir, "data")
}

func TestAddCreatesProject(t *testing.T) {
	s, data := newSyncer(t)
	src := newFake()

	var stages []Progress
	h, err := s.Add(context.Background(), data, testURL, src, func(p Progress) { stages = append(stages, p) })
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(data, ProjectID(testURL)), h.Root())
	assert.Equal(t, []string{"es"}, h.Locales())
	assert.Equal(t, "demo", h.ProjectName())
	assert.Equal(t, "fake", h.SourceName())
	assert.Equal(t, "yes", h.SourceSettings().Get("fetched"))
	assert.False(t, h.Settings().LastSync.IsZero())
	assert.True(t, src.disposed.Load())

	rp, ok := h.Settings().RemotePath("strings.xml")
	require.True(t, ok)
	assert.Equal(t, "app/src/main/res/values/strings.xml", rp)

	def, err := h.LoadDefaultResources()
	require.NoError(t, err)
	assert.Equal(t, []string{"farewell", "greeting"}, def.IDs(), "untranslatable strings are dropped")

	es, err := h.LoadResources("es")
	require.NoError(t, err)
	assert.Equal(t, "Hola", es.Content("greeting"))

	require.NotEmpty(t, stages)
	assert.Equal(t, Progress{Stage: 1, Done: 0, Total: 1, Message: "Fetching strings"}, stages[0])
	assert.Contains(t, stages, Progress{Stage: 1, Done: 1, Total: 1, Message: "Fetched strings"})
	last := stages[len(stages)-1]
	assert.Equal(t, 2, last.Stage)
	assert.Equal(t, 1.0, last.Fraction())

	_, err = os.Stat(filepath.Join(h.Root(), ".stringlate.lock"))
	assert.True(t, os.IsNotExist(err), "lock is released")
}

func TestSyncLocalEditsWin(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	es, err := h.LoadResources("es")
	require.NoError(t, err)
	require.True(t, es.SetContent("greeting", "Hi"))
	require.NoError(t, es.Save())

	src := newFake()
	src.locales["es"] = []android.Tag{
		android.NewString("greeting", "Hello"),
		android.NewString("farewell", "Bye"),
	}
	require.NoError(t, s.Sync(context.Background(), h, src, nil))

	es, err = h.LoadResources("es")
	require.NoError(t, err)
	assert.Equal(t, "Hi", es.Content("greeting"))
	assert.True(t, es.WasModified("greeting"))
	assert.Equal(t, "Bye", es.Content("farewell"))
}

func TestSyncRemovesUnusedStrings(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	de, err := h.LoadResources("de")
	require.NoError(t, err)
	de.SetContent("greeting", "Hallo")
	de.SetContent("obsolete", "Alt")
	require.NoError(t, de.Save())

	require.NoError(t, s.Sync(context.Background(), h, newFake(), nil))

	def, err := h.LoadDefaultResources()
	require.NoError(t, err)
	for _, locale := range h.Locales() {
		st, err := h.LoadResources(locale)
		require.NoError(t, err)
		for _, id := range st.IDs() {
			assert.True(t, def.Contains(id), "%s keeps unknown id %s", locale, id)
		}
	}

	de, err = h.LoadResources("de")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", de.Content("greeting"))
	assert.False(t, de.Contains("obsolete"))
}

func TestSyncRebuildsDefaults(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)
	stale := filepath.Join(h.Root(), DefaultLocale, "strings7.xml")
	require.NoError(t, android.WriteFile(stale, []android.Tag{android.NewString("old", "x")}, false))

	src := newFake()
	src.defaultTags = map[string][]android.Tag{
		"lib/res/values/more.xml": {android.NewString("more", "More")},
		"lib/res/values/none.xml": nil,
	}
	require.NoError(t, s.Sync(context.Background(), h, src, nil))

	files := h.DefaultResourceFiles()
	require.Len(t, files, 2)
	assert.Equal(t, "strings.xml", filepath.Base(files[0]))
	assert.Equal(t, "strings2.xml", filepath.Base(files[1]))
	assert.Equal(t, []string{"strings.xml", "strings2.xml"}, h.Settings().RemoteNames())

	rp, _ := h.Settings().RemotePath("strings2.xml")
	assert.Equal(t, "lib/res/values/more.xml", rp)
	assert.True(t, h.HasRemotePaths())
}

func TestSyncCopiesIcon(t *testing.T) {
	s, data := newSyncer(t)
	icon := filepath.Join(t.TempDir(), "ic_launcher.png")
	require.NoError(t, os.WriteFile(icon, []byte("png"), 0644))

	src := newFake()
	src.icon = icon
	h, err := s.Add(context.Background(), data, testURL, src, nil)
	require.NoError(t, err)

	want := filepath.Join(h.Root(), "icon.png")
	assert.Equal(t, want, h.Settings().Icon())
	b, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "png", string(b))
}

func TestSyncSingleFlight(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	first := newFake()
	first.started = make(chan struct{})
	first.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), h, first, nil) }()
	<-first.started

	assert.True(t, s.Syncing(h.Root()))
	second := newFake()
	err = s.Sync(context.Background(), h, second, nil)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Zero(t, second.setups.Load())
	assert.False(t, first.cancelled.Load())

	close(first.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first sync did not finish")
	}
	assert.False(t, s.Syncing(h.Root()))

	// Other projects are independent.
	other, err := Open(data, "https://github.com/example/other")
	require.NoError(t, err)
	require.NoError(t, s.Sync(context.Background(), other, newFake(), nil))
}

func TestSyncCancel(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	src := newFake()
	src.started = make(chan struct{})
	src.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), h, src, nil) }()
	<-src.started

	assert.True(t, s.Cancel(h.Root()))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("sync was not cancelled")
	}
	assert.True(t, src.cancelled.Load())
	assert.True(t, src.disposed.Load())
	assert.False(t, s.Cancel(h.Root()))
}

func TestSyncContextCancelled(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Sync(ctx, h, newFake(), nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, h.HasDefaultLocale(), "nothing is touched after a cancelled fetch")
}

func TestAddFailureRemovesNewProject(t *testing.T) {
	s, data := newSyncer(t)
	src := newFake()
	src.setupErr = errors.New("network down")

	_, err := s.Add(context.Background(), data, testURL, src, nil)
	require.Error(t, err)
	assert.False(t, Exists(data, testURL))
	_, err = os.Stat(filepath.Join(data, ProjectID(testURL)))
	assert.True(t, os.IsNotExist(err))
}

func TestAddFailureKeepsExistingProject(t *testing.T) {
	s, data := newSyncer(t)
	_, err := s.Add(context.Background(), data, testURL, newFake(), nil)
	require.NoError(t, err)

	src := newFake()
	src.setupErr = errors.New("network down")
	_, err = s.Add(context.Background(), data, testURL, src, nil)
	require.Error(t, err)

	h, err := OpenRoot(filepath.Join(data, ProjectID(testURL)))
	require.NoError(t, err)
	assert.Equal(t, []string{"es"}, h.Locales())
	assert.True(t, h.HasDefaultLocale())
}

func TestSyncSetupFailureStopsInStageOne(t *testing.T) {
	s, data := newSyncer(t)
	h, err := Open(data, testURL)
	require.NoError(t, err)

	src := newFake()
	src.setupErr = errors.New("network down")
	var stages []Progress
	err = s.Sync(context.Background(), h, src, func(p Progress) { stages = append(stages, p) })
	require.Error(t, err)

	assert.Equal(t, []Progress{{Stage: 1, Done: 0, Total: 1, Message: "Fetching strings"}}, stages)
}
