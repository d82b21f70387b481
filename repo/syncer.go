package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/lockfile"
	"github.com/minios-linux/stringlate/resources"
)

var (
	// ErrSyncInProgress is returned when a project is already being synced.
	ErrSyncInProgress = errors.New("repo: sync already in progress")
	// ErrCancelled is returned when a sync was cancelled.
	ErrCancelled = errors.New("repo: sync cancelled")
)

// Syncer synchronizes projects with their Source. At most one sync runs per
// project root; syncs of different projects are independent.
type Syncer struct {
	cacheDir    string
	iconDensity string
	locks       *lockfile.Registry
}

// NewSyncer returns a Syncer using cacheDir for temporary work directories.
func NewSyncer(cacheDir, iconDensity string) *Syncer {
	return &Syncer{cacheDir: cacheDir, iconDensity: iconDensity, locks: lockfile.NewRegistry()}
}

// Syncing reports whether a sync of root is running in this process.
func (s *Syncer) Syncing(root string) bool { return s.locks.Held(root) }

// Cancel stops the sync of root. It reports whether one was running.
func (s *Syncer) Cancel(root string) bool { return s.locks.Cancel(root) }

// Add opens the project for url and runs its first sync. A project that did
// not exist before is removed again if the sync fails.
func (s *Syncer) Add(ctx context.Context, dataDir, url string, src Source, progress ProgressFunc) (*Handler, error) {
	existed := Exists(dataDir, url)

	h, err := Open(dataDir, url)
	if err != nil {
		return nil, err
	}
	if err := s.Sync(ctx, h, src, progress); err != nil {
		if !existed && !errors.Is(err, ErrSyncInProgress) {
			if derr := h.Delete(); derr != nil {
				slog.Warn("removing failed project", "root", h.Root(), "error", derr)
			}
		}
		return nil, err
	}
	return h, nil
}

// Sync fetches the remote resources through src and merges them into h.
// Local edits always win over remote content. The source is disposed of
// before Sync returns.
func (s *Syncer) Sync(ctx context.Context, h *Handler, src Source, progress ProgressFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lease, err := s.locks.TryAcquire(h.Root(), "sync", func() {
		cancel()
		src.Cancel()
	})
	if err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return ErrSyncInProgress
		}
		return err
	}
	defer func() {
		if err := lease.Release(); err != nil {
			slog.Warn("releasing sync lock", "root", h.Root(), "error", err)
		}
	}()
	defer func() {
		if err := src.Dispose(); err != nil {
			slog.Warn("disposing strings source", "root", h.Root(), "error", err)
		}
	}()

	sess := &session{
		h:        h,
		src:      src,
		progress: progress,
		cacheDir: s.cacheDir,
		density:  s.iconDensity,
		log:      slog.With("session", uuid.NewString(), "root", h.Root(), "source", src.Name()),
	}

	start := time.Now()
	sess.log.Info("sync started")
	err = sess.run(ctx)
	if err != nil && (errors.Is(err, ErrCancelled) || ctx.Err() != nil) {
		sess.log.Info("sync cancelled")
		return ErrCancelled
	}
	if err != nil {
		sess.log.Error("sync failed", "error", err)
		return err
	}
	sess.log.Info("sync done", "locales", len(h.Locales()), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// session is the state of one running sync.
type session struct {
	h        *Handler
	src      Source
	progress ProgressFunc
	cacheDir string
	density  string
	log      *slog.Logger
}

func (ss *session) checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func (ss *session) run(ctx context.Context) error {
	h := ss.h

	if h.source.Name != ss.src.Name() {
		if h.source.Name != "" {
			ss.log.Warn("project switched strings source", "from", h.source.Name, "to", ss.src.Name())
		}
		h.source.Reset(ss.src.Name())
	}

	workDir := filepath.Join(ss.cacheDir, "tmp_sync_"+filepath.Base(h.Root()))
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("clearing %s: %w", workDir, err)
	}
	if err := os.MkdirAll(ss.cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	ss.progress.report(Progress{Stage: 1, Done: 0, Total: 1, Message: "Fetching strings"})
	err := ss.src.Setup(ctx, h.source, workDir, ss.density, ss.progress)
	if serr := h.source.Save(); serr != nil {
		ss.log.Warn("saving source settings", "error", serr)
	}
	if err != nil {
		return err
	}
	ss.progress.report(Progress{Stage: 1, Done: 1, Total: 1, Message: "Fetched strings"})
	if err := ss.checkpoint(ctx); err != nil {
		return err
	}
	ss.progress.report(Progress{Stage: 2, Done: 0, Total: 3, Message: "Merging translations"})

	// Default files are rebuilt from scratch: their names may have changed.
	h.settings.ClearRemotePaths()
	for _, f := range h.DefaultResourceFiles() {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("removing %s: %w", f, err)
		}
	}

	for _, locale := range ss.src.Locales() {
		if err := ss.mergeLocale(locale); err != nil {
			return err
		}
	}
	ss.progress.report(Progress{Stage: 2, Done: 1, Total: 3, Message: "Updating default resources"})

	for _, name := range ss.src.DefaultResources() {
		if err := ss.copyDefault(name); err != nil {
			return err
		}
	}
	ss.progress.report(Progress{Stage: 2, Done: 2, Total: 3, Message: "Cleaning up"})

	if err := ss.copyIcon(); err != nil {
		ss.log.Warn("copying icon", "error", err)
	}

	if err := h.LoadLocales(); err != nil {
		return err
	}
	if err := ss.cleanupUnused(); err != nil {
		return err
	}
	if err := h.LoadLocales(); err != nil {
		return err
	}

	h.settings.LastSync = time.Now().UTC()
	if err := h.SaveSettings(); err != nil {
		return err
	}
	ss.progress.report(Progress{Stage: 2, Done: 3, Total: 3, Message: "Done"})
	return nil
}

func (ss *session) mergeLocale(locale string) error {
	if err := ValidateLocale(locale); err != nil {
		ss.log.Warn("skipping remote locale", "locale", locale, "error", err)
		return nil
	}
	tags, err := ss.src.Resources(locale)
	if err != nil {
		return fmt.Errorf("reading remote %s: %w", locale, err)
	}
	store, err := ss.h.LoadResources(locale)
	if err != nil {
		return err
	}
	res := store.Merge(tags)
	if err := store.Save(); err != nil {
		return err
	}
	ss.log.Debug("merged locale", "locale", locale, "added", res.Added, "updated", res.Updated, "kept", res.Kept)
	return nil
}

// copyDefault stores one remote default file under a unique local name.
// Files without translatable strings are dropped.
func (ss *session) copyDefault(name string) error {
	file := ss.h.uniqueDefaultFile()

	var (
		ok  bool
		err error
	)
	if raw, has := ss.src.DefaultResourceXML(name); has {
		ok, err = android.CleanXML(raw, file)
	} else {
		var tags []android.Tag
		tags, err = ss.src.DefaultResource(name)
		if err == nil {
			store := resources.New(file)
			for _, t := range tags {
				store.AddTag(t)
			}
			ok = !store.IsEmpty()
			if ok {
				err = store.Save()
			}
		}
	}

	if err != nil || !ok {
		if err != nil {
			ss.log.Warn("skipping default resources", "file", name, "error", err)
		}
		if rerr := os.Remove(file); rerr != nil && !os.IsNotExist(rerr) {
			return fmt.Errorf("removing %s: %w", file, rerr)
		}
		return nil
	}
	ss.h.settings.AddRemotePath(filepath.Base(file), name)
	return nil
}

func (ss *session) copyIcon() error {
	icon := ss.src.Icon()
	if icon == "" {
		return nil
	}
	dst := filepath.Join(ss.h.Root(), iconName+filepath.Ext(icon))

	in, err := os.Open(icon)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	ss.h.settings.IconPath = dst
	return nil
}

// cleanupUnused removes from every locale the ids that no default file
// declares any longer.
func (ss *session) cleanupUnused() error {
	def, err := ss.h.LoadDefaultResources()
	if err != nil {
		return err
	}
	keep := mapset.NewThreadUnsafeSet(def.IDs()...)

	for _, locale := range ss.h.Locales() {
		store, err := ss.h.LoadResources(locale)
		if err != nil {
			return err
		}
		if removed := store.Prune(keep); len(removed) > 0 {
			ss.log.Debug("removed unused strings", "locale", locale, "count", len(removed))
		}
		if err := store.Save(); err != nil {
			return err
		}
	}
	return nil
}
