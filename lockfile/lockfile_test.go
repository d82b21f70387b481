package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryAcquireRejectsSecondCaller(t *testing.T) {
	reg := NewRegistry()
	root := t.TempDir()

	lease, err := reg.TryAcquire(root, "sync", nil)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	if _, err := reg.TryAcquire(root, "sync", nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("second TryAcquire error = %v, want ErrBusy", err)
	}
	if !reg.Held(root) {
		t.Error("Held = false while lease is out")
	}

	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lease.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if reg.Held(root) {
		t.Error("Held = true after Release")
	}

	again, err := reg.TryAcquire(root, "sync", nil)
	if err != nil {
		t.Fatalf("TryAcquire after Release: %v", err)
	}
	again.Release()
}

func TestTryAcquireConcurrent(t *testing.T) {
	reg := NewRegistry()
	root := t.TempDir()

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
		busy    atomic.Int32
		leases  = make(chan *Lease, 8)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := reg.TryAcquire(root, "sync", nil)
			switch {
			case err == nil:
				granted.Add(1)
				leases <- l
			case errors.Is(err, ErrBusy):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(leases)

	if granted.Load() != 1 || busy.Load() != 7 {
		t.Fatalf("granted=%d busy=%d, want 1 and 7", granted.Load(), busy.Load())
	}
	for l := range leases {
		l.Release()
	}
}

func TestSeparateRegistriesShareFileLock(t *testing.T) {
	root := t.TempDir()

	first, err := NewRegistry().TryAcquire(root, "sync", nil)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer first.Release()

	if _, err := NewRegistry().TryAcquire(root, "sync", nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("TryAcquire from another registry = %v, want ErrBusy", err)
	}
}

func TestCancel(t *testing.T) {
	reg := NewRegistry()
	root := t.TempDir()

	if reg.Cancel(root) {
		t.Fatal("Cancel on a free root reported true")
	}

	var called atomic.Bool
	lease, err := reg.TryAcquire(root, "sync", func() { called.Store(true) })
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer lease.Release()

	if !reg.Cancel(root) {
		t.Fatal("Cancel reported no lease")
	}
	if !called.Load() {
		t.Error("cancel func was not invoked")
	}
}

func TestHolderFile(t *testing.T) {
	reg := NewRegistry()
	root := filepath.Join(t.TempDir(), "project")

	h, err := ReadHolder(root)
	if err != nil || h != nil {
		t.Fatalf("ReadHolder on missing root = %v, %v", h, err)
	}

	lease, err := reg.TryAcquire(root, "sync", nil)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	h, err = ReadHolder(root)
	if err != nil {
		t.Fatalf("ReadHolder: %v", err)
	}
	if h == nil || h.PID != os.Getpid() || h.Purpose != "sync" {
		t.Fatalf("holder = %+v", h)
	}
	if h.Started.IsZero() {
		t.Error("Started not recorded")
	}

	if err := lease.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock file still present after Release: %v", err)
	}
}
