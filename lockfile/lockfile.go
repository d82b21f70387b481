// Package lockfile guards a project root so that only one synchronization
// runs against it at a time.
//
// Inside a process a Registry hands out at most one Lease per root and
// rejects a second caller immediately. Across processes the lease also
// holds an advisory lock on <root>/.stringlate.lock, which records who
// holds it.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// LockFileName is the lock file created inside a project root.
const LockFileName = ".stringlate.lock"

// ErrBusy is returned when the root is already held.
var ErrBusy = errors.New("lockfile: project is busy")

// Holder is written into the lock file while a lease is held.
type Holder struct {
	PID     int       `yaml:"pid"`
	Started time.Time `yaml:"started"`
	Purpose string    `yaml:"purpose,omitempty"`
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry tracks the leases held by this process. It is owned by a
// long-lived service and passed to whoever needs it.
type Registry struct {
	mu     sync.Mutex
	leases map[string]*Lease
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{leases: make(map[string]*Lease)}
}

// Lease is an exclusive claim on a project root.
type Lease struct {
	reg    *Registry
	root   string
	cancel func()
	lock   *flock.Flock
	once   sync.Once
}

// TryAcquire claims root without waiting. cancel, if not nil, is invoked
// by Cancel while the lease is held. ErrBusy is returned if this process or
// another one already holds root.
func (r *Registry) TryAcquire(root, purpose string, cancel func()) (*Lease, error) {
	root = filepath.Clean(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leases[root]; ok {
		return nil, ErrBusy
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", root, err)
	}

	lock := flock.New(filepath.Join(root, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", root, err)
	}
	if !locked {
		return nil, ErrBusy
	}

	data, err := yaml.Marshal(Holder{PID: os.Getpid(), Started: time.Now().UTC(), Purpose: purpose})
	if err == nil {
		err = os.WriteFile(lock.Path(), data, 0644)
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("writing %s: %w", lock.Path(), err)
	}

	l := &Lease{reg: r, root: root, cancel: cancel, lock: lock}
	r.leases[root] = l
	return l, nil
}

// Cancel invokes the cancel function of the lease on root. It reports
// whether a lease was held.
func (r *Registry) Cancel(root string) bool {
	r.mu.Lock()
	l, ok := r.leases[filepath.Clean(root)]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if l.cancel != nil {
		l.cancel()
	}
	return true
}

// Held reports whether root has a lease in this registry.
func (r *Registry) Held(root string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.leases[filepath.Clean(root)]
	return ok
}

// Root returns the project root the lease covers.
func (l *Lease) Root() string { return l.root }

// Release gives the root back. Calling it more than once is harmless.
func (l *Lease) Release() error {
	var err error
	l.once.Do(func() {
		l.reg.mu.Lock()
		delete(l.reg.leases, l.root)
		l.reg.mu.Unlock()

		if uerr := l.lock.Unlock(); uerr != nil {
			err = fmt.Errorf("unlocking %s: %w", l.root, uerr)
			return
		}
		if rerr := os.Remove(l.lock.Path()); rerr != nil && !os.IsNotExist(rerr) {
			err = fmt.Errorf("removing %s: %w", l.lock.Path(), rerr)
		}
	})
	return err
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// ReadHolder returns who holds root, or nil if no lock file exists.
// A stale file left by a crashed process is reported as well; callers can
// tell by probing with TryAcquire.
func ReadHolder(root string) (*Holder, error) {
	path := filepath.Join(root, LockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var h Holder
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &h, nil
}
