// Package state guards a site against concurrent deployments from the same
// machine.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var lockSeq atomic.Uint64

// DefaultStaleAfter is the age after which an abandoned lock is ignored when
// no run bound is known.
const DefaultStaleAfter = 10 * time.Minute

// Lock is a file lock scoped to one website bucket. A held lock is kept fresh
// with Refresh or Keepalive; only a lock whose file has not been touched for
// longer than the stale age is taken over.
type Lock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time

	mu    sync.Mutex
	token string
}

// NewLock returns a lock for bucket under dir. An empty dir uses the system
// temp directory.
func NewLock(dir, bucket string) *Lock {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "sitedeploy")
	}
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(bucket)
	return &Lock{
		path:       filepath.Join(dir, name+".lock"),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// WithStaleAfter sets the age after which the lock of another run is
// considered abandoned. It should exceed the longest expected run.
func (l *Lock) WithStaleAfter(d time.Duration) *Lock {
	if d > 0 {
		l.staleAfter = d
	}
	return l
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock, replacing a stale one.
func (l *Lock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(l.path); err == nil {
		if l.now().Sub(info.ModTime()) > l.staleAfter {
			os.Remove(l.path)
		} else {
			return fmt.Errorf("site is locked by another deployment (lock file: %s). "+
				"If this is an error, remove the lock file manually", l.path)
		}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("site is locked by another deployment (lock file: %s)", l.path)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	token := fmt.Sprintf("pid=%d\nseq=%d\ntime=%s\n", os.Getpid(), lockSeq.Add(1), l.now().UTC().Format(time.RFC3339Nano))
	if _, err := f.WriteString(token); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	l.token = token
	return nil
}

// owned reports whether the lock file still carries this lock's token. The
// caller holds l.mu.
func (l *Lock) owned() bool {
	if l.token == "" {
		return false
	}
	data, err := os.ReadFile(l.path)
	return err == nil && string(data) == l.token
}

// Refresh marks the lock as live. It fails when the lock was taken over.
func (l *Lock) Refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.owned() {
		return fmt.Errorf("lock %s is no longer held", l.path)
	}
	now := l.now()
	if err := os.Chtimes(l.path, now, now); err != nil {
		return fmt.Errorf("failed to refresh lock file: %w", err)
	}
	return nil
}

// Keepalive refreshes the lock every interval until ctx is done.
func (l *Lock) Keepalive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.Refresh(); err != nil {
				return
			}
		}
	}
}

// Release removes the lock if this run still holds it.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owned := l.owned()
	l.token = ""
	if !owned {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
