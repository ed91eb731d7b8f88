// Package lock implements the three lock abstractions of spec.md §4.5: the
// file-backed exclusive build lock, the DB-row advisory workspace lock, and
// the agent registry that tracks liveness for claim eligibility. The
// processing lock itself (INV-QUEUE-005) lives in internal/queue, since
// it's integrated directly into claim/release rather than a standalone
// abstraction.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/railyard/railyard/internal/railyarderr"
)

// BuildLockConfig configures a BuildLock (spec.md §3 "Build lock").
type BuildLockConfig struct {
	Dir          string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Validate enforces timeout > 0 and poll_interval < timeout (spec.md §4.5).
func (c BuildLockConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("lock dir must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("lock timeout must be > 0, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 || c.PollInterval >= c.Timeout {
		return fmt.Errorf("lock poll_interval must be > 0 and < timeout, got %s (timeout %s)", c.PollInterval, c.Timeout)
	}
	return nil
}

// BuildLock is the global exclusive build lock (spec.md §4.5a), file-backed
// via gofrs/flock with PID-liveness staleness detection mirroring the
// teacher's stale-daemon cleanup idiom (cmd/bd/reset.go, daemon_autostart.go).
type BuildLock struct {
	cfg      BuildLockConfig
	lockPath string
	pidPath  string
	fl       *flock.Flock
}

// NewBuildLock constructs a BuildLock after validating cfg.
func NewBuildLock(cfg BuildLockConfig) (*BuildLock, error) {
	if err := cfg.Validate(); err != nil {
		return nil, railyarderr.Validation("INVALID_BUILD_LOCK_CONFIG", err.Error())
	}
	lockPath := filepath.Join(cfg.Dir, "build.lock")
	return &BuildLock{
		cfg:      cfg,
		lockPath: lockPath,
		pidPath:  lockPath + ".pid",
		fl:       flock.New(lockPath),
	}, nil
}

// Acquire blocks (polling at PollInterval) until the lock is obtained, the
// configured Timeout elapses (BuildLockBusy), or ctx is cancelled.
func (b *BuildLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, "BUILD_LOCK_DIR_FAILED", "creating build lock directory", err)
	}

	deadline := time.Now().Add(b.cfg.Timeout)
	staleChecked := false
	for {
		locked, err := b.fl.TryLock()
		if err != nil {
			return railyarderr.Wrap(railyarderr.ClassSystem, "BUILD_LOCK_IO_ERROR", "acquiring build lock", err)
		}
		if locked {
			_ = os.WriteFile(b.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644)
			return nil
		}

		if !staleChecked {
			staleChecked = true
			if b.holderIsStale() {
				b.forceClear()
				continue // retry TryLock immediately after clearing a stale holder
			}
		}

		if time.Now().After(deadline) {
			return railyarderr.LockContention(railyarderr.CodeBuildLockBusy, "timed out waiting for the build lock").
				WithDetails(map[string]any{"dir": b.cfg.Dir, "timeout": b.cfg.Timeout.String()}).
				WithSuggestion("another agent holds the build lock; wait for it to finish or check for a stuck process")
		}
		select {
		case <-ctx.Done():
			return railyarderr.Cancelled("build lock acquisition cancelled")
		case <-time.After(b.cfg.PollInterval):
		}
	}
}

// Release releases the lock and removes the PID marker.
func (b *BuildLock) Release() error {
	_ = os.Remove(b.pidPath)
	return b.fl.Unlock()
}

// holderIsStale reports whether the recorded PID marker refers to a process
// that is no longer alive (teacher's reset.go/daemon_autostart.go idiom:
// os.FindProcess + signal-0 liveness probe).
func (b *BuildLock) holderIsStale() bool {
	data, err := os.ReadFile(b.pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	// On POSIX, signal 0 performs no-op existence/permission checks only.
	if err := proc.Signal(syscallSignalZero()); err != nil {
		return true
	}
	return false
}

// forceClear removes a stale lock's on-disk artifacts so the next TryLock
// can succeed. The OS already releases the flock automatically when the
// holding process dies; this clears the leftover PID marker so future
// staleness checks don't trip on it.
func (b *BuildLock) forceClear() {
	_ = os.Remove(b.pidPath)
}
