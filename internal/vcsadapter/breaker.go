package vcsadapter

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/railyard/railyard/internal/railyarderr"
)

// BreakingAdapter wraps an Adapter with a per-workspace circuit breaker
// (spec.md §4.9a): a workspace whose VCS subprocess keeps failing trips
// open and fails fast instead of piling up hung `jj` invocations, giving
// the merge queue's retry/backoff loop (spec.md §4.3) a cheaper failure to
// retry against. Settings mirror the gobreaker.Settings construction seen
// in the pack's notification circuit breaker wiring.
type BreakingAdapter struct {
	inner *Adapter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewBreakingAdapter wraps inner with per-workspace circuit breakers.
func NewBreakingAdapter(inner *Adapter) *BreakingAdapter {
	return &BreakingAdapter{inner: inner, breakers: make(map[string]*gobreaker.CircuitBreaker[string])}
}

func (b *BreakingAdapter) breaker(workspace string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[workspace]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "vcs:" + workspace,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	b.breakers[workspace] = cb
	return cb
}

// execString runs fn through workspace's breaker, translating an open-circuit
// rejection into a retryable railyarderr so the queue pipeline backs off
// instead of treating it as a terminal VCS failure.
func (b *BreakingAdapter) execString(workspace string, fn func() (string, error)) (string, error) {
	cb := b.breaker(workspace)
	out, err := cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "", railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeVCSCommandFailed,
			"vcs circuit breaker open for workspace", err).
			WithDetails(map[string]any{"workspace": workspace})
	}
	return out, err
}

func (b *BreakingAdapter) execVoid(workspace string, fn func() error) error {
	_, err := b.execString(workspace, func() (string, error) { return "", fn() })
	return err
}

func (b *BreakingAdapter) CreateWorkspaceAt(ctx context.Context, path, atRevision string) error {
	return b.execVoid(path, func() error { return b.inner.CreateWorkspaceAt(ctx, path, atRevision) })
}

func (b *BreakingAdapter) ForgetWorkspace(ctx context.Context, path string) error {
	return b.execVoid(path, func() error { return b.inner.ForgetWorkspace(ctx, path) })
}

func (b *BreakingAdapter) HeadCommit(ctx context.Context, workspaceDir string) (string, error) {
	return b.execString(workspaceDir, func() (string, error) { return b.inner.HeadCommit(ctx, workspaceDir) })
}

func (b *BreakingAdapter) Commit(ctx context.Context, workspaceDir, message string) error {
	return b.execVoid(workspaceDir, func() error { return b.inner.Commit(ctx, workspaceDir, message) })
}

func (b *BreakingAdapter) CreateBookmark(ctx context.Context, workspaceDir, bookmark string) error {
	return b.execVoid(workspaceDir, func() error { return b.inner.CreateBookmark(ctx, workspaceDir, bookmark) })
}

func (b *BreakingAdapter) Push(ctx context.Context, workspaceDir string) error {
	return b.execVoid(workspaceDir, func() error { return b.inner.Push(ctx, workspaceDir) })
}

func (b *BreakingAdapter) Rebase(ctx context.Context, workspaceDir, dest string) error {
	return b.execVoid(workspaceDir, func() error { return b.inner.Rebase(ctx, workspaceDir, dest) })
}

func (b *BreakingAdapter) Squash(ctx context.Context, workspaceDir string) error {
	return b.execVoid(workspaceDir, func() error { return b.inner.Squash(ctx, workspaceDir) })
}

func (b *BreakingAdapter) Merge(ctx context.Context, workspace, headSHA string) (string, error) {
	return b.execString(workspace, func() (string, error) { return b.inner.Merge(ctx, workspace, headSHA) })
}
