package vcsadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/railyard/railyard/internal/railyarderr"
)

// Fake is an in-memory VCS double satisfying both internal/session.VCS and
// internal/queue.VCS, for tests that exercise session/queue logic without a
// real VCS binary.
type Fake struct {
	mu sync.Mutex

	Workspaces map[string]bool   // path -> exists
	Heads      map[string]string // workspace -> head commit id
	nextCommit int

	// Hooks let a test force a specific call to fail.
	FailCreateWorkspace error
	FailForgetWorkspace error
	FailMerge           error
}

// NewFake constructs an empty Fake.
func NewFake() *Fake {
	return &Fake{
		Workspaces: make(map[string]bool),
		Heads:      make(map[string]string),
	}
}

func (f *Fake) CreateWorkspaceAt(ctx context.Context, path, atRevision string) error {
	if f.FailCreateWorkspace != nil {
		return f.FailCreateWorkspace
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Workspaces[path] = true
	f.nextCommit++
	f.Heads[path] = fmt.Sprintf("fakecommit%d", f.nextCommit)
	return nil
}

func (f *Fake) ForgetWorkspace(ctx context.Context, path string) error {
	if f.FailForgetWorkspace != nil {
		return f.FailForgetWorkspace
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Workspaces[path] {
		return nil // idempotent, matching the real adapter's "not found" handling
	}
	delete(f.Workspaces, path)
	delete(f.Heads, path)
	return nil
}

func (f *Fake) Merge(ctx context.Context, workspace, headSHA string) (string, error) {
	if f.FailMerge != nil {
		return "", f.FailMerge
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Workspaces[workspace] {
		return "", railyarderr.NotFound(railyarderr.CodeVCSCommandFailed, "workspace not found").
			WithDetails(map[string]any{"workspace": workspace})
	}
	f.nextCommit++
	merged := fmt.Sprintf("fakemerge%d", f.nextCommit)
	f.Heads[workspace] = merged
	return merged, nil
}

// HeadCommit returns the fake head recorded for workspace, mirroring
// Adapter.HeadCommit for tests that need to assert on it.
func (f *Fake) HeadCommit(ctx context.Context, workspace string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head, ok := f.Heads[workspace]
	if !ok {
		return "", railyarderr.NotFound(railyarderr.CodeVCSCommandFailed, "workspace not found").
			WithDetails(map[string]any{"workspace": workspace})
	}
	return head, nil
}
