// Package vcsadapter is the only place in railyard that shells out to the
// underlying content-addressed VCS (spec.md §6 "VCS subprocess contract").
// One method per contract verb, each invoked in a specific working
// directory with stderr captured and a non-zero exit classified via
// internal/railyarderr. Grounded in the teacher's internal/git/worktree.go
// subprocess-invocation style (exec.Command, cmd.Dir, CombinedOutput).
package vcsadapter

import (
	"context"
	"os/exec"
	"strings"

	"github.com/railyard/railyard/internal/railyarderr"
)

// Adapter drives the VCS binary against a repository root. The zero value
// is not usable; construct with New.
type Adapter struct {
	bin  string // path to the VCS binary, "jj" by default
	root string // repository root all commands run from
}

// New constructs an Adapter. bin is the VCS binary name or path ("jj" by
// default when empty); root is the repository root every subprocess's
// working directory is set to.
func New(bin, root string) *Adapter {
	if bin == "" {
		bin = "jj"
	}
	return &Adapter{bin: bin, root: root}
}

// run executes the VCS binary with args in dir (defaulting to a.root when
// dir is empty), returning combined stdout+stderr trimmed of surrounding
// whitespace. A non-zero exit is wrapped as a railyarderr.CodeVCSCommandFailed
// external error carrying the captured output.
func (a *Adapter) run(ctx context.Context, dir string, args ...string) (string, error) {
	if dir == "" {
		dir = a.root
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(output))
	if err != nil {
		return trimmed, railyarderr.External(railyarderr.CodeVCSCommandFailed, "vcs command failed").
			WithDetails(map[string]any{"args": args, "dir": dir, "output": trimmed}).
			WithSuggestion("inspect the command output for the underlying VCS error")
	}
	return trimmed, nil
}

// CreateWorkspaceAt runs `workspace add --name <n>` for the workspace rooted
// at path, pinned at atRevision when non-empty. Satisfies internal/session.VCS.
func (a *Adapter) CreateWorkspaceAt(ctx context.Context, path, atRevision string) error {
	args := []string{"workspace", "add", "--name", workspaceName(path), path}
	if atRevision != "" {
		args = append(args, "-r", atRevision)
	}
	_, err := a.run(ctx, a.root, args...)
	return err
}

// ForgetWorkspace runs `workspace forget <n>`. Per spec.md §6, "Workspace
// not found" on forget is idempotent success. Satisfies internal/session.VCS.
func (a *Adapter) ForgetWorkspace(ctx context.Context, path string) error {
	_, err := a.run(ctx, a.root, "workspace", "forget", workspaceName(path))
	if err == nil {
		return nil
	}
	if isWorkspaceNotFound(err) {
		return nil
	}
	return err
}

// HeadCommit runs `log -r @ --no-graph -T commit_id` in the given workspace
// directory and returns the resolved commit id.
func (a *Adapter) HeadCommit(ctx context.Context, workspaceDir string) (string, error) {
	return a.run(ctx, workspaceDir, "log", "-r", "@", "--no-graph", "-T", "commit_id")
}

// Commit runs `commit -m <msg>` in the given workspace directory.
func (a *Adapter) Commit(ctx context.Context, workspaceDir, message string) error {
	_, err := a.run(ctx, workspaceDir, "commit", "-m", message)
	return err
}

// CreateBookmark runs `bookmark create <b> -r @` in the given workspace
// directory.
func (a *Adapter) CreateBookmark(ctx context.Context, workspaceDir, bookmark string) error {
	_, err := a.run(ctx, workspaceDir, "bookmark", "create", bookmark, "-r", "@")
	return err
}

// Push runs `git push` in the given workspace directory. Remote failures
// (auth, connectivity, rejected ref) surface as railyarderr.CodeRemoteError
// rather than a generic VCS-command failure, since the queue pipeline
// treats them differently on retry (spec.md §4.3).
func (a *Adapter) Push(ctx context.Context, workspaceDir string) error {
	_, err := a.run(ctx, workspaceDir, "git", "push")
	if err == nil {
		return nil
	}
	return railyarderr.External(railyarderr.CodeRemoteError, "push to remote failed").
		WithDetails(map[string]any{"cause": err.Error()})
}

// Rebase runs `rebase -d <dest>` in the given workspace directory.
func (a *Adapter) Rebase(ctx context.Context, workspaceDir, dest string) error {
	_, err := a.run(ctx, workspaceDir, "rebase", "-d", dest)
	return err
}

// Squash runs `squash` in the given workspace directory, folding the
// working copy into its parent.
func (a *Adapter) Squash(ctx context.Context, workspaceDir string) error {
	_, err := a.run(ctx, workspaceDir, "squash")
	return err
}

// Merge runs the VCS merge primitive for headSHA into the trunk bookmark
// inside the given workspace directory, then returns the resulting commit
// id. Satisfies internal/queue.VCS.
func (a *Adapter) Merge(ctx context.Context, workspace, headSHA string) (string, error) {
	workspaceDir := workspace
	if _, err := a.run(ctx, workspaceDir, "rebase", "-d", "trunk()"); err != nil {
		return "", err
	}
	if _, err := a.run(ctx, workspaceDir, "bookmark", "move", "trunk", "--to", headSHA); err != nil {
		return "", err
	}
	return a.HeadCommit(ctx, workspaceDir)
}

func workspaceName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func isWorkspaceNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "workspace not found") ||
		strings.Contains(strings.ToLower(err.Error()), "no such workspace")
}
