package session

import (
	"context"
	"errors"
	"os"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
)

// RemoveOptions configures atomic cleanup (spec §4.2a).
type RemoveOptions struct {
	Force      bool // if the workspace directory is missing, skip to record deletion instead of failing with WORKSPACE_INACCESSIBLE
	KeepBranch bool // not read by Remove; the VCS forget step has no branch option
	ForgetVCS  bool // whether to call the VCS forget step at all
}

// Remove runs the four-phase atomic cleanup from spec §4.2a: validate, VCS
// forget, directory removal, record deletion. Each phase's idempotence and
// failure-handling rules are as specified.
func (r *Registry) Remove(ctx context.Context, name string, opts RemoveOptions) error {
	sess, err := r.Get(ctx, name)
	if err != nil {
		return err
	}

	// Phase 1: validate.
	if _, statErr := os.Stat(sess.WorkspacePath); os.IsNotExist(statErr) {
		if !opts.Force {
			return railyarderr.NotFound(railyarderr.CodeWorkspaceInaccessible, "workspace path does not exist").
				WithDetails(map[string]any{"path": sess.WorkspacePath})
		}
		// Force: directory is already gone, skip straight to record deletion
		// (this is exactly the "directory already deleted" idempotence law,
		// spec §8).
		return r.deleteRecord(ctx, name)
	}

	// Phase 2: VCS forget.
	if opts.ForgetVCS && r.vcs != nil {
		if err := r.vcs.ForgetWorkspace(ctx, sess.WorkspacePath); err != nil {
			if !isNotFoundIdempotent(err) {
				return railyarderr.Wrap(railyarderr.ClassExternal, railyarderr.CodeVCSCommandFailed,
					"forgetting workspace in VCS", err)
			}
			// "not found" from VCS forget is treated as idempotent success.
		}
	}

	// Phase 3: directory removal.
	if err := os.RemoveAll(sess.WorkspacePath); err != nil {
		if !os.IsNotExist(err) {
			if _, err2 := r.store.UnderlyingDB().ExecContext(ctx,
				`UPDATE sessions SET removal_failed_reason = ? WHERE name = ?`, err.Error(), name); err2 != nil {
				return store.Classify(err2)
			}
			return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeWorkspaceRemovalFail,
				"removing workspace directory", err).
				WithSuggestion("the session record was preserved; retry removal")
		}
		// NotFound is idempotent success.
	}

	// Phase 4: record deletion.
	return r.deleteRecord(ctx, name)
}

func (r *Registry) deleteRecord(ctx context.Context, name string) error {
	res, err := r.store.UnderlyingDB().ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, "RECORD_DELETION_FAILED",
			"workspace already removed but the session record could not be deleted; manual cleanup required", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return railyarderr.NotFound(railyarderr.CodeSessionNotFound, "session not found")
	}
	return nil
}

func isNotFoundIdempotent(err error) bool {
	var re *railyarderr.Error
	if errors.As(err, &re) {
		return re.Class == railyarderr.ClassNotFound
	}
	return false
}

// Type2Orphan describes a directory under the workspaces root with no
// matching session record (spec §4.2a).
type Type2Orphan struct {
	Path string
}

// FindType2Orphans scans workspacesRoot for directories that don't
// correspond to any tracked session.
func (r *Registry) FindType2Orphans(ctx context.Context, workspacesRoot string) ([]Type2Orphan, error) {
	entries, err := os.ReadDir(workspacesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sessions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	tracked := map[string]bool{}
	for _, s := range sessions {
		tracked[s.WorkspacePath] = true
	}

	var orphans []Type2Orphan
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		full := workspacesRoot + string(os.PathSeparator) + e.Name()
		if !tracked[full] {
			orphans = append(orphans, Type2Orphan{Path: full})
		}
	}
	return orphans, nil
}
