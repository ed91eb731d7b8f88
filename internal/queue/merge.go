package queue

import (
	"context"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/stack"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// VCS is the subset of the VCS adapter contract (spec.md §6) the merge step
// needs: performing the actual merge operation for a workspace at headSHA,
// returning the resulting commit id.
type VCS interface {
	Merge(ctx context.Context, workspace, headSHA string) (commitID string, err error)
}

// UndoWriter records a reversible merge (spec.md §4.6b); implemented by
// internal/checkpoint's undo log.
type UndoWriter interface {
	Append(ctx context.Context, entry types.UndoEntry) error
}

// MergeStep performs the merge step (spec.md §4.3 "Merge step") while the
// caller holds the build lock: verify tested_against_sha still matches
// head_sha (else the entry restarts from Rebasing), invoke the VCS merge,
// write an undo-log entry, and transition to Merged. A failed VCS merge or
// undo-log append routes the entry through Fail; errors from loading the
// entry, the ready-to-merge status check and the state transitions are
// returned to the caller without changing the entry.
func (q *Queue) MergeStep(ctx context.Context, entryID int64, vcs VCS, undo UndoWriter, agentID string) error {
	entry, err := q.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status != types.QueueReadyToMerge && entry.Status != types.QueueMerging {
		return railyarderr.Validation(railyarderr.CodeInvalidTransition, "entry is not ready to merge").
			WithDetails(map[string]any{"id": entryID, "status": entry.Status})
	}

	if entry.TestedAgainstSHA != entry.HeadSHA {
		return q.forceRestartFromRebasing(ctx, entryID, agentID,
			"head_sha changed since last test; restarting from Rebasing")
	}

	if entry.Status != types.QueueMerging {
		if err := q.Transition(ctx, entryID, types.QueueMerging, agentID, "merge step starting"); err != nil {
			return err
		}
	}

	commitID, err := vcs.Merge(ctx, entry.Workspace, entry.HeadSHA)
	if err != nil {
		return q.Fail(ctx, entryID, railyarderr.Wrap(railyarderr.ClassExternal, railyarderr.CodeVCSCommandFailed,
			"merging workspace", err), agentID)
	}

	if undo != nil {
		undoEntry := types.UndoEntry{
			SessionName:      entry.Workspace,
			CommitID:         commitID,
			PreMergeCommitID: entry.HeadSHA,
			Timestamp:        time.Now().UTC(),
			PushedToRemote:   false,
			Status:           "undoable",
		}
		if err := undo.Append(ctx, undoEntry); err != nil {
			return q.Fail(ctx, entryID, railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeWriteUndoLogFailed,
				"writing undo log entry", err), agentID)
		}
	}

	if err := q.Transition(ctx, entryID, types.QueueMerged, agentID, "merge complete"); err != nil {
		return err
	}
	return q.propagateStackMerge(ctx, entry.Workspace)
}

// propagateStackMerge recomputes each entry's stack-merge state now that
// merged has landed (spec.md §4.4): a dependent blocked only on merged
// becomes Ready. Runs after the merge transition commits, so a failure
// here never reverts an already-successful merge; it only leaves
// dependents' merge-readiness stale until the next propagation.
func (q *Queue) propagateStackMerge(ctx context.Context, merged string) error {
	entries, err := q.List(ctx)
	if err != nil {
		return err
	}
	snapshot := make([]types.Entry, len(entries))
	for i, e := range entries {
		snapshot[i] = *e
	}

	for _, e := range stack.PropagateDependents(merged, snapshot) {
		if _, err := q.store.UnderlyingDB().ExecContext(ctx,
			`UPDATE queue_entries SET stack_merge_state = ? WHERE workspace = ?`,
			e.StackMergeState, e.Workspace); err != nil {
			return store.Classify(err)
		}
	}
	return nil
}
