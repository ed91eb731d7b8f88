// Package checkpoint implements the auto-checkpoint guard and undo log
// (spec.md §4.6): a scoped resource wrapping risky commands with a
// before-snapshot row, and an append-only record of reversible merges.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// riskyCommands classifies which command names create a checkpoint before
// running (spec.md §4.6a).
var riskyCommands = map[string]bool{
	"batch":   true,
	"spawn":   true,
	"remove":  true,
	"cleanup": true,
	"rebase":  true,
	"squash":  true,
}

// IsRisky reports whether command requires an auto-checkpoint.
func IsRisky(command string) bool { return riskyCommands[command] }

// Guard is the scoped auto-checkpoint resource (spec.md §4.6a). Callers
// must call Release on every exit path (typically via defer); Release is a
// no-op once Commit has succeeded.
type Guard struct {
	store        *store.Store
	checkpointID string
	committed    bool
	noop         bool
}

// NewGuard creates a checkpoint row (state pending) if command is risky,
// and returns a no-op Guard otherwise so callers can use the same
// guard/defer pattern uniformly regardless of command risk.
func NewGuard(ctx context.Context, s *store.Store, command, sessionName, preRevision string) (*Guard, error) {
	if !IsRisky(command) {
		return &Guard{noop: true}, nil
	}
	id := fmt.Sprintf("auto-%d", time.Now().UTC().UnixMilli())
	_, err := s.UnderlyingDB().ExecContext(ctx, `
		INSERT INTO checkpoints(id, created_at, state, command, session_name, pre_revision)
		VALUES (?, ?, 'pending', ?, ?, ?)`, id, time.Now().UTC(), command, sessionName, preRevision)
	if err != nil {
		return nil, store.Classify(err)
	}
	return &Guard{store: s, checkpointID: id}, nil
}

// ID returns the checkpoint's id, or "" for a no-op guard.
func (g *Guard) ID() string { return g.checkpointID }

// Commit marks the checkpoint committed (discarded): the risky operation
// completed successfully and no restore will ever be needed.
func (g *Guard) Commit(ctx context.Context) error {
	if g.noop || g.committed {
		return nil
	}
	_, err := g.store.UnderlyingDB().ExecContext(ctx, `
		UPDATE checkpoints SET state = 'committed' WHERE id = ?`, g.checkpointID)
	if err != nil {
		return store.Classify(err)
	}
	g.committed = true
	return nil
}

// Release marks the checkpoint needs_restore if Commit was never called
// (spec.md §4.6a "on drop without commit the checkpoint is marked
// needs_restore"). Safe to call multiple times and after Commit.
func (g *Guard) Release(ctx context.Context) error {
	if g.noop || g.committed {
		return nil
	}
	_, err := g.store.UnderlyingDB().ExecContext(ctx, `
		UPDATE checkpoints SET state = 'needs_restore' WHERE id = ? AND state = 'pending'`, g.checkpointID)
	return store.Classify(err)
}

// FindCrashed returns every checkpoint in state pending or needs_restore,
// surfaced to the user at startup as evidence of a crash mid-operation
// (spec.md §3 "Checkpoint").
func FindCrashed(ctx context.Context, s *store.Store) ([]types.Checkpoint, error) {
	rows, err := s.UnderlyingDB().QueryContext(ctx, `
		SELECT id, created_at, state, command, session_name, pre_revision
		FROM checkpoints WHERE state IN ('pending', 'needs_restore') ORDER BY created_at ASC`)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []types.Checkpoint
	for rows.Next() {
		var c types.Checkpoint
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.State, &c.Command, &c.SessionName, &c.PreRevision); err != nil {
			return nil, store.Classify(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RestoreResult reports what a state-store restore found: the pre-op
// revision the caller should roll the workspace back to via the VCS
// adapter, and the session the checkpoint guarded. Restore's scope is
// deliberately conservative (SPEC_FULL.md §4.6): it restores state-store
// bookkeeping only, not filesystem content.
type RestoreResult struct {
	CheckpointID string
	SessionName  string
	Command      string
	PreRevision  string
}

// Restore re-reads a checkpoint's recorded pre-state and reports the
// revision to roll back to, marking the checkpoint committed so it isn't
// surfaced again by FindCrashed.
func Restore(ctx context.Context, s *store.Store, checkpointID string) (*RestoreResult, error) {
	var c types.Checkpoint
	row := s.UnderlyingDB().QueryRowContext(ctx, `
		SELECT id, created_at, state, command, session_name, pre_revision FROM checkpoints WHERE id = ?`, checkpointID)
	err := row.Scan(&c.ID, &c.CreatedAt, &c.State, &c.Command, &c.SessionName, &c.PreRevision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, railyarderr.NotFound("CHECKPOINT_NOT_FOUND", "checkpoint not found").
			WithDetails(map[string]any{"id": checkpointID})
	}
	if err != nil {
		return nil, store.Classify(err)
	}

	if _, err := s.UnderlyingDB().ExecContext(ctx, `UPDATE checkpoints SET state = 'committed' WHERE id = ?`, checkpointID); err != nil {
		return nil, store.Classify(err)
	}
	return &RestoreResult{CheckpointID: c.ID, SessionName: c.SessionName, Command: c.Command, PreRevision: c.PreRevision}, nil
}
