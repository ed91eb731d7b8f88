package lock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
)

// WorkspaceLocks is the DB-row advisory lock over individual sessions
// (spec.md §4.5b): a caller holds exclusive access to one workspace's
// mutating operations without blocking unrelated workspaces.
type WorkspaceLocks struct {
	store *store.Store
}

// NewWorkspaceLocks constructs a WorkspaceLocks backed by s.
func NewWorkspaceLocks(s *store.Store) *WorkspaceLocks {
	return &WorkspaceLocks{store: s}
}

// Acquire takes the advisory lock on sessionName for agentID. Returns
// SessionLocked if another agent already holds it.
func (w *WorkspaceLocks) Acquire(ctx context.Context, sessionName, agentID, reason string) error {
	return w.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var holder string
		row := tx.QueryRowContext(ctx, `SELECT agent_id FROM workspace_locks WHERE session_name = ?`, sessionName)
		err := row.Scan(&holder)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// no existing holder
		case err != nil:
			return store.Classify(err)
		case holder != agentID:
			return railyarderr.LockContention(railyarderr.CodeSessionLocked, "workspace is locked by another agent").
				WithDetails(map[string]any{"session": sessionName, "holder": holder})
		default:
			return nil // idempotent re-acquire by the same holder
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workspace_locks(session_name, agent_id, acquired_at, reason) VALUES (?, ?, ?, ?)`,
			sessionName, agentID, time.Now().UTC(), reason)
		return store.Classify(err)
	})
}

// Release releases the advisory lock; non-holders are rejected.
func (w *WorkspaceLocks) Release(ctx context.Context, sessionName, agentID string) error {
	return w.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var holder string
		row := tx.QueryRowContext(ctx, `SELECT agent_id FROM workspace_locks WHERE session_name = ?`, sessionName)
		err := row.Scan(&holder)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return store.Classify(err)
		}
		if holder != agentID {
			return railyarderr.Validation(railyarderr.CodeNotLockHolder, "only the current lock holder may release this workspace lock").
				WithDetails(map[string]any{"session": sessionName})
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM workspace_locks WHERE session_name = ?`, sessionName)
		return store.Classify(err)
	})
}

// Holder returns the agent id currently holding sessionName's lock, or ""
// if unlocked.
func (w *WorkspaceLocks) Holder(ctx context.Context, sessionName string) (string, error) {
	var holder string
	row := w.store.UnderlyingDB().QueryRowContext(ctx, `SELECT agent_id FROM workspace_locks WHERE session_name = ?`, sessionName)
	err := row.Scan(&holder)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", store.Classify(err)
	}
	return holder, nil
}
