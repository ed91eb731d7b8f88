package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// NextWithLock atomically claims the highest-priority eligible Pending
// entry for agentID and takes the processing lock (spec.md §4.3
// "Claiming", INV-QUEUE-005). A timed-out holder is reclaimed first: its
// entry returns to Pending with attempt_count incremented. Returns
// (nil, nil) if no entry is currently eligible.
func (q *Queue) NextWithLock(ctx context.Context, agentID string, lockTimeout time.Duration) (*types.Entry, error) {
	var claimed *types.Entry
	err := q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		if err := reclaimIfExpired(ctx, tx); err != nil {
			return err
		}
		if held, err := processingLockHeld(ctx, tx); err != nil {
			return err
		} else if held {
			return nil // another agent holds the processing lock: nothing is claimable
		}

		candidates, err := pendingCandidates(ctx, tx)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			eligible, err := isClaimEligible(ctx, tx, c)
			if err != nil {
				return err
			}
			if !eligible {
				continue
			}
			now := time.Now().UTC()
			expires := now.Add(lockTimeout)
			if _, err := tx.ExecContext(ctx, `
				UPDATE queue_entries SET status = 'claimed', agent_id = ?, started_at = ?, lock_expires_at = ?
				WHERE id = ?`, agentID, now, expires, c.ID); err != nil {
				return store.Classify(err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO queue_audit_events(entry_id, from_state, to_state, at, actor, reason)
				VALUES (?, 'pending', 'claimed', ?, ?, 'claim')`, c.ID, now, agentID); err != nil {
				return store.Classify(err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO processing_lock(singleton, entry_id, agent_id, expires_at) VALUES (1, ?, ?, ?)
				ON CONFLICT(singleton) DO UPDATE SET entry_id = excluded.entry_id, agent_id = excluded.agent_id, expires_at = excluded.expires_at`,
				c.ID, agentID, expires); err != nil {
				return store.Classify(err)
			}
			c.Status = types.QueueClaimed
			c.AgentID = agentID
			c.StartedAt = &now
			c.LockExpiresAt = &expires
			claimed = c
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ExtendLock extends the processing lock's expiry; only the current holder
// may do so (spec.md §4.3).
func (q *Queue) ExtendLock(ctx context.Context, agentID string, entryID int64, extension time.Duration) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		holder, expires, err := currentLockHolder(ctx, tx)
		if err != nil {
			return err
		}
		if holder != agentID {
			return railyarderr.Validation(railyarderr.CodeNotLockHolder, "only the current lock holder may extend the lock").
				WithDetails(map[string]any{"agent_id": agentID})
		}
		newExpiry := maxTime(expires, time.Now().UTC()).Add(extension)
		if _, err := tx.ExecContext(ctx, `UPDATE processing_lock SET expires_at = ? WHERE singleton = 1`, newExpiry); err != nil {
			return store.Classify(err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE queue_entries SET lock_expires_at = ? WHERE id = ?`, newExpiry, entryID)
		return store.Classify(err)
	})
}

// ReleaseLock releases the processing lock; non-holders are rejected (spec.md §4.3).
func (q *Queue) ReleaseLock(ctx context.Context, agentID string) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		holder, _, err := currentLockHolder(ctx, tx)
		if err != nil {
			return err
		}
		if holder == "" {
			return nil
		}
		if holder != agentID {
			return railyarderr.Validation(railyarderr.CodeNotLockHolder, "only the current lock holder may release the lock").
				WithDetails(map[string]any{"agent_id": agentID})
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM processing_lock WHERE singleton = 1`)
		return store.Classify(err)
	})
}

func currentLockHolder(ctx context.Context, tx *sql.Tx) (agentID string, expiresAt time.Time, err error) {
	var holder sql.NullString
	var exp sql.NullTime
	row := tx.QueryRowContext(ctx, `SELECT agent_id, expires_at FROM processing_lock WHERE singleton = 1`)
	if scanErr := row.Scan(&holder, &exp); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, store.Classify(scanErr)
	}
	return holder.String, exp.Time, nil
}

func processingLockHeld(ctx context.Context, tx *sql.Tx) (bool, error) {
	holder, _, err := currentLockHolder(ctx, tx)
	return holder != "", err
}

// reclaimIfExpired reclaims a timed-out processing lock: the held entry
// returns to Pending with attempt_count incremented (spec.md §4.3 "A
// timed-out lock may be reclaimed by another agent").
func reclaimIfExpired(ctx context.Context, tx *sql.Tx) error {
	holder, expires, err := currentLockHolder(ctx, tx)
	if err != nil || holder == "" {
		return err
	}
	if time.Now().UTC().Before(expires) {
		return nil // still live
	}

	var entryID int64
	row := tx.QueryRowContext(ctx, `SELECT entry_id FROM processing_lock WHERE singleton = 1`)
	if err := row.Scan(&entryID); err != nil {
		return store.Classify(err)
	}
	entry, err := getTx(ctx, tx, entryID)
	if err != nil {
		return err
	}
	if !entry.Status.IsTerminal() && entry.Status != types.QueuePending {
		if err := applyTransition(ctx, tx, entry, types.QueuePending, "lock-reclaim", "processing lock expired"); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM processing_lock WHERE singleton = 1`)
	return store.Classify(err)
}

func pendingCandidates(ctx context.Context, tx *sql.Tx) ([]*types.Entry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM queue_entries WHERE status = 'pending'
		ORDER BY priority ASC, added_at ASC`)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []*types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// isClaimEligible reports whether c's parent (if any) is Merged/Independent
// and no ancestor is in a failed status (spec.md §4.3 "Claiming").
func isClaimEligible(ctx context.Context, tx *sql.Tx, c *types.Entry) (bool, error) {
	if c.ParentWorkspace == "" {
		return true, nil
	}
	cur := c.ParentWorkspace
	visited := map[string]bool{}
	for cur != "" {
		if visited[cur] {
			return false, nil // cycle shouldn't exist (stack engine prevents it), treat defensively as ineligible
		}
		visited[cur] = true

		parent, err := findLatestByWorkspace(ctx, tx, cur)
		if err != nil {
			return false, err
		}
		if parent == nil {
			return true, nil // no queue entry tracks this workspace; treat as independent
		}
		if parent.Status == types.QueueFailedRetryable || parent.Status == types.QueueFailedTerminal {
			return false, nil
		}
		if cur == c.ParentWorkspace {
			if parent.Status != types.QueueMerged && parent.StackMergeState != types.StackIndependent {
				return false, nil
			}
		}
		cur = parent.ParentWorkspace
	}
	return true, nil
}

func findLatestByWorkspace(ctx context.Context, tx *sql.Tx, workspace string) (*types.Entry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM queue_entries WHERE workspace = ? ORDER BY added_at DESC LIMIT 1`, workspace)
	e, err := scanEntry(row)
	if errors.Is(err, errEntryNotFound) {
		return nil, nil
	}
	return e, err
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
