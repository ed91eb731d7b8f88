package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// Transition applies a legal pipeline transition (spec.md §4.3) and records
// an audit event. Illegal transitions, including any attempt to leave a
// terminal state (INV-QUEUE-004), return InvalidStateTransition.
func (q *Queue) Transition(ctx context.Context, id int64, to types.QueueStatus, actor, reason string) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		cur, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !types.CanTransitionQueueStatus(cur.Status, to) {
			return railyarderr.Validation(railyarderr.CodeInvalidTransition, "illegal queue entry state transition").
				WithDetails(map[string]any{"id": id, "from": cur.Status, "to": to})
		}
		return applyTransition(ctx, tx, cur, to, actor, reason)
	})
}

// applyTransition performs the status update plus its side effects (started_at
// / completed_at bookkeeping) and writes the audit row. Caller must have
// already validated the transition is legal.
func applyTransition(ctx context.Context, tx *sql.Tx, cur *types.Entry, to types.QueueStatus, actor, reason string) error {
	from := cur.Status
	now := time.Now().UTC()

	sets := []string{"status = ?"}
	args := []any{to}
	if to == types.QueueMerged || to == types.QueueFailedTerminal {
		sets = append(sets, "completed_at = ?")
		args = append(args, now)
	}
	if to == types.QueueFailedRetryable || to == types.QueueFailedTerminal {
		sets = append(sets, "error_message = ?")
		args = append(args, reason)
	}
	if to == types.QueuePending {
		// Both the FailedRetryable->Pending retry path and the claimed-lock
		// reclaim path land an entry back on Pending with attempt_count
		// incremented (spec.md §4.3).
		sets = append(sets, "attempt_count = attempt_count + 1", "agent_id = ''", "started_at = NULL")
	}

	args = append(args, cur.ID)
	query := "UPDATE queue_entries SET " + joinSets(sets) + " WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return store.Classify(err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO queue_audit_events(entry_id, from_state, to_state, at, actor, reason)
		VALUES (?, ?, ?, ?, ?, ?)`, cur.ID, from, to, now, actor, reason)
	return store.Classify(err)
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

// forceRestartFromRebasing moves an entry back to Rebasing regardless of its
// current status, for the merge step's "head_sha changed since last test"
// path (spec.md §4.3 "Merge step"), which is not one of the ordinary
// forward pipeline transitions and so is not governed by
// types.CanTransitionQueueStatus.
func (q *Queue) forceRestartFromRebasing(ctx context.Context, id int64, actor, reason string) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		cur, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status.IsTerminal() {
			return railyarderr.Validation(railyarderr.CodeInvalidTransition, "entry is already in a terminal state").
				WithDetails(map[string]any{"id": id, "status": cur.Status})
		}
		return applyTransition(ctx, tx, cur, types.QueueRebasing, actor, reason)
	})
}

// Fail classifies err (spec.md §4.3 "Error classification") and transitions
// the entry to FailedRetryable or FailedTerminal accordingly, downgrading a
// retryable classification to terminal once attempt_count reaches
// max_attempts.
func (q *Queue) Fail(ctx context.Context, id int64, failure error, actor string) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		cur, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status.IsTerminal() {
			return railyarderr.Validation(railyarderr.CodeInvalidTransition, "entry is already in a terminal state").
				WithDetails(map[string]any{"id": id, "status": cur.Status})
		}

		to := types.QueueFailedTerminal
		if railyarderr.ClassifyWithAttempts(failure, cur.AttemptCount, cur.MaxAttempts) == railyarderr.Retryable {
			to = types.QueueFailedRetryable
		}
		return applyTransition(ctx, tx, cur, to, actor, failure.Error())
	})
}

// Retry returns a FailedRetryable entry to Pending, incrementing
// attempt_count (spec.md §4.3 pipeline diagram).
func (q *Queue) Retry(ctx context.Context, id int64, actor string) error {
	return q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		cur, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status != types.QueueFailedRetryable {
			return railyarderr.Validation(railyarderr.CodeInvalidTransition, "only FailedRetryable entries can be retried").
				WithDetails(map[string]any{"id": id, "status": cur.Status})
		}
		return applyTransition(ctx, tx, cur, types.QueuePending, actor, "retry")
	})
}

// AuditTrail returns every audit event recorded for entry id, oldest first.
func (q *Queue) AuditTrail(ctx context.Context, id int64) ([]types.AuditEvent, error) {
	rows, err := q.store.UnderlyingDB().QueryContext(ctx, `
		SELECT id, entry_id, from_state, to_state, at, actor, reason
		FROM queue_audit_events WHERE entry_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []types.AuditEvent
	for rows.Next() {
		var ev types.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.EntryID, &ev.FromState, &ev.ToState, &ev.At, &ev.Actor, &ev.Reason); err != nil {
			return nil, store.Classify(err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
