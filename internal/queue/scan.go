package queue

import (
	"context"
	"database/sql"
	"errors"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

var errEntryNotFound = errors.New("queue: entry not found")

const entryColumns = `
	id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
	error_message, agent_id, dedupe_key, head_sha, tested_against_sha,
	attempt_count, max_attempts, rebase_count, last_rebase_at, parent_workspace,
	stack_depth, stack_root, stack_merge_state, lock_expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*types.Entry, error) {
	var (
		e                                   types.Entry
		beadID, agentID, headSHA, testedSHA string
		errMsg, parent, stackRoot           string
		startedAt, completedAt              sql.NullTime
		lastRebaseAt, lockExpiresAt         sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.Workspace, &beadID, &e.Priority, &e.Status, &e.AddedAt, &startedAt, &completedAt,
		&errMsg, &agentID, &e.DedupeKey, &headSHA, &testedSHA,
		&e.AttemptCount, &e.MaxAttempts, &e.RebaseCount, &lastRebaseAt, &parent,
		&e.StackDepth, &stackRoot, &e.StackMergeState, &lockExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errEntryNotFound
	}
	if err != nil {
		return nil, store.Classify(err)
	}

	e.BeadID = beadID
	e.AgentID = agentID
	e.HeadSHA = headSHA
	e.TestedAgainstSHA = testedSHA
	e.ErrorMessage = errMsg
	e.ParentWorkspace = parent
	e.StackRoot = stackRoot
	if startedAt.Valid {
		t := startedAt.Time
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	if lastRebaseAt.Valid {
		t := lastRebaseAt.Time
		e.LastRebaseAt = &t
	}
	if lockExpiresAt.Valid {
		t := lockExpiresAt.Time
		e.LockExpiresAt = &t
	}
	return &e, nil
}

func getTx(ctx context.Context, tx *sql.Tx, id int64) (*types.Entry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, errEntryNotFound) {
		return nil, railyarderr.NotFound(railyarderr.CodeEntryNotFound, "queue entry not found").
			WithDetails(map[string]any{"id": id})
	}
	return e, err
}

// Get returns a queue entry by id.
func (q *Queue) Get(ctx context.Context, id int64) (*types.Entry, error) {
	row := q.store.UnderlyingDB().QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, errEntryNotFound) {
		return nil, railyarderr.NotFound(railyarderr.CodeEntryNotFound, "queue entry not found").
			WithDetails(map[string]any{"id": id})
	}
	return e, err
}

// List returns every queue entry, optionally filtered to the given
// statuses (no filter returns every entry), ordered (priority ASC, added_at
// ASC) per spec.md §5 "Ordering guarantees".
func (q *Queue) List(ctx context.Context, statuses ...types.QueueStatus) ([]*types.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM queue_entries`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY priority ASC, added_at ASC`

	rows, err := q.store.UnderlyingDB().QueryContext(ctx, query, args...)
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

func placeholders(n int) string {
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
