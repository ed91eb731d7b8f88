// Package queue implements the merge queue and pipeline (spec.md §4.3): a
// priority queue over queue-entry records with a strict per-entry state
// machine, claim/lease semantics guarding the single global processing
// lock, and the merge step itself. Every mutating operation runs inside a
// single store transaction so INV-QUEUE-001 through INV-QUEUE-005 hold even
// under concurrent callers — the same "one transaction per state change"
// discipline the teacher's storage layer uses for issue updates.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/stack"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// Queue is the merge queue (spec.md §4.3).
type Queue struct {
	store *store.Store
}

// New constructs a Queue backed by s.
func New(s *store.Store) *Queue {
	return &Queue{store: s}
}

// dedupeKeyRE enforces the "workspace:change_id" format (spec.md §4.3).
var dedupeKeyRE = regexp.MustCompile(`^[^:]+:[^:]+$`)

// defaultPriority is used only when SubmitRequest.Priority is nil, i.e. the
// caller did not supply one at all (spec.md §3). An explicit 0 is the most
// urgent priority and must be stored as given (spec.md §8: "Priority
// ordering holds across i32::MIN … i32::MAX").
const defaultPriority = 5

// SubmitRequest is the input to Submit (spec.md §4.3 "Admission / submission").
// Priority is a pointer so "not supplied" (nil, defaults to defaultPriority)
// is distinguishable from an explicit, most-urgent priority of 0.
type SubmitRequest struct {
	Workspace string
	DedupeKey string
	HeadSHA   string
	Parent    string
	Priority  *int
}

// Submit admits (or idempotently updates) a queue entry per spec.md §4.3's
// admission rules.
func (q *Queue) Submit(ctx context.Context, req SubmitRequest) (*types.Entry, error) {
	if req.DedupeKey == "" || !dedupeKeyRE.MatchString(req.DedupeKey) {
		return nil, railyarderr.Validation(railyarderr.CodeInvalidDedupeKey, "dedupe_key must be non-empty and match workspace:change_id").
			WithDetails(map[string]any{"dedupe_key": req.DedupeKey})
	}
	priority := defaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	var result *types.Entry
	err := q.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		existingByDedupe, err := findActiveByDedupeKey(ctx, tx, req.DedupeKey)
		if err != nil {
			return err
		}
		if existingByDedupe != nil && existingByDedupe.Workspace != req.Workspace {
			return railyarderr.Validation(railyarderr.CodeDedupeKeyConflict,
				"another active entry already holds this dedupe_key under a different workspace").
				WithDetails(map[string]any{"dedupe_key": req.DedupeKey, "existing_workspace": existingByDedupe.Workspace})
		}

		existingByWorkspace, err := findActiveByWorkspace(ctx, tx, req.Workspace)
		if err != nil {
			return err
		}
		switch {
		case existingByWorkspace != nil && existingByWorkspace.DedupeKey != req.DedupeKey:
			return railyarderr.Validation(railyarderr.CodeAlreadyInQueue,
				"workspace already has an active entry under a different dedupe_key").
				WithDetails(map[string]any{"workspace": req.Workspace, "existing_dedupe_key": existingByWorkspace.DedupeKey})
		case existingByWorkspace != nil:
			// Idempotent upsert: same workspace + dedupe_key.
			_, err := tx.ExecContext(ctx, `UPDATE queue_entries SET head_sha = ? WHERE id = ?`, req.HeadSHA, existingByWorkspace.ID)
			if err != nil {
				return store.Classify(err)
			}
			existingByWorkspace.HeadSHA = req.HeadSHA
			existingByWorkspace.SubmissionType = "updated"
			result = existingByWorkspace
			return nil
		}

		active, err := listActiveTx(ctx, tx)
		if err != nil {
			return err
		}
		if req.Parent != "" {
			if err := stack.ValidateNoCycle(req.Workspace, req.Parent, active); err != nil {
				return err
			}
		}
		withNew := stack.RecomputeDepth(append(active, types.Entry{Workspace: req.Workspace, ParentWorkspace: req.Parent}))
		newEntry := withNew[len(withNew)-1]

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO queue_entries(workspace, priority, status, added_at, dedupe_key, head_sha, parent_workspace, max_attempts, stack_depth, stack_root)
			VALUES (?, ?, 'pending', ?, ?, ?, ?, 3, ?, ?)`,
			req.Workspace, priority, now, req.DedupeKey, req.HeadSHA, req.Parent, newEntry.StackDepth, newEntry.StackRoot)
		if err != nil {
			return store.Classify(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return store.Classify(err)
		}
		e, err := getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		e.SubmissionType = "created"
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func findActiveByDedupeKey(ctx context.Context, tx *sql.Tx, dedupeKey string) (*types.Entry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE dedupe_key = ? AND status NOT IN ('merged', 'failed_terminal')`, dedupeKey)
	e, err := scanEntry(row)
	if errors.Is(err, errEntryNotFound) {
		return nil, nil
	}
	return e, err
}

func findActiveByWorkspace(ctx context.Context, tx *sql.Tx, workspace string) (*types.Entry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE workspace = ? AND status NOT IN ('merged', 'failed_terminal')`, workspace)
	e, err := scanEntry(row)
	if errors.Is(err, errEntryNotFound) {
		return nil, nil
	}
	return e, err
}

// listActiveTx returns every non-terminal entry within tx, the snapshot
// internal/stack's pure functions walk for cycle checks and depth/root
// recomputation.
func listActiveTx(ctx context.Context, tx *sql.Tx) ([]types.Entry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE status NOT IN ('merged', 'failed_terminal')`)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
