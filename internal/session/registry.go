// Package session implements the workspace-session registry (spec §4.2):
// create, list, get, update, rename, clone, pause/resume, remove, and orphan
// reconciliation, backed by internal/store.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// VCS is the subset of the VCS adapter contract (spec §6) the registry
// needs for clone and atomic cleanup.
type VCS interface {
	CreateWorkspaceAt(ctx context.Context, path, atRevision string) error
	ForgetWorkspace(ctx context.Context, path string) error
}

// TabRenamer is the (out-of-scope) multiplexer capability rename needs.
type TabRenamer interface {
	RenameTab(ctx context.Context, oldLabel, newLabel string) error
	InsideMultiplexer() bool
}

// Registry is the session registry (spec §4.2).
type Registry struct {
	store *store.Store
	vcs   VCS
	tabs  TabRenamer
}

// New constructs a Registry. tabs may be nil if rename support isn't needed
// (e.g. headless worker processes never call Rename).
func New(s *store.Store, vcs VCS, tabs TabRenamer) *Registry {
	return &Registry{store: s, vcs: vcs, tabs: tabs}
}

// Create inserts a new session record with status Creating. It does not
// create the filesystem workspace itself (spec §4.2: that is the caller's
// responsibility, typically via the VCS adapter).
func (r *Registry) Create(ctx context.Context, name, workspacePath string) (*types.Session, error) {
	if err := validateCreate(name, workspacePath); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &types.Session{
		Name:           name,
		WorkspacePath:  workspacePath,
		Status:         types.SessionCreating,
		LifecycleState: types.LifecycleCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       map[string]any{},
	}

	err := r.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE name = ? AND status != 'removed'`, name).Scan(&exists); err != nil {
			return store.Classify(err)
		}
		if exists > 0 {
			return railyarderr.Validation(railyarderr.CodeSessionExists, "session already exists").
				WithDetails(map[string]any{"name": name})
		}
		meta, _ := json.Marshal(sess.Metadata)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions(name, workspace_path, status, lifecycle_state, created_at, updated_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.Name, sess.WorkspacePath, sess.Status, sess.LifecycleState, sess.CreatedAt, sess.UpdatedAt, string(meta))
		return store.Classify(err)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns a session by name.
func (r *Registry) Get(ctx context.Context, name string) (*types.Session, error) {
	row := r.store.UnderlyingDB().QueryRowContext(ctx, `
		SELECT name, workspace_path, status, lifecycle_state, tab_label, branch_label,
		       created_at, updated_at, last_synced, metadata, worker_error
		FROM sessions WHERE name = ?`, name)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*types.Session, error) {
	var (
		s          types.Session
		tabLabel   sql.NullString
		branch     sql.NullString
		lastSynced sql.NullTime
		metaStr    string
		workerErr  sql.NullString
	)
	err := row.Scan(&s.Name, &s.WorkspacePath, &s.Status, &s.LifecycleState, &tabLabel, &branch,
		&s.CreatedAt, &s.UpdatedAt, &lastSynced, &metaStr, &workerErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, railyarderr.NotFound(railyarderr.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, store.Classify(err)
	}
	s.TabLabel = tabLabel.String
	s.BranchLabel = branch.String
	s.WorkerError = workerErr.String
	if lastSynced.Valid {
		t := lastSynced.Time
		s.LastSynced = &t
	}
	_ = json.Unmarshal([]byte(metaStr), &s.Metadata)
	return &s, nil
}

// List returns every non-removed session.
func (r *Registry) List(ctx context.Context) ([]*types.Session, error) {
	rows, err := r.store.UnderlyingDB().QueryContext(ctx, `
		SELECT name, workspace_path, status, lifecycle_state, tab_label, branch_label,
		       created_at, updated_at, last_synced, metadata, worker_error
		FROM sessions WHERE status != 'removed' ORDER BY created_at ASC`)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		var (
			s          types.Session
			tabLabel   sql.NullString
			branch     sql.NullString
			lastSynced sql.NullTime
			metaStr    string
			workerErr  sql.NullString
		)
		if err := rows.Scan(&s.Name, &s.WorkspacePath, &s.Status, &s.LifecycleState, &tabLabel, &branch,
			&s.CreatedAt, &s.UpdatedAt, &lastSynced, &metaStr, &workerErr); err != nil {
			return nil, store.Classify(err)
		}
		s.TabLabel = tabLabel.String
		s.BranchLabel = branch.String
		s.WorkerError = workerErr.String
		if lastSynced.Valid {
			t := lastSynced.Time
			s.LastSynced = &t
		}
		_ = json.Unmarshal([]byte(metaStr), &s.Metadata)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Patch is a partial update for Update.
type Patch struct {
	Status      *types.SessionStatus
	TabLabel    *string
	BranchLabel *string
	LastSynced  *time.Time
	Metadata    map[string]any
}

// Update applies a partial update; illegal status transitions return a
// ValidationError (spec §4.2).
func (r *Registry) Update(ctx context.Context, name string, patch Patch) (*types.Session, error) {
	var updated *types.Session
	err := r.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		cur, err := getForUpdate(ctx, tx, name)
		if err != nil {
			return err
		}

		sets := []string{"updated_at = ?"}
		args := []any{time.Now().UTC()}

		if patch.Status != nil {
			if !types.CanTransitionSessionStatus(cur.Status, *patch.Status) {
				return railyarderr.Validation(railyarderr.CodeInvalidStatusTransit, "illegal session status transition").
					WithDetails(map[string]any{"from": cur.Status, "to": *patch.Status})
			}
			sets = append(sets, "status = ?")
			args = append(args, *patch.Status)
			cur.Status = *patch.Status
		}
		if patch.TabLabel != nil {
			sets = append(sets, "tab_label = ?")
			args = append(args, *patch.TabLabel)
		}
		if patch.BranchLabel != nil {
			sets = append(sets, "branch_label = ?")
			args = append(args, *patch.BranchLabel)
		}
		if patch.LastSynced != nil {
			sets = append(sets, "last_synced = ?")
			args = append(args, *patch.LastSynced)
		}
		if patch.Metadata != nil {
			meta, _ := json.Marshal(patch.Metadata)
			sets = append(sets, "metadata = ?")
			args = append(args, string(meta))
		}

		args = append(args, name)
		query := "UPDATE sessions SET " + joinSets(sets) + " WHERE name = ?"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return store.Classify(err)
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func getForUpdate(ctx context.Context, tx *sql.Tx, name string) (*types.Session, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT name, workspace_path, status, lifecycle_state, tab_label, branch_label,
		       created_at, updated_at, last_synced, metadata, worker_error
		FROM sessions WHERE name = ?`, name)
	var (
		s          types.Session
		tabLabel   sql.NullString
		branch     sql.NullString
		lastSynced sql.NullTime
		metaStr    string
		workerErr  sql.NullString
	)
	err := row.Scan(&s.Name, &s.WorkspacePath, &s.Status, &s.LifecycleState, &tabLabel, &branch,
		&s.CreatedAt, &s.UpdatedAt, &lastSynced, &metaStr, &workerErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, railyarderr.NotFound(railyarderr.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, store.Classify(err)
	}
	s.TabLabel = tabLabel.String
	s.BranchLabel = branch.String
	s.WorkerError = workerErr.String
	_ = json.Unmarshal([]byte(metaStr), &s.Metadata)
	return &s, nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

// Rename renames a session (spec §4.2). Requires the caller to be inside
// the multiplexer (tab rename needs it) and that new is unused. The state
// store update is the single atomic step; the tab rename after it is
// best-effort. The renamed record keeps the old workspace_path: no
// workspace directory is moved on disk.
func (r *Registry) Rename(ctx context.Context, old, newName string) error {
	if old == newName {
		return nil // spec §8: rename a session to itself is a no-op success
	}
	if !ValidateName(newName) {
		return railyarderr.Validation(railyarderr.CodeInvalidSessionName, "invalid session name").
			WithDetails(map[string]any{"name": newName})
	}
	if r.tabs != nil && !r.tabs.InsideMultiplexer() {
		return railyarderr.Validation(railyarderr.CodeNotInMultiplexer, "rename requires running inside the multiplexer")
	}

	cur, err := r.Get(ctx, old)
	if err != nil {
		return err
	}

	newPath := cur.WorkspacePath // the workspace directory is not moved
	if _, err := r.Get(ctx, newName); err == nil {
		return railyarderr.Validation(railyarderr.CodeSessionExists, "target session name already in use").
			WithDetails(map[string]any{"name": newName})
	} else {
		var re *railyarderr.Error
		if !errors.As(err, &re) || re.Code != railyarderr.CodeSessionNotFound {
			return err
		}
	}

	err = r.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		meta, _ := json.Marshal(cur.Metadata)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions(name, workspace_path, status, lifecycle_state, tab_label, branch_label,
			                      created_at, updated_at, last_synced, metadata, worker_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newName, newPath, cur.Status, cur.LifecycleState, newName, cur.BranchLabel,
			cur.CreatedAt, time.Now().UTC(), cur.LastSynced, string(meta), cur.WorkerError)
		if err != nil {
			return store.Classify(err)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, old)
		return store.Classify(err)
	})
	if err != nil {
		return err
	}

	if r.tabs != nil {
		_ = r.tabs.RenameTab(ctx, old, newName) // best-effort, idempotent for retry
	}
	return nil
}

// Clone creates a new workspace at source's head revision via the VCS
// adapter and inserts a session record pointing at it (spec §4.2). If the
// VCS create step fails, no database record is inserted.
func (r *Registry) Clone(ctx context.Context, source, target, targetPath string) (*types.Session, error) {
	src, err := r.Get(ctx, source)
	if err != nil {
		return nil, err
	}
	if r.vcs != nil {
		if err := r.vcs.CreateWorkspaceAt(ctx, targetPath, src.BranchLabel); err != nil {
			return nil, railyarderr.Wrap(railyarderr.ClassExternal, railyarderr.CodeVCSCommandFailed, "cloning workspace", err)
		}
	}
	return r.Create(ctx, target, targetPath)
}

// ImportRecord inserts sess verbatim (status, timestamps, metadata
// included), bypassing Create's "starts in Creating" rule and Update's
// transition table. It is used by internal/snapshot to restore a session
// record from an export file, where the imported status is historical
// fact rather than a state change to validate. A record with sess.Name
// already present (including removed ones) is rejected with
// CodeSessionExists; the snapshot package decides whether that means
// "skip" or "fail" per its duplicate-handling flag.
func (r *Registry) ImportRecord(ctx context.Context, sess types.Session) error {
	if !ValidateName(sess.Name) {
		return railyarderr.Validation(railyarderr.CodeInvalidSessionName, "invalid session name").
			WithDetails(map[string]any{"name": sess.Name})
	}
	return r.store.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE name = ?`, sess.Name).Scan(&exists); err != nil {
			return store.Classify(err)
		}
		if exists > 0 {
			return railyarderr.Validation(railyarderr.CodeSessionExists, "session already exists").
				WithDetails(map[string]any{"name": sess.Name})
		}
		meta, _ := json.Marshal(sess.Metadata)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions(name, workspace_path, status, lifecycle_state, tab_label, branch_label,
			                      created_at, updated_at, last_synced, metadata, worker_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.Name, sess.WorkspacePath, sess.Status, sess.LifecycleState, sess.TabLabel, sess.BranchLabel,
			sess.CreatedAt, sess.UpdatedAt, sess.LastSynced, string(meta), sess.WorkerError)
		return store.Classify(err)
	})
}

// FindOrphans returns Type-1 orphans: sessions whose workspace_path no
// longer exists on disk (spec §4.2a).
func (r *Registry) FindOrphans(ctx context.Context) ([]*types.Session, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []*types.Session
	for _, s := range all {
		if s.Status == types.SessionCreating {
			continue
		}
		if _, err := os.Stat(s.WorkspacePath); os.IsNotExist(err) {
			orphans = append(orphans, s)
		}
	}
	return orphans, nil
}

// CleanupOrphans removes the database records for Type-1 orphans.
func (r *Registry) CleanupOrphans(ctx context.Context) (int, error) {
	orphans, err := r.FindOrphans(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orphans {
		if _, err := r.store.UnderlyingDB().ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, o.Name); err != nil {
			return n, store.Classify(err)
		}
		n++
	}
	return n, nil
}
