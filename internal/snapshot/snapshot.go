// Package snapshot implements JSON export/import of session records
// (spec.md §4.8): export dumps every session with a schema-version field;
// import is additive and either skips or rejects name collisions. A dry
// run writes nothing and lists every record in the file as imported; it
// does not check for name collisions.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

// SchemaVersion is the current export format version. Bumped whenever the
// Record shape changes incompatibly.
const SchemaVersion = 1

// Record is one session's exported shape — a deliberately narrow
// projection of types.Session, so the export format is stable even if
// internal bookkeeping fields are added later.
type Record struct {
	Name           string         `json:"name"`
	WorkspacePath  string         `json:"workspace_path"`
	Status         string         `json:"status"`
	LifecycleState string         `json:"lifecycle_state"`
	TabLabel       string         `json:"tab_label,omitempty"`
	BranchLabel    string         `json:"branch_label,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastSynced     *time.Time     `json:"last_synced,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Document is the full exported file.
type Document struct {
	SchemaVersion int       `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`
	Sessions      []Record  `json:"sessions"`
}

func toRecord(s *types.Session) Record {
	return Record{
		Name:           s.Name,
		WorkspacePath:  s.WorkspacePath,
		Status:         string(s.Status),
		LifecycleState: string(s.LifecycleState),
		TabLabel:       s.TabLabel,
		BranchLabel:    s.BranchLabel,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		LastSynced:     s.LastSynced,
		Metadata:       s.Metadata,
	}
}

func (r Record) toSession() types.Session {
	return types.Session{
		Name:           r.Name,
		WorkspacePath:  r.WorkspacePath,
		Status:         types.SessionStatus(r.Status),
		LifecycleState: types.LifecycleState(r.LifecycleState),
		TabLabel:       r.TabLabel,
		BranchLabel:    r.BranchLabel,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastSynced:     r.LastSynced,
		Metadata:       r.Metadata,
	}
}

// Lister is the subset of internal/session.Registry export needs.
type Lister interface {
	List(ctx context.Context) ([]*types.Session, error)
}

// Importer is the subset of internal/session.Registry import needs.
type Importer interface {
	ImportRecord(ctx context.Context, sess types.Session) error
}

// Export writes every session in reg as a Document to w.
func Export(ctx context.Context, reg Lister, w io.Writer, now time.Time) error {
	sessions, err := reg.List(ctx)
	if err != nil {
		return err
	}
	doc := Document{SchemaVersion: SchemaVersion, ExportedAt: now.UTC()}
	for _, s := range sessions {
		doc.Sessions = append(doc.Sessions, toRecord(s))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, "EXPORT_ENCODE_FAILED", "encode export document", err)
	}
	return nil
}

// DuplicatePolicy controls what Import does when a session name already
// exists.
type DuplicatePolicy int

const (
	// DuplicateReject fails the whole import on the first collision.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateSkip leaves the existing record untouched and continues.
	DuplicateSkip
)

// ImportResult reports what an Import call did or would do.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import reads a Document from r and inserts every session not already
// present. With dryRun, no writes occur and every record in the document
// is listed under Imported; collisions with existing sessions are not
// checked, so Skipped stays empty.
func Import(ctx context.Context, reg Importer, r io.Reader, policy DuplicatePolicy, dryRun bool) (*ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, railyarderr.Wrap(railyarderr.ClassValidation, "IMPORT_DECODE_FAILED", "decode import document", err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, railyarderr.Validation("UNSUPPORTED_SCHEMA_VERSION", "import file uses a newer schema version than this build supports").
			WithDetails(map[string]any{"file_version": doc.SchemaVersion, "supported_version": SchemaVersion})
	}

	result := &ImportResult{}
	for _, rec := range doc.Sessions {
		if dryRun {
			result.Imported = append(result.Imported, rec.Name)
			continue
		}
		err := reg.ImportRecord(ctx, rec.toSession())
		if err == nil {
			result.Imported = append(result.Imported, rec.Name)
			continue
		}
		var re *railyarderr.Error
		if errors.As(err, &re) && re.Code == railyarderr.CodeSessionExists && policy == DuplicateSkip {
			result.Skipped = append(result.Skipped, rec.Name)
			continue
		}
		return result, err
	}
	return result, nil
}
