// Package beadsapi adapts the external beads issue store — an append-only
// JSONL file at .beads/issues.jsonl (spec.md §6) — into the core's
// read-only types.Bead view. The core reads the whole file, rewrites the
// whole file on update, and treats a missing file as empty; this package
// never re-implements bead semantics (blocking, readiness — that's
// types.Bead's job), only the wire format and file I/O.
package beadsapi

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/railyard/railyard/internal/types"
)

// record is one JSONL line's wire shape.
type record struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Parent      string   `json:"parent,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	BlockedBy   []string `json:"blocked_by,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

func (r record) toBead() types.Bead {
	b := types.Bead{
		ID:          r.ID,
		Status:      types.BeadStatus(r.Status),
		Priority:    r.Priority,
		Type:        r.Type,
		Description: r.Description,
		Labels:      r.Labels,
		Assignee:    r.Assignee,
		Parent:      r.Parent,
		DependsOn:   r.DependsOn,
		BlockedBy:   r.BlockedBy,
	}
	if t, err := parseTime(r.CreatedAt); err == nil {
		b.CreatedAt = t
	}
	if t, err := parseTime(r.UpdatedAt); err == nil {
		b.UpdatedAt = t
	}
	return b
}

func fromBead(b types.Bead) record {
	return record{
		ID:          b.ID,
		Title:       b.Description,
		Status:      string(b.Status),
		Priority:    b.Priority,
		Type:        b.Type,
		Description: b.Description,
		Labels:      b.Labels,
		Assignee:    b.Assignee,
		Parent:      b.Parent,
		DependsOn:   b.DependsOn,
		BlockedBy:   b.BlockedBy,
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

// Store reads and rewrites a single .beads/issues.jsonl file.
type Store struct {
	path string
}

// NewStore constructs a Store over the JSONL file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads every bead in the file, in file order. A missing file is
// treated as empty, per spec.md §6.
func (s *Store) Load() ([]types.Bead, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var beads []types.Bead
	lineNo := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		lineNo++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, &MalformedLineError{Line: lineNo, Cause: err}
		}
		beads = append(beads, r.toBead())
	}
	return beads, nil
}

// Save rewrites the whole file with beads, one JSON object per line,
// sorted by ID for a stable diff. Written via a temp file + rename so a
// concurrent reader never observes a partially written file.
func (s *Store) Save(beads []types.Bead) error {
	sorted := make([]types.Bead, len(beads))
	copy(sorted, beads)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var buf bytes.Buffer
	for _, b := range sorted {
		line, err := json.Marshal(fromBead(b))
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".issues-*.jsonl.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// MalformedLineError reports a JSONL line that failed to parse, with its
// 1-based line number.
type MalformedLineError struct {
	Line  int
	Cause error
}

func (e *MalformedLineError) Error() string {
	return "malformed beads JSONL line " + strconv.Itoa(e.Line) + ": " + e.Cause.Error()
}

func (e *MalformedLineError) Unwrap() error { return e.Cause }
