package beadsapi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/railyard/railyard/internal/types"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "issues.jsonl"))
	beads, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(beads) != 0 {
		t.Fatalf("expected no beads for a missing file, got %d", len(beads))
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonl")
	s := NewStore(path)

	in := []types.Bead{
		{ID: "bd-2", Status: types.BeadOpen, Priority: 1, BlockedBy: []string{"bd-1"}, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ID: "bd-1", Status: types.BeadClosed, Priority: 2},
	}
	if err := s.Save(in); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 beads, got %d", len(out))
	}
	// Save sorts by ID, so bd-1 comes first.
	if out[0].ID != "bd-1" || out[1].ID != "bd-2" {
		t.Fatalf("expected sorted output by id, got %+v", out)
	}
	if !out[1].IsBlocked() {
		t.Fatal("expected bd-2 to round-trip its blocked_by")
	}
}

func TestLoadReportsMalformedLineNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonl")
	content := "{\"id\":\"bd-1\",\"status\":\"open\"}\nnot json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path)
	_, err := s.Load()
	if err == nil {
		t.Fatal("expected malformed line error")
	}
	var mErr *MalformedLineError
	if ok := asMalformed(err, &mErr); !ok {
		t.Fatalf("expected MalformedLineError, got %T: %v", err, err)
	}
	if mErr.Line != 2 {
		t.Fatalf("expected line 2, got %d", mErr.Line)
	}
}

func asMalformed(err error, target **MalformedLineError) bool {
	if e, ok := err.(*MalformedLineError); ok {
		*target = e
		return true
	}
	return false
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonl")
	s := NewStore(path)
	if err := s.Save([]types.Bead{{ID: "bd-1", Status: types.BeadOpen}}); err != nil {
		t.Fatal(err)
	}
	// No .tmp files should remain after a successful Save.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("expected no leftover temp file, found %s", e.Name())
		}
	}
}
