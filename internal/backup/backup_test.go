package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupRepo(t *testing.T, contents string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".railyard"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".railyard", "state.db"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestCreateCopiesDatabaseContent(t *testing.T) {
	root := setupRepo(t, "sqlite-bytes")
	m, err := NewManager(root, "state.db", 3)
	if err != nil {
		t.Fatal(err)
	}
	path, err := m.Create(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "sqlite-bytes" {
		t.Fatalf("expected backup contents to match source, got %q", got)
	}
}

func TestCreateMissingSourceIsNotFound(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, "state.db", 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for missing source database")
	}
}

func TestRetentionKeepsOnlyNMostRecent(t *testing.T) {
	root := setupRepo(t, "v1")
	m, err := NewManager(root, "state.db", 2)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := m.Create(context.Background(), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	files, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected retention to keep exactly 2 backups, got %d: %v", len(files), files)
	}
}

func TestPruneRemovesMetadataSidecar(t *testing.T) {
	root := setupRepo(t, "v1")
	m, err := NewManager(root, "state.db", 1)
	if err != nil {
		t.Fatal(err)
	}

	first, err := m.Create(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	sidecar := first + ".json"
	if err := os.WriteFile(sidecar, []byte(`{"schema_version":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Create(context.Background(), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
		t.Fatalf("expected metadata sidecar to be pruned alongside its backup, stat err: %v", err)
	}
}

func TestNewManagerValidatesRetentionCount(t *testing.T) {
	if _, err := NewManager(t.TempDir(), "state.db", 0); err == nil {
		t.Fatal("expected retention count < 1 to be rejected")
	}
}
