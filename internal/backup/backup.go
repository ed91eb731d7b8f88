// Package backup implements timestamped snapshot copies of the state
// store and a retention policy over them (spec.md §4.8, SPEC_FULL.md
// §4.8): <repo>/.railyard/backups/<db>/backup-<ts>.db plus any
// metadata sibling written alongside it.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
)

// timestampLayout matches the fixed-width, sortable format the teacher
// uses for on-disk backup names, so lexicographic and chronological
// ordering coincide.
const timestampLayout = "20060102T150405Z"

// Manager creates and prunes backups of a single named database file
// (e.g. "state.db" or "queue.db") under root/.railyard/backups/<db>/.
type Manager struct {
	root   string // repo root
	dbName string // e.g. "state.db"
	dbPath string // full path to the live database file
	keep   int    // how many most-recent backups to retain
}

// NewManager constructs a Manager. keep must be >= 1.
func NewManager(root, dbName string, keep int) (*Manager, error) {
	if root == "" || dbName == "" {
		return nil, railyarderr.Validation("INVALID_BACKUP_CONFIG", "backup root and database name are required")
	}
	if keep < 1 {
		return nil, railyarderr.Validation("INVALID_BACKUP_CONFIG", "retention count must be at least 1")
	}
	return &Manager{
		root:   root,
		dbName: dbName,
		dbPath: filepath.Join(root, ".railyard", dbName),
		keep:   keep,
	}, nil
}

func (m *Manager) dir() string {
	return filepath.Join(m.root, ".railyard", "backups", m.dbName)
}

// Create copies the live database to a new timestamped backup file and
// prunes old backups down to the retention count. It returns the path to
// the new backup.
func (m *Manager) Create(ctx context.Context, now time.Time) (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		if os.IsNotExist(err) {
			return "", railyarderr.NotFound("BACKUP_SOURCE_NOT_FOUND", "database to back up does not exist").
				WithDetails(map[string]any{"path": m.dbPath})
		}
		return "", railyarderr.System("BACKUP_FAILED", "stat database").WithDetails(map[string]any{"error": err.Error()})
	}

	dir := m.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", railyarderr.Wrap(railyarderr.ClassSystem, "BACKUP_FAILED", "create backup directory", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("backup-%s.db", now.UTC().Format(timestampLayout)))
	if err := copyFile(m.dbPath, dest); err != nil {
		return "", railyarderr.Wrap(railyarderr.ClassSystem, "BACKUP_FAILED", "copy database to backup", err)
	}

	if err := m.prune(); err != nil {
		return dest, err
	}
	return dest, nil
}

// List returns every backup file under the manager's directory, oldest
// first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, railyarderr.Wrap(railyarderr.ClassSystem, "BACKUP_LIST_FAILED", "list backups", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".json" {
			continue // metadata sidecar, follows its .db file
		}
		files = append(files, filepath.Join(m.dir(), e.Name()))
	}
	sort.Strings(files) // timestamp-named, so lexicographic order is chronological
	return files, nil
}

// prune removes the oldest backups (and their metadata siblings) once
// more than m.keep exist, atomically per file.
func (m *Manager) prune() error {
	files, err := m.List()
	if err != nil {
		return err
	}
	if len(files) <= m.keep {
		return nil
	}
	toRemove := files[:len(files)-m.keep]
	for _, f := range toRemove {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return railyarderr.Wrap(railyarderr.ClassSystem, "BACKUP_PRUNE_FAILED", "remove old backup", err).
				WithDetails(map[string]any{"path": f})
		}
		sidecar := f + ".json"
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return railyarderr.Wrap(railyarderr.ClassSystem, "BACKUP_PRUNE_FAILED", "remove backup metadata sidecar", err).
				WithDetails(map[string]any{"path": sidecar})
		}
	}
	return nil
}

// copyFile copies src to a temp file in dst's directory and renames it
// into place, so a reader never observes a partially written backup.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".backup-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dst)
}
