package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

// undoExpiry is how long a merge remains reversible (spec.md §3 "Undo-log
// entry": "entries older than 24 h are considered expired for undo
// purposes").
const undoExpiry = 24 * time.Hour

// UndoLog is the append-only undo-log file (spec.md §4.6b), one JSON object
// per line at <repo>/.railyard/undo.log.
type UndoLog struct {
	path string
	mu   sync.Mutex
}

// NewUndoLog constructs an UndoLog backed by the file at path.
func NewUndoLog(path string) *UndoLog {
	return &UndoLog{path: path}
}

// Append adds entry as the newest line in the log.
func (u *UndoLog) Append(ctx context.Context, entry types.UndoEntry) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	f, err := os.OpenFile(u.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeWriteUndoLogFailed, "opening undo log", err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeWriteUndoLogFailed, "encoding undo log entry", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeWriteUndoLogFailed, "writing undo log entry", err)
	}
	return nil
}

// readAll reads every entry, in file order. A malformed line reports its
// 1-based line number (spec.md §4.6b "MALFORMED_UNDO_LOG (with the
// offending line number)").
func (u *UndoLog) readAll() ([]types.UndoEntry, error) {
	f, err := os.Open(u.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeReadUndoLogFailed, "opening undo log", err)
	}
	defer f.Close()

	var out []types.UndoEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e types.UndoEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeMalformedUndoLog,
				fmt.Sprintf("malformed undo log entry at line %d", lineNo), err).
				WithDetails(map[string]any{"line": lineNo})
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, railyarderr.Wrap(railyarderr.ClassSystem, railyarderr.CodeReadUndoLogFailed, "reading undo log", err)
	}
	return out, nil
}

// latestFor returns the newest entry for sessionName that has not been
// marked undone, or nil if there is none. sessionName == "" matches the
// newest entry regardless of session, for the bare `undo` command.
func (u *UndoLog) latestFor(sessionName string) (*types.UndoEntry, error) {
	entries, err := u.readAll()
	if err != nil {
		return nil, err
	}
	undone := make(map[string]bool)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		key := e.SessionName + "\x00" + e.CommitID
		if e.Status == "undone" {
			undone[key] = true
			continue
		}
		if undone[key] {
			continue
		}
		if sessionName == "" || e.SessionName == sessionName {
			return &e, nil
		}
	}
	return nil, nil
}

// checkUndoable applies the three undo preconditions (spec.md §4.6b).
func checkUndoable(e *types.UndoEntry) error {
	if e == nil {
		return railyarderr.Validation(railyarderr.CodeNoUndoHistory, "no undoable merge found")
	}
	if e.PushedToRemote {
		return railyarderr.Validation(railyarderr.CodeAlreadyPushed, "merge was already pushed to the remote and cannot be undone").
			WithDetails(map[string]any{"session": e.SessionName, "commit_id": e.CommitID})
	}
	if time.Since(e.Timestamp) >= undoExpiry {
		return railyarderr.Validation(railyarderr.CodeUndoExpired, "merge is older than the 24h undo window").
			WithDetails(map[string]any{"session": e.SessionName, "merged_at": e.Timestamp})
	}
	return nil
}

// Undo returns the newest undoable merge across all sessions (the bare
// `undo` command). The caller is responsible for the actual VCS rewind to
// pre_merge_commit_id; on success it should call MarkUndone.
func (u *UndoLog) Undo(ctx context.Context) (*types.UndoEntry, error) {
	e, err := u.latestFor("")
	if err != nil {
		return nil, err
	}
	if err := checkUndoable(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RevertSession is a targeted undo for a specific session's most recent
// merge (spec.md §4.6b "revert <session>").
func (u *UndoLog) RevertSession(ctx context.Context, sessionName string) (*types.UndoEntry, error) {
	e, err := u.latestFor(sessionName)
	if err != nil {
		return nil, err
	}
	if err := checkUndoable(e); err != nil {
		return nil, err
	}
	return e, nil
}

// MarkUndone appends a status-"undone" record for sessionName's most
// recent merge so it is no longer offered by Undo/RevertSession, keeping
// the log itself append-only.
func (u *UndoLog) MarkUndone(ctx context.Context, sessionName string) error {
	e, err := u.latestFor(sessionName)
	if err != nil {
		return err
	}
	if e == nil {
		return railyarderr.Validation(railyarderr.CodeNoUndoHistory, "no undoable merge found")
	}
	undone := *e
	undone.Status = "undone"
	return u.Append(ctx, undone)
}
