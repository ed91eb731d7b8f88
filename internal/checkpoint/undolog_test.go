package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

func newTestUndoLog(t *testing.T) *UndoLog {
	t.Helper()
	return NewUndoLog(filepath.Join(t.TempDir(), "undo.log"))
}

func entry(session string, age time.Duration, pushed bool) types.UndoEntry {
	return types.UndoEntry{
		SessionName:      session,
		CommitID:         "commit-" + session,
		PreMergeCommitID: "pre-" + session,
		Timestamp:        time.Now().UTC().Add(-age),
		PushedToRemote:   pushed,
		Status:           "merged",
	}
}

func TestAppendThenUndoReturnsNewestEntry(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()

	if err := u.Append(ctx, entry("alpha", time.Hour, false)); err != nil {
		t.Fatal(err)
	}
	if err := u.Append(ctx, entry("beta", time.Minute, false)); err != nil {
		t.Fatal(err)
	}

	got, err := u.Undo(ctx)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got.SessionName != "beta" {
		t.Fatalf("expected newest entry beta, got %s", got.SessionName)
	}
}

func TestUndoNoHistory(t *testing.T) {
	u := newTestUndoLog(t)
	_, err := u.Undo(context.Background())
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeNoUndoHistory {
		t.Fatalf("expected NO_UNDO_HISTORY, got %v", err)
	}
}

func TestUndoRejectsAlreadyPushed(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()
	if err := u.Append(ctx, entry("alpha", time.Minute, true)); err != nil {
		t.Fatal(err)
	}
	_, err := u.Undo(ctx)
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeAlreadyPushed {
		t.Fatalf("expected ALREADY_PUSHED_TO_REMOTE, got %v", err)
	}
}

func TestUndoRejectsExpiredEntry(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()
	if err := u.Append(ctx, entry("alpha", 25*time.Hour, false)); err != nil {
		t.Fatal(err)
	}
	_, err := u.Undo(ctx)
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeUndoExpired {
		t.Fatalf("expected WORKSPACE_EXPIRED, got %v", err)
	}
}

func TestRevertSessionTargetsSpecificSession(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()
	if err := u.Append(ctx, entry("alpha", time.Hour, false)); err != nil {
		t.Fatal(err)
	}
	if err := u.Append(ctx, entry("beta", time.Minute, false)); err != nil {
		t.Fatal(err)
	}

	got, err := u.RevertSession(ctx, "alpha")
	if err != nil {
		t.Fatalf("revert alpha: %v", err)
	}
	if got.SessionName != "alpha" {
		t.Fatalf("expected alpha entry, got %s", got.SessionName)
	}

	if _, err := u.RevertSession(ctx, "nonexistent"); err == nil {
		t.Fatal("expected no history error for a session never merged")
	}
}

func TestMarkUndoneExcludesEntryFromFutureUndo(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()
	if err := u.Append(ctx, entry("alpha", time.Minute, false)); err != nil {
		t.Fatal(err)
	}
	if err := u.MarkUndone(ctx, "alpha"); err != nil {
		t.Fatalf("mark undone: %v", err)
	}

	_, err := u.RevertSession(ctx, "alpha")
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeNoUndoHistory {
		t.Fatalf("expected NO_UNDO_HISTORY after undo, got %v", err)
	}

	entries, err := u.readAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected append-only log to retain both entries, got %d", len(entries))
	}
}

func TestReadAllReportsMalformedLineNumber(t *testing.T) {
	u := newTestUndoLog(t)
	ctx := context.Background()
	if err := u.Append(ctx, entry("alpha", time.Minute, false)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(u.path, append(mustRead(t, u.path), []byte("not-json\n")...), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := u.Undo(ctx)
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeMalformedUndoLog {
		t.Fatalf("expected MALFORMED_UNDO_LOG, got %v", err)
	}
	if re.Details["line"] != 2 {
		t.Fatalf("expected malformed line number 2, got %v", re.Details["line"])
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
