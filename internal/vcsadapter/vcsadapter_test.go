package vcsadapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/railyard/railyard/internal/railyarderr"
)

// scriptAdapter writes a tiny shell script standing in for the VCS binary
// and returns an Adapter pointed at it, plus the directory it ran in.
func scriptAdapter(t *testing.T, body string) *Adapter {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("script-based fake VCS binary is unix-only")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fakevcs")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	return New(script, root)
}

func TestCreateWorkspaceAtSucceeds(t *testing.T) {
	a := scriptAdapter(t, "exit 0")
	if err := a.CreateWorkspaceAt(context.Background(), "/tmp/ws/alpha", ""); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestCreateWorkspaceAtFailureClassifiedAsVCSCommandFailed(t *testing.T) {
	a := scriptAdapter(t, "echo 'boom' >&2\nexit 1")
	err := a.CreateWorkspaceAt(context.Background(), "/tmp/ws/alpha", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var re *railyarderr.Error
	if !errors.As(err, &re) {
		t.Fatalf("expected railyarderr.Error, got %T: %v", err, err)
	}
	if re.Code != railyarderr.CodeVCSCommandFailed {
		t.Fatalf("expected CodeVCSCommandFailed, got %s", re.Code)
	}
}

func TestForgetWorkspaceNotFoundIsIdempotentSuccess(t *testing.T) {
	a := scriptAdapter(t, "echo 'Error: workspace not found' >&2\nexit 1")
	if err := a.ForgetWorkspace(context.Background(), "/tmp/ws/gone"); err != nil {
		t.Fatalf("expected idempotent success on workspace-not-found, got %v", err)
	}
}

func TestForgetWorkspaceOtherFailurePropagates(t *testing.T) {
	a := scriptAdapter(t, "echo 'disk full' >&2\nexit 1")
	if err := a.ForgetWorkspace(context.Background(), "/tmp/ws/gone"); err == nil {
		t.Fatal("expected non-not-found failure to propagate")
	}
}

func TestHeadCommitReturnsTrimmedOutput(t *testing.T) {
	a := scriptAdapter(t, "echo '  abc123  '")
	out, err := a.HeadCommit(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if out != "abc123" {
		t.Fatalf("expected trimmed commit id, got %q", out)
	}
}

func TestPushFailureClassifiedAsRemoteError(t *testing.T) {
	a := scriptAdapter(t, "echo 'connection refused' >&2\nexit 1")
	err := a.Push(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	var re *railyarderr.Error
	if !errors.As(err, &re) {
		t.Fatalf("expected railyarderr.Error, got %T", err)
	}
	if re.Code != railyarderr.CodeRemoteError {
		t.Fatalf("expected CodeRemoteError, got %s", re.Code)
	}
}

func TestWorkspaceNameIsBaseOfPath(t *testing.T) {
	if got := workspaceName("/repo/workspaces/alpha"); got != "alpha" {
		t.Fatalf("expected alpha, got %q", got)
	}
	if got := workspaceName("alpha"); got != "alpha" {
		t.Fatalf("expected alpha, got %q", got)
	}
}
