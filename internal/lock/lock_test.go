package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkspaceLockExclusionAndIdempotentReacquire(t *testing.T) {
	w := NewWorkspaceLocks(newTestStore(t))
	ctx := context.Background()

	if err := w.Acquire(ctx, "alpha", "agent-1", "build"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := w.Acquire(ctx, "alpha", "agent-1", "build"); err != nil {
		t.Fatalf("re-acquire by same holder should be idempotent: %v", err)
	}

	err := w.Acquire(ctx, "alpha", "agent-2", "build")
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeSessionLocked {
		t.Fatalf("expected SESSION_LOCKED, got %v", err)
	}

	if err := w.Release(ctx, "alpha", "agent-2"); err == nil {
		t.Fatal("expected release by non-holder to fail")
	}
	if err := w.Release(ctx, "alpha", "agent-1"); err != nil {
		t.Fatalf("release by holder: %v", err)
	}
	if err := w.Acquire(ctx, "alpha", "agent-2", "build"); err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
}

func TestAgentsRegisterIsIdempotentAndHeartbeatUpdatesLastSeen(t *testing.T) {
	a := NewAgents(newTestStore(t))
	ctx := context.Background()

	if err := a.Register(ctx, "agent-1", []string{"rebase", "merge"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, err := a.Get(ctx, "agent-1")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	if err := a.Register(ctx, "agent-1", nil); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	second, err := a.Get(ctx, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if !second.LastSeen.After(first.LastSeen) {
		t.Fatalf("expected last_seen to advance on re-register, got %v -> %v", first.LastSeen, second.LastSeen)
	}
	if len(second.Capabilities) != 2 {
		t.Fatalf("expected capabilities preserved from first register, got %v", second.Capabilities)
	}
}

func TestGetActiveExcludesExpiredAgents(t *testing.T) {
	a := NewAgents(newTestStore(t))
	ctx := context.Background()

	if err := a.Register(ctx, "stale", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := a.Register(ctx, "fresh", nil); err != nil {
		t.Fatal(err)
	}

	active, err := a.GetActive(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, ag := range active {
		found[ag.AgentID] = true
	}
	if found["stale"] {
		t.Fatal("expected stale agent to be excluded from GetActive")
	}
	if !found["fresh"] {
		t.Fatal("expected fresh agent to be included in GetActive")
	}
}

func TestHeartbeatRejectsUnknownAgent(t *testing.T) {
	a := NewAgents(newTestStore(t))
	err := a.Heartbeat(context.Background(), "ghost", "", "")
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeAgentNotFound {
		t.Fatalf("expected AGENT_NOT_FOUND, got %v", err)
	}
}
