package hints

import (
	"testing"
	"time"
)

func TestGenerateSessionHintsNoSessions(t *testing.T) {
	hints := GenerateSessionHints(SystemState{})
	if len(hints) != 1 {
		t.Fatalf("expected exactly one hint, got %d", len(hints))
	}
	if hints[0].Type != TypeSuggestion {
		t.Fatalf("expected suggestion hint, got %s", hints[0].Type)
	}
}

func TestGenerateSessionHintsActiveSession(t *testing.T) {
	state := SystemState{Sessions: []SessionView{{Name: "alpha", Status: "active", UpdatedAt: time.Now()}}}
	hints := GenerateSessionHints(state)
	if len(hints) != 1 || hints[0].Type != TypeInfo {
		t.Fatalf("expected single info hint, got %+v", hints)
	}
}

func TestGenerateSessionHintsManyActiveAddsDashboardTip(t *testing.T) {
	state := SystemState{Sessions: []SessionView{
		{Name: "a1", Status: "active"},
		{Name: "a2", Status: "active"},
		{Name: "a3", Status: "active"},
	}}
	hints := GenerateSessionHints(state)
	found := false
	for _, h := range hints {
		if h.Type == TypeTip {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a dashboard tip when more than 2 sessions are active")
	}
}

func TestGenerateSessionHintsCompletedSessionStale(t *testing.T) {
	state := SystemState{Sessions: []SessionView{
		{Name: "done", Status: "completed", UpdatedAt: time.Now().Add(-48 * time.Hour)},
	}}
	hints := GenerateSessionHints(state)
	if len(hints) != 1 || hints[0].Type != TypeSuggestion {
		t.Fatalf("expected a cleanup suggestion, got %+v", hints)
	}
}

func TestGenerateSessionHintsCompletedSessionFreshIsSilent(t *testing.T) {
	state := SystemState{Sessions: []SessionView{
		{Name: "done", Status: "completed", UpdatedAt: time.Now()},
	}}
	hints := GenerateSessionHints(state)
	if len(hints) != 0 {
		t.Fatalf("expected no hints for a freshly completed session, got %+v", hints)
	}
}

func TestGenerateSessionHintsFailedSession(t *testing.T) {
	state := SystemState{Sessions: []SessionView{{Name: "broke", Status: "failed"}}}
	hints := GenerateSessionHints(state)
	if len(hints) != 1 || hints[0].Type != TypeWarning {
		t.Fatalf("expected a warning hint, got %+v", hints)
	}
}

func TestSuggestNextActionsCoversCompletedFailedAndActive(t *testing.T) {
	state := SystemState{Sessions: []SessionView{
		{Name: "done", Status: "completed"},
		{Name: "broke", Status: "failed"},
		{Name: "a1", Status: "active"},
		{Name: "a2", Status: "active"},
		{Name: "a3", Status: "active"},
		{Name: "a4", Status: "active"},
	}}
	actions := SuggestNextActions(state)
	if len(actions) != 3 {
		t.Fatalf("expected 3 next actions, got %d: %+v", len(actions), actions)
	}
}

func TestGenerateResponseCountsActiveSessions(t *testing.T) {
	state := SystemState{
		Initialized: true,
		RepoPresent: true,
		Sessions:    []SessionView{{Name: "a", Status: "active"}, {Name: "b", Status: "completed"}},
	}
	resp := GenerateResponse(state)
	if resp.Context.SessionsCount != 2 || resp.Context.ActiveSessions != 1 {
		t.Fatalf("unexpected context: %+v", resp.Context)
	}
	if len(resp.Hints) == 0 {
		t.Fatal("expected at least one hint")
	}
}

func TestHintsForBeadsBlockers(t *testing.T) {
	hints := HintsForBeads("alpha", BeadsSummary{Open: 2, InProgress: 1, Blocked: 3, Closed: 5})
	found := false
	for _, h := range hints {
		if h.Type == TypeWarning {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a warning hint for blocked issues")
	}
}

func TestHintsForBeadsExcessiveWIP(t *testing.T) {
	hints := HintsForBeads("alpha", BeadsSummary{Open: 7, InProgress: 5})
	found := false
	for _, h := range hints {
		if h.Type == TypeTip {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a tip hint for excessive WIP")
	}
}

func TestHintsForBeadsEmpty(t *testing.T) {
	hints := HintsForBeads("alpha", BeadsSummary{})
	if len(hints) != 1 || hints[0].Type != TypeInfo {
		t.Fatalf("expected a single info hint for an empty bead set, got %+v", hints)
	}
}

func TestHintsForLocksOnlyWarnsAboutStaleHolders(t *testing.T) {
	locks := []LockView{
		{Workspace: "fresh", Holder: "agent-1", Since: time.Now()},
		{Workspace: "stale", Holder: "agent-2", Since: time.Now().Add(-time.Hour)},
	}
	hints := HintsForLocks(locks)
	if len(hints) != 1 {
		t.Fatalf("expected exactly one stale-lock hint, got %d", len(hints))
	}
	if hints[0].Context["workspace"] != "stale" {
		t.Fatalf("expected hint about the stale workspace, got %+v", hints[0])
	}
}
