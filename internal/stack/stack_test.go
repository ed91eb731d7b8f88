package stack

import (
	"errors"
	"testing"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

func entry(workspace, parent string) types.Entry {
	return types.Entry{Workspace: workspace, ParentWorkspace: parent}
}

func TestValidateNoCycleSelfReference(t *testing.T) {
	err := ValidateNoCycle("alpha", "alpha", nil)
	assertCycleDetected(t, err)
}

func TestValidateNoCycleRejectsAncestor(t *testing.T) {
	entries := []types.Entry{
		entry("root", ""),
		entry("mid", "root"),
		entry("leaf", "mid"),
	}
	err := ValidateNoCycle("root", "leaf", entries)
	assertCycleDetected(t, err)
}

func TestValidateNoCycleAllowsIndependentChain(t *testing.T) {
	entries := []types.Entry{
		entry("root", ""),
		entry("mid", "root"),
	}
	if err := ValidateNoCycle("other", "mid", entries); err != nil {
		t.Fatalf("expected no cycle, got %v", err)
	}
}

func assertCycleDetected(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected CycleDetected error")
	}
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != railyarderr.CodeCycleDetected {
		t.Fatalf("expected CycleDetected code, got %v", err)
	}
}

func TestRecomputeDepthMatchesParentChainLength(t *testing.T) {
	entries := []types.Entry{
		entry("root", ""),
		entry("mid", "root"),
		entry("leaf", "mid"),
	}
	out := RecomputeDepth(entries)
	depths := map[string]int{}
	roots := map[string]string{}
	for _, e := range out {
		depths[e.Workspace] = e.StackDepth
		roots[e.Workspace] = e.StackRoot
	}
	if depths["root"] != 0 || depths["mid"] != 1 || depths["leaf"] != 2 {
		t.Fatalf("unexpected depths: %+v", depths)
	}
	if roots["root"] != "root" || roots["mid"] != "root" || roots["leaf"] != "root" {
		t.Fatalf("unexpected stack roots: %+v", roots)
	}
}

func TestPropagateDependentsUnblocksReadyChildren(t *testing.T) {
	entries := []types.Entry{
		{Workspace: "root", ParentWorkspace: "", StackMergeState: types.StackIndependent},
		{Workspace: "mid", ParentWorkspace: "root", StackMergeState: types.StackBlocked},
		{Workspace: "other-parent", ParentWorkspace: "", StackMergeState: types.StackIndependent},
		{Workspace: "grandchild", ParentWorkspace: "mid", StackMergeState: types.StackBlocked},
	}
	out := PropagateDependents("root", entries)

	byWS := map[string]types.Entry{}
	for _, e := range out {
		byWS[e.Workspace] = e
	}
	if byWS["root"].StackMergeState != types.StackMerged {
		t.Fatalf("expected root to be Merged, got %v", byWS["root"].StackMergeState)
	}
	if byWS["mid"].StackMergeState != types.StackReady {
		t.Fatalf("expected mid to move Blocked->Ready, got %v", byWS["mid"].StackMergeState)
	}
	// grandchild's parent (mid) is Ready, not yet Merged/Independent, so it stays Blocked.
	if byWS["grandchild"].StackMergeState != types.StackBlocked {
		t.Fatalf("expected grandchild to remain Blocked until mid merges, got %v", byWS["grandchild"].StackMergeState)
	}
}

func TestDependentsReturnsDirectChildrenOnly(t *testing.T) {
	entries := []types.Entry{
		entry("root", ""),
		entry("a", "root"),
		entry("b", "root"),
		entry("c", "a"),
	}
	got := Dependents("root", entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 direct dependents of root, got %v", got)
	}
}
