// Package stack implements the dependency-stack invariants (spec.md §4.4):
// cycle prevention, depth tracking, dependents propagation, and stack-root
// caching. Every function here is pure and deterministic and operates over
// a snapshot of entries rather than an in-memory graph object — the
// teacher's internal/beads dependency-cycle check took the same shape,
// walking a parent/child relation under a single read transaction instead
// of building a graph.
package stack

import (
	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/types"
)

// byWorkspace indexes a snapshot of entries for repeated parent-chain walks.
func byWorkspace(entries []types.Entry) map[string]types.Entry {
	idx := make(map[string]types.Entry, len(entries))
	for _, e := range entries {
		idx[e.Workspace] = e
	}
	return idx
}

// ValidateNoCycle reports CycleDetected if attaching workspace under
// proposedParent would create a cycle: either a direct self-reference, or
// workspace already appearing somewhere in proposedParent's ancestor chain
// (spec.md §4.4). It does not mutate entries.
func ValidateNoCycle(workspace, proposedParent string, entries []types.Entry) error {
	if workspace == proposedParent {
		return railyarderr.Validation(railyarderr.CodeCycleDetected, "workspace cannot be its own parent").
			WithDetails(map[string]any{"workspace": workspace})
	}

	idx := byWorkspace(entries)
	seen := map[string]bool{workspace: true}
	cur := proposedParent
	for cur != "" {
		if seen[cur] {
			return railyarderr.Validation(railyarderr.CodeCycleDetected, "parent chain would form a cycle").
				WithDetails(map[string]any{"workspace": workspace, "proposed_parent": proposedParent})
		}
		seen[cur] = true
		e, ok := idx[cur]
		if !ok {
			break
		}
		cur = e.ParentWorkspace
	}
	return nil
}

// Depth returns the length of workspace's parent chain within entries
// (spec.md §4.4: "stack_depth equals the length of the parent chain").
// A workspace with no parent has depth 0.
func Depth(workspace string, entries []types.Entry) int {
	idx := byWorkspace(entries)
	depth := 0
	cur := workspace
	visited := map[string]bool{}
	for {
		e, ok := idx[cur]
		if !ok || e.ParentWorkspace == "" || visited[cur] {
			return depth
		}
		visited[cur] = true
		depth++
		cur = e.ParentWorkspace
	}
}

// RecomputeDepth returns a copy of entries with StackDepth and StackRoot
// recalculated for every entry, to be called whenever any entry's
// ParentWorkspace changes (spec.md §4.4). StackRoot is cached on each entry
// for O(1) group-membership queries.
func RecomputeDepth(entries []types.Entry) []types.Entry {
	idx := byWorkspace(entries)
	out := make([]types.Entry, len(entries))
	copy(out, entries)

	for i := range out {
		out[i].StackDepth = Depth(out[i].Workspace, entries)
		out[i].StackRoot = root(out[i].Workspace, idx)
	}
	return out
}

func root(workspace string, idx map[string]types.Entry) string {
	cur := workspace
	visited := map[string]bool{}
	for {
		e, ok := idx[cur]
		if !ok || e.ParentWorkspace == "" || visited[cur] {
			return cur
		}
		visited[cur] = true
		cur = e.ParentWorkspace
	}
}

// PropagateDependents recomputes StackMergeState across entries after the
// entry named merged transitions to Merged (spec.md §4.4): each direct
// dependent whose OTHER parents (if modelled) are all Merged/Independent
// moves from Blocked to Ready. Since this data model carries a single
// ParentWorkspace per entry rather than multiple parents, "other parents"
// reduces to checking the dependent's own parent — so a dependent becomes
// Ready exactly when its parent is Merged or Independent.
func PropagateDependents(merged string, entries []types.Entry) []types.Entry {
	out := make([]types.Entry, len(entries))
	copy(out, entries)

	for i := range out {
		if out[i].Workspace != merged {
			continue
		}
		out[i].StackMergeState = types.StackMerged
	}
	idx := byWorkspace(out)

	for i := range out {
		e := out[i]
		if e.ParentWorkspace == "" {
			if e.StackMergeState != types.StackMerged {
				out[i].StackMergeState = types.StackIndependent
			}
			continue
		}
		parent, ok := idx[e.ParentWorkspace]
		if !ok {
			continue
		}
		if e.StackMergeState == types.StackBlocked &&
			(parent.StackMergeState == types.StackMerged || parent.StackMergeState == types.StackIndependent) {
			out[i].StackMergeState = types.StackReady
		}
	}
	return out
}

// Dependents returns the workspaces that list workspace as their direct
// parent, for materialising each entry's dependents set.
func Dependents(workspace string, entries []types.Entry) []string {
	var out []string
	for _, e := range entries {
		if e.ParentWorkspace == workspace {
			out = append(out, e.Workspace)
		}
	}
	return out
}
