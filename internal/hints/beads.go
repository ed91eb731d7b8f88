package hints

import "strconv"

// BeadsSummary is the counts view hint generation needs from a session's
// beads (spec.md §3 "Bead"), independent of internal/types so this package
// stays free of a hard dependency on the full bead record shape.
type BeadsSummary struct {
	Open       int
	InProgress int
	Blocked    int
	Closed     int
}

func (b BeadsSummary) Active() int       { return b.Open + b.InProgress }
func (b BeadsSummary) Total() int        { return b.Open + b.InProgress + b.Blocked + b.Closed }
func (b BeadsSummary) HasBlockers() bool { return b.Blocked > 0 }

// excessiveWIPThreshold flags a session carrying too much concurrent
// unfinished work to stay focused.
const excessiveWIPThreshold = 5

func hintForBlockedIssues(sessionName string, blocked int) Hint {
	return Warning("session '"+sessionName+"' has "+pluralIssues(blocked)+" blocked").
		WithCommand("bd blocked").
		WithRationale("resolve blockers to make progress").
		WithContext(map[string]any{"session": sessionName, "blocked_count": blocked})
}

func hintForExcessiveWIP(sessionName string, active int) Hint {
	return Tip("session '" + sessionName + "' has " + pluralIssues(active) + " active - consider focusing on fewer tasks").
		WithRationale("limiting work in progress improves focus")
}

func hintForNoBeadsIssues(sessionName string) Hint {
	return Info("session '"+sessionName+"' has no beads issues").
		WithCommand("bd new").
		WithRationale("track your work with beads for better organization")
}

// HintsForBeads analyzes a session's bead counts and returns blocker,
// excessive-WIP, and no-issues hints as applicable (spec.md §4.11).
func HintsForBeads(sessionName string, beads BeadsSummary) []Hint {
	var out []Hint
	if beads.HasBlockers() {
		out = append(out, hintForBlockedIssues(sessionName, beads.Blocked))
	}
	if beads.Active() > excessiveWIPThreshold {
		out = append(out, hintForExcessiveWIP(sessionName, beads.Active()))
	}
	if beads.Total() == 0 {
		out = append(out, hintForNoBeadsIssues(sessionName))
	}
	return out
}

func pluralIssues(n int) string {
	if n == 1 {
		return "1 issue"
	}
	return strconv.Itoa(n) + " issues"
}
