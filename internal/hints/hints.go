// Package hints generates rule-based, data-only suggestions from system
// state (spec.md §4.7, §4.11): idle-session nudges, stale-work warnings,
// bead-blocked nudges, and next-action suggestions. A Hint is a value, never
// a side-effecting action — nothing in this package executes a command on
// the caller's behalf.
package hints

import (
	"strconv"
	"time"
)

// Type classifies a Hint's severity/intent.
type Type string

const (
	TypeInfo       Type = "info"
	TypeSuggestion Type = "suggestion"
	TypeWarning    Type = "warning"
	TypeTip        Type = "tip"
	TypeError      Type = "error"
)

// Hint is a single contextual suggestion.
type Hint struct {
	Type             Type           `json:"type"`
	Message          string         `json:"message"`
	SuggestedCommand string         `json:"suggested_command,omitempty"`
	Rationale        string         `json:"rationale,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
}

func Info(message string) Hint       { return Hint{Type: TypeInfo, Message: message} }
func Suggestion(message string) Hint { return Hint{Type: TypeSuggestion, Message: message} }
func Warning(message string) Hint    { return Hint{Type: TypeWarning, Message: message} }
func Tip(message string) Hint        { return Hint{Type: TypeTip, Message: message} }
func Error(message string) Hint      { return Hint{Type: TypeError, Message: message} }

// WithCommand attaches a suggested command and returns h for chaining.
func (h Hint) WithCommand(command string) Hint {
	h.SuggestedCommand = command
	return h
}

// WithRationale attaches a human-readable rationale and returns h for
// chaining.
func (h Hint) WithRationale(rationale string) Hint {
	h.Rationale = rationale
	return h
}

// WithContext attaches a structured context payload and returns h for
// chaining.
func (h Hint) WithContext(ctx map[string]any) Hint {
	h.Context = ctx
	return h
}

// NextAction is a suggested follow-up action with the commands to run.
type NextAction struct {
	Action   string   `json:"action"`
	Commands []string `json:"commands"`
}

// SystemContext summarizes the state a HintsResponse was generated from.
type SystemContext struct {
	Initialized    bool `json:"initialized"`
	RepoPresent    bool `json:"repo_present"`
	SessionsCount  int  `json:"sessions_count"`
	ActiveSessions int  `json:"active_sessions"`
	HasChanges     bool `json:"has_changes"`
}

// HintsResponse is the complete hints payload (spec.md §4.7/§6 JSON
// envelope "hints" field).
type HintsResponse struct {
	Context     SystemContext `json:"context"`
	Hints       []Hint        `json:"hints"`
	NextActions []NextAction  `json:"next_actions"`
}

// SessionView is the minimal session shape hint generation needs, kept
// decoupled from internal/session/internal/types so this package has no
// import-cycle risk and can be fed synthetic state in tests.
type SessionView struct {
	Name      string
	Status    string // "active", "completed", "failed", "removed", ...
	UpdatedAt time.Time
}

// SystemState is the input to hint generation.
type SystemState struct {
	Sessions    []SessionView
	Initialized bool
	RepoPresent bool
	HasChanges  bool
}

// completedStaleAfter is how long a session may sit completed (measured
// from its last update) before a cleanup nudge is offered.
const completedStaleAfter = 24 * time.Hour

// manyActiveThreshold is the active-session count above which a
// dashboard-style overview hint is added after the per-session hints.
const manyActiveThreshold = 2

func hintForActiveSession(name string) Hint {
	return Info("session '"+name+"' is active").
		WithCommand("railyard status " + name).
		WithRationale("review session status regularly")
}

func hintForCompletedSession(name string, age time.Duration) Hint {
	days := int(age / (24 * time.Hour))
	return Suggestion("session '"+name+"' completed "+pluralDays(days)+" ago, consider removing").
		WithCommand("railyard remove " + name).
		WithRationale("clean up completed work").
		WithContext(map[string]any{"session": name, "age_days": days})
}

func hintForFailedSession(name string) Hint {
	return Warning("session '"+name+"' failed during creation").
		WithCommand("railyard remove " + name).
		WithRationale("clean up failed session and retry")
}

func hintForNoSessions() Hint {
	return Suggestion("no sessions yet, create your first parallel workspace").
		WithCommand("railyard add <name>").
		WithRationale("sessions enable parallel work on multiple features")
}

func hintForMultipleActiveSessions() Hint {
	return Tip("you have multiple active sessions, list them for an overview").
		WithCommand("railyard list").
		WithRationale("an overview helps manage multiple sessions")
}

// GenerateSessionHints produces every session-derived hint for state, in a
// fixed, deterministic order (spec.md §4.11).
func GenerateSessionHints(state SystemState) []Hint {
	if len(state.Sessions) == 0 {
		return []Hint{hintForNoSessions()}
	}

	now := time.Now().UTC()
	var out []Hint
	activeCount := 0
	for _, s := range state.Sessions {
		switch s.Status {
		case "active":
			activeCount++
			out = append(out, hintForActiveSession(s.Name))
		case "completed":
			if now.Sub(s.UpdatedAt) > completedStaleAfter {
				out = append(out, hintForCompletedSession(s.Name, now.Sub(s.UpdatedAt)))
			}
		case "failed":
			out = append(out, hintForFailedSession(s.Name))
		}
	}
	if activeCount > manyActiveThreshold {
		out = append(out, hintForMultipleActiveSessions())
	}
	return out
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}

// SuggestNextActions derives a short list of next-step actions from state
// (spec.md §4.11), distinct from Hints: these are coarser, dashboard-level
// prompts rather than one hint per resource.
func SuggestNextActions(state SystemState) []NextAction {
	var hasCompleted, hasFailed bool
	active := 0
	for _, s := range state.Sessions {
		switch s.Status {
		case "completed":
			hasCompleted = true
		case "failed":
			hasFailed = true
		case "active":
			active++
		}
	}

	var out []NextAction
	if hasCompleted {
		out = append(out, NextAction{
			Action:   "review completed sessions for cleanup",
			Commands: []string{"railyard list"},
		})
	}
	if hasFailed {
		out = append(out, NextAction{
			Action:   "remove failed sessions and retry",
			Commands: []string{"railyard list"},
		})
	}
	if active > manyActiveThreshold+1 {
		out = append(out, NextAction{
			Action:   "consider consolidating active sessions",
			Commands: []string{"railyard list"},
		})
	}
	return out
}

// GenerateResponse assembles the complete HintsResponse for state.
func GenerateResponse(state SystemState) HintsResponse {
	activeCount := 0
	for _, s := range state.Sessions {
		if s.Status == "active" {
			activeCount++
		}
	}
	return HintsResponse{
		Context: SystemContext{
			Initialized:    state.Initialized,
			RepoPresent:    state.RepoPresent,
			SessionsCount:  len(state.Sessions),
			ActiveSessions: activeCount,
			HasChanges:     state.HasChanges,
		},
		Hints:       GenerateSessionHints(state),
		NextActions: SuggestNextActions(state),
	}
}
