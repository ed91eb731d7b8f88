// Package types holds the core entity shapes shared across railyard's
// components (spec §3), kept separate from any one package so session,
// queue, lock, and checkpoint code can all refer to the same definitions
// without import cycles — the same role the teacher's internal/types plays
// for its Issue/Dependency/Comment family.
package types

import "time"

// SessionStatus is the externally visible lifecycle status of a workspace.
type SessionStatus string

const (
	SessionCreating  SessionStatus = "creating"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionRemoved   SessionStatus = "removed"
)

// LifecycleState is tracked separately from Status (spec §3).
type LifecycleState string

const (
	LifecycleCreated LifecycleState = "created"
	LifecycleReady   LifecycleState = "ready"
)

// Session is the durable workspace record (spec §3 "Session").
type Session struct {
	Name            string
	WorkspacePath   string
	Status          SessionStatus
	LifecycleState  LifecycleState
	TabLabel        string
	BranchLabel     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastSynced      *time.Time
	Metadata        map[string]any
	WorkerError     string
	RemovalFailedAt string // not filled by the session registry; a Phase-3 cleanup failure reason is stored in the removal_failed_reason column (spec §4.2a)
}

// validSessionTransitions enumerates the legal Status transitions (spec §3).
var validSessionTransitions = map[SessionStatus]map[SessionStatus]bool{
	SessionCreating: {SessionActive: true, SessionFailed: true},
	SessionActive:   {SessionPaused: true, SessionCompleted: true},
	SessionPaused:   {SessionActive: true, SessionCompleted: true},
}

// CanTransitionSessionStatus reports whether from→to is a legal Session
// status transition per spec §3's restricted set.
func CanTransitionSessionStatus(from, to SessionStatus) bool {
	if from == to {
		return true
	}
	next, ok := validSessionTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// QueueStatus is a merge-queue entry's pipeline position (spec §4.3).
type QueueStatus string

const (
	QueuePending         QueueStatus = "pending"
	QueueClaimed         QueueStatus = "claimed"
	QueueRebasing        QueueStatus = "rebasing"
	QueueTesting         QueueStatus = "testing"
	QueueReadyToMerge    QueueStatus = "ready_to_merge"
	QueueMerging         QueueStatus = "merging"
	QueueMerged          QueueStatus = "merged"
	QueueFailedRetryable QueueStatus = "failed_retryable"
	QueueFailedTerminal  QueueStatus = "failed_terminal"
)

// TerminalStatuses have no outgoing transitions (INV-QUEUE-004).
var TerminalStatuses = map[QueueStatus]bool{
	QueueMerged:         true,
	QueueFailedTerminal: true,
}

// IsTerminal reports whether s is a terminal queue status.
func (s QueueStatus) IsTerminal() bool { return TerminalStatuses[s] }

// validQueueTransitions enumerates legal pipeline transitions (spec §4.3).
var validQueueTransitions = map[QueueStatus]map[QueueStatus]bool{
	QueuePending:      {QueueClaimed: true},
	QueueClaimed:      {QueueRebasing: true},
	QueueRebasing:     {QueueTesting: true},
	QueueTesting:      {QueueReadyToMerge: true},
	QueueReadyToMerge: {QueueMerging: true},
	QueueMerging:      {QueueMerged: true},
	QueueFailedRetryable: {QueuePending: true},
}

// CanTransitionQueueStatus reports whether from→to is legal. Any
// non-terminal state may additionally transition to FailedRetryable or
// FailedTerminal (spec §4.3) — handled here by a single check since it
// applies uniformly rather than being enumerated per source state.
func CanTransitionQueueStatus(from, to QueueStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == QueueFailedRetryable || to == QueueFailedTerminal {
		return true
	}
	next, ok := validQueueTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// StackMergeState is a queue entry's position in its parent/child stack
// (spec §4.4).
type StackMergeState string

const (
	StackIndependent StackMergeState = "independent"
	StackBlocked     StackMergeState = "blocked"
	StackReady       StackMergeState = "ready"
	StackMerged      StackMergeState = "merged"
)

// Entry is a merge-queue slot (spec §3 "Queue entry").
type Entry struct {
	ID                int64
	Workspace         string
	BeadID            string
	Priority          int
	Status            QueueStatus
	AddedAt           time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
	AgentID           string
	DedupeKey         string
	HeadSHA           string
	TestedAgainstSHA  string
	AttemptCount      int
	MaxAttempts       int
	RebaseCount       int
	LastRebaseAt      *time.Time
	ParentWorkspace   string
	StackDepth        int
	Dependents        []string
	StackRoot         string
	StackMergeState   StackMergeState
	LockExpiresAt     *time.Time
	SubmissionType    string // response-only: "created" | "updated" (spec §8 idempotence law)
}

// AuditEvent is one row of a queue entry's transition log (spec §4.3).
type AuditEvent struct {
	ID        int64
	EntryID   int64
	FromState QueueStatus
	ToState   QueueStatus
	At        time.Time
	Actor     string
	Reason    string
}

// Agent is an active worker record (spec §3 "Agent").
type Agent struct {
	AgentID        string
	RegisteredAt   time.Time
	LastSeen       time.Time
	CurrentSession string
	CurrentCommand string
	ActionsCount   int
	Capabilities   []string
}

// BeadStatus is an issue/task's lifecycle status (spec §3 "Bead / task").
type BeadStatus string

const (
	BeadOpen       BeadStatus = "open"
	BeadInProgress BeadStatus = "in_progress"
	BeadBlocked    BeadStatus = "blocked"
	BeadDeferred   BeadStatus = "deferred"
	BeadClosed     BeadStatus = "closed"
)

// Bead is the core's read-only view of an external beads-store issue.
type Bead struct {
	ID          string
	Status      BeadStatus
	Priority    int
	Type        string
	Description string
	Labels      []string
	Assignee    string
	Parent      string
	DependsOn   []string
	BlockedBy   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsBlocked reports whether the bead has open blockers (spec §3 invariant:
// "blocked" iff blocked_by non-empty).
func (b Bead) IsBlocked() bool { return len(b.BlockedBy) > 0 }

// IsReady reports whether the bead is open and unblocked (spec §3
// invariant: "ready" iff Open and not blocked).
func (b Bead) IsReady() bool { return b.Status == BeadOpen && !b.IsBlocked() }

// CheckpointState is a checkpoint row's lifecycle (spec §3 "Checkpoint").
type CheckpointState string

const (
	CheckpointPending      CheckpointState = "pending"
	CheckpointCommitted    CheckpointState = "committed"
	CheckpointNeedsRestore CheckpointState = "needs_restore"
)

// Checkpoint is an auto-snapshot guarding a risky operation (spec §4.6a).
type Checkpoint struct {
	ID          string
	CreatedAt   time.Time
	State       CheckpointState
	Command     string
	SessionName string
	PreRevision string
}

// UndoEntry is one append-only record of a reversible merge (spec §4.6b).
type UndoEntry struct {
	SessionName      string    `json:"session_name"`
	CommitID         string    `json:"commit_id"`
	PreMergeCommitID string    `json:"pre_merge_commit_id"`
	Timestamp        time.Time `json:"timestamp"`
	PushedToRemote   bool      `json:"pushed_to_remote"`
	Status           string    `json:"status"`
}
