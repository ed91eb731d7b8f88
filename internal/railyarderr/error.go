// Package railyarderr defines the structured error taxonomy every
// user-visible failure in railyard flows through: a stable code, a one-line
// message, optional structured details, an optional human suggestion, zero
// or more machine-readable fixes, and a semantic exit code (spec §4.7, §7).
package railyarderr

import "fmt"

// Impact classifies how risky a Fix is to apply automatically.
type Impact string

const (
	ImpactSafe        Impact = "Safe"
	ImpactLow         Impact = "Low"
	ImpactMedium      Impact = "Medium"
	ImpactHigh        Impact = "High"
	ImpactDestructive Impact = "Destructive"
)

// Fix is a machine-readable remediation suggestion attached to an Error.
type Fix struct {
	Description string   `json:"description"`
	Commands    []string `json:"commands,omitempty"`
	Automatic   bool     `json:"automatic"`
	Impact      Impact   `json:"impact"`
}

// Validate enforces "automatic ⇒ impact ∈ {Safe, Low}" (spec §4.7).
func (f Fix) Validate() error {
	if f.Automatic && f.Impact != ImpactSafe && f.Impact != ImpactLow {
		return fmt.Errorf("fix %q marked automatic with impact %s; automatic fixes must be Safe or Low", f.Description, f.Impact)
	}
	return nil
}

// Class is the error taxonomy bucket; it determines the semantic exit code.
type Class string

const (
	ClassValidation     Class = "validation"
	ClassNotFound       Class = "not_found"
	ClassSystem         Class = "system"
	ClassExternal       Class = "external"
	ClassLockContention Class = "lock_contention"
	ClassCancelled      Class = "cancelled"
)

// ExitCode maps a Class to the taxonomy's semantic exit code (spec §7).
func (c Class) ExitCode() int {
	switch c {
	case ClassValidation:
		return 1
	case ClassNotFound:
		return 2
	case ClassSystem:
		return 3
	case ClassExternal:
		return 4
	case ClassLockContention:
		return 5
	case ClassCancelled:
		return 130
	default:
		return 1
	}
}

// Error is the single structured-error shape surfaced to every caller.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Class      Class          `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Fixes      []Fix          `json:"fixes,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As - never shown
// to the user (spec §7: "Errors never carry stack traces to users").
func (e *Error) Unwrap() error { return e.cause }

// ExitCode returns the semantic exit code for this error (spec §7).
func (e *Error) ExitCode() int { return e.Class.ExitCode() }

// New constructs a structured Error.
func New(class Class, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

// Wrap constructs a structured Error around an internal cause. The cause is
// never rendered to the user; it is retrievable via errors.Unwrap for logs.
func Wrap(class Class, code, message string, cause error) *Error {
	return &Error{Class: class, Code: code, Message: message, cause: cause}
}

// WithDetails attaches a structured details payload and returns the receiver
// for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithSuggestion attaches a human-readable suggestion.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithFixes attaches machine-readable fixes, validating automatic⇒impact.
func (e *Error) WithFixes(fixes ...Fix) *Error {
	for _, f := range fixes {
		if err := f.Validate(); err != nil {
			panic(err) // programmer error: invalid fix table entry
		}
	}
	e.Fixes = fixes
	return e
}

// Well-known codes referenced by name across packages (spec §3, §4).
const (
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionExists         = "SESSION_ALREADY_EXISTS"
	CodeInvalidSessionName    = "INVALID_SESSION_NAME"
	CodeWorkspaceInaccessible = "WORKSPACE_INACCESSIBLE"
	CodeWorkspaceRemovalFail  = "WORKSPACE_REMOVAL_FAILED"
	CodeInvalidStatusTransit  = "INVALID_STATUS_TRANSITION"
	CodeNotInMultiplexer      = "NOT_IN_MULTIPLEXER"

	CodeInvalidDedupeKey   = "INVALID_DEDUPE_KEY"
	CodeDedupeKeyConflict  = "DEDUPE_KEY_CONFLICT"
	CodeAlreadyInQueue     = "ALREADY_IN_QUEUE"
	CodeInvalidTransition  = "InvalidStateTransition"
	CodeEntryNotFound      = "QUEUE_ENTRY_NOT_FOUND"
	CodeCycleDetected      = "CycleDetected"
	CodeNotLockHolder      = "NOT_LOCK_HOLDER"
	CodeProcessingLockBusy = "PROCESSING_LOCK_BUSY"

	CodeSessionLocked  = "SESSION_LOCKED"
	CodeBuildLockBusy  = "BUILD_LOCK_TIMEOUT"
	CodeAgentNotFound  = "AGENT_NOT_FOUND"
	CodeSignalSetup    = "SIGNAL_HANDLER_SETUP_FAILED"
	CodeDBLocked       = "DATABASE_LOCKED"
	CodeDBCorrupted    = "DATABASE_CORRUPTED"
	CodeSchemaMismatch = "SCHEMA_MISMATCH"

	CodeNoUndoHistory      = "NO_UNDO_HISTORY"
	CodeAlreadyPushed      = "ALREADY_PUSHED_TO_REMOTE"
	CodeUndoExpired        = "WORKSPACE_EXPIRED"
	CodeMalformedUndoLog   = "MALFORMED_UNDO_LOG"
	CodeReadUndoLogFailed  = "READ_UNDO_LOG_FAILED"
	CodeWriteUndoLogFailed = "WRITE_UNDO_LOG_FAILED"

	CodeVCSCommandFailed  = "VCS_COMMAND_FAILED"
	CodeRemoteError       = "REMOTE_ERROR"
	CodeHookFailed        = "HOOK_FAILED"
	CodeMultiplexerFailed = "MULTIPLEXER_COMMAND_FAILED"

	CodeNotOnMain = "NOT_ON_MAIN"
)

// NotFound builds a not-found Error (exit 2).
func NotFound(code, message string) *Error { return New(ClassNotFound, code, message) }

// Validation builds a validation Error (exit 1).
func Validation(code, message string) *Error { return New(ClassValidation, code, message) }

// System builds a system Error (exit 3).
func System(code, message string) *Error { return New(ClassSystem, code, message) }

// External builds an external-collaborator Error (exit 4).
func External(code, message string) *Error { return New(ClassExternal, code, message) }

// LockContention builds a lock-contention Error (exit 5).
func LockContention(code, message string) *Error { return New(ClassLockContention, code, message) }

// Cancelled builds the SIGINT cancellation Error (exit 130).
func Cancelled(message string) *Error { return New(ClassCancelled, "CANCELLED", message) }
