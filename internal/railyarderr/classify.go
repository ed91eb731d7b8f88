package railyarderr

import (
	"context"
	"errors"
	"strings"
)

// Retryability is the queue pipeline's view of a failure (spec §4.3): an
// error is either Retryable (I/O, lock contention, timeout, unavailable) or
// Terminal (merge conflict, validation, permission, config, not found, VCS
// op failed). Classification happens only inside the queue pipeline (spec
// §7 "Propagation policy") — everywhere else an *Error surfaces as-is.
type Retryability int

const (
	Terminal Retryability = iota
	Retryable
)

// retryableSubstrings are matched case-insensitively against an error's
// message/code when the error isn't already a railyarderr.Error with an
// explicit Class (e.g. raw errors bubbling up from a VCS subprocess).
var retryableSubstrings = []string{
	"database is locked",
	"database locked",
	"busy",
	"timeout",
	"timed out",
	"connection refused",
	"temporarily unavailable",
	"service unavailable",
	"i/o timeout",
	"lock contention",
}

var terminalSubstrings = []string{
	"conflict",
	"permission denied",
	"validation",
	"invalid",
	"not found",
	"configuration error",
}

// Classify determines whether err should be retried by the merge-queue
// pipeline. context.DeadlineExceeded and context.Canceled are always
// Retryable/Terminal respectively per their semantics: a deadline means
// "try again later", a cancellation means "stop".
func Classify(err error) Retryability {
	if err == nil {
		return Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}
	if errors.Is(err, context.Canceled) {
		return Terminal
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Class {
		case ClassSystem, ClassLockContention:
			return Retryable
		case ClassExternal:
			// External failures are split further below by message content
			// (e.g. VCS_COMMAND_FAILED for a merge conflict is terminal, but
			// a transient "connection refused" push failure is retryable).
		default:
			return Terminal
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range terminalSubstrings {
		if strings.Contains(msg, s) {
			return Terminal
		}
	}
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return Retryable
		}
	}
	return Terminal
}

// ClassifyWithAttempts applies Classify and then downgrades a Retryable
// classification to Terminal once attemptCount has reached maxAttempts
// (spec §4.3: "If attempt_count ≥ max_attempts, a would-be retryable
// becomes terminal").
func ClassifyWithAttempts(err error, attemptCount, maxAttempts int) Retryability {
	r := Classify(err)
	if r == Retryable && attemptCount >= maxAttempts {
		return Terminal
	}
	return r
}
