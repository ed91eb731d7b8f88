package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

func intp(n int) *int { return &n }

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	s, err := store.OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestSubmitRejectsEmptyDedupeKey(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Submit(context.Background(), SubmitRequest{Workspace: "alpha", DedupeKey: ""})
	assertCode(t, err, railyarderr.CodeInvalidDedupeKey)
}

func TestSubmitIsIdempotentForSameWorkspaceAndDedupeKey(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	e1, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if e1.SubmissionType != "created" {
		t.Fatalf("expected submission_type=created, got %q", e1.SubmissionType)
	}

	e2, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha2"})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if e2.ID != e1.ID {
		t.Fatalf("expected same entry id on idempotent upsert, got %d vs %d", e2.ID, e1.ID)
	}
	if e2.SubmissionType != "updated" {
		t.Fatalf("expected submission_type=updated, got %q", e2.SubmissionType)
	}
	if e2.HeadSHA != "sha2" {
		t.Fatalf("expected head_sha updated to sha2, got %q", e2.HeadSHA)
	}
}

func TestSubmitRejectsDedupeKeyConflictAcrossWorkspaces(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	if _, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"}); err != nil {
		t.Fatal(err)
	}
	_, err := q.Submit(ctx, SubmitRequest{Workspace: "beta", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	assertCode(t, err, railyarderr.CodeDedupeKeyConflict)
}

func TestSubmitRejectsAlreadyInQueueWithDifferentDedupeKey(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	if _, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"}); err != nil {
		t.Fatal(err)
	}
	_, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c2", HeadSHA: "sha1"})
	assertCode(t, err, railyarderr.CodeAlreadyInQueue)
}

func TestSubmitAllowsResubmissionAfterTerminalState(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Transition(ctx, e.ID, types.QueueClaimed, "agent-1", "claim"); err != nil {
		t.Fatal(err)
	}
	if err := q.Fail(ctx, e.ID, errors.New("permission denied"), "agent-1"); err != nil {
		t.Fatal(err)
	}
	got, err := q.Get(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.QueueFailedTerminal {
		t.Fatalf("expected FailedTerminal after permission-denied failure, got %v", got.Status)
	}

	// Same dedupe_key and workspace: now legal because the old entry is terminal.
	if _, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha2"}); err != nil {
		t.Fatalf("expected resubmission to succeed once old entry is terminal, got %v", err)
	}
}

func TestTransitionRejectsIllegalJump(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	if err != nil {
		t.Fatal(err)
	}
	err = q.Transition(ctx, e.ID, types.QueueMerged, "agent-1", "skip ahead")
	assertCode(t, err, railyarderr.CodeInvalidTransition)
}

func TestTransitionRejectsLeavingTerminalState(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Transition(ctx, e.ID, types.QueueClaimed, "agent-1", "claim"); err != nil {
		t.Fatal(err)
	}
	if err := q.Fail(ctx, e.ID, errors.New("validation error"), "agent-1"); err != nil {
		t.Fatal(err)
	}
	err = q.Transition(ctx, e.ID, types.QueuePending, "agent-1", "retry attempt")
	assertCode(t, err, railyarderr.CodeInvalidTransition)
}

func TestFailStaysRetryableBelowMaxAttempts(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "sha1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Transition(ctx, e.ID, types.QueueClaimed, "agent-1", "claim"); err != nil {
		t.Fatal(err)
	}
	retryableErr := errors.New("database is locked")

	if err := q.Fail(ctx, e.ID, retryableErr, "agent-1"); err != nil {
		t.Fatal(err)
	}
	got, _ := q.Get(ctx, e.ID)
	if got.Status != types.QueueFailedRetryable {
		t.Fatalf("expected FailedRetryable on first retryable failure, got %v", got.Status)
	}

	if err := q.Retry(ctx, e.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if err := q.Transition(ctx, e.ID, types.QueueClaimed, "agent-1", "claim"); err != nil {
		t.Fatal(err)
	}
	if err := q.Fail(ctx, e.ID, retryableErr, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if err := q.Retry(ctx, e.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if err := q.Transition(ctx, e.ID, types.QueueClaimed, "agent-1", "claim"); err != nil {
		t.Fatal(err)
	}
	// third failure: attempt_count increments on each FailedRetryable->Pending
	// transition, so after two retries it is 2, below the default max_attempts
	// of 3, and Fail still classifies the entry as retryable.
	if err := q.Fail(ctx, e.ID, retryableErr, "agent-1"); err != nil {
		t.Fatal(err)
	}
	got, _ = q.Get(ctx, e.ID)
	if got.AttemptCount < got.MaxAttempts {
		if got.Status != types.QueueFailedRetryable {
			t.Fatalf("expected still-retryable while attempt_count(%d) < max_attempts(%d), got %v",
				got.AttemptCount, got.MaxAttempts, got.Status)
		}
	} else {
		if got.Status != types.QueueFailedTerminal {
			t.Fatalf("expected terminal once attempt_count(%d) >= max_attempts(%d), got %v",
				got.AttemptCount, got.MaxAttempts, got.Status)
		}
	}
}

func TestNextWithLockClaimsHighestPriorityFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	if _, err := q.Submit(ctx, SubmitRequest{Workspace: "low", DedupeKey: "low:c1", HeadSHA: "s", Priority: intp(9)}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Submit(ctx, SubmitRequest{Workspace: "high", DedupeKey: "high:c1", HeadSHA: "s", Priority: intp(1)}); err != nil {
		t.Fatal(err)
	}

	claimed, err := q.NextWithLock(ctx, "agent-1", time.Minute)
	if err != nil {
		t.Fatalf("NextWithLock: %v", err)
	}
	if claimed == nil || claimed.Workspace != "high" {
		t.Fatalf("expected to claim the higher-priority entry 'high', got %+v", claimed)
	}

	next, err := q.NextWithLock(ctx, "agent-2", time.Minute)
	if err != nil {
		t.Fatalf("NextWithLock while held: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no entry claimable while the processing lock is held, got %+v", next)
	}
}

func TestSubmitPreservesExplicitZeroPriority(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "s", Priority: intp(0)})
	if err != nil {
		t.Fatal(err)
	}
	if e.Priority != 0 {
		t.Fatalf("expected explicit priority 0 to be stored as-is, got %d", e.Priority)
	}
}

func TestSubmitAppliesDefaultPriorityWhenUnset(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Priority != defaultPriority {
		t.Fatalf("expected default priority %d when unset, got %d", defaultPriority, e.Priority)
	}
}

func TestExtendLockRejectsNonHolder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.NextWithLock(ctx, "agent-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	err = q.ExtendLock(ctx, "agent-2", e.ID, time.Minute)
	assertCode(t, err, railyarderr.CodeNotLockHolder)
}

func TestReclaimExpiredLockReturnsEntryToPending(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	e, err := q.Submit(ctx, SubmitRequest{Workspace: "alpha", DedupeKey: "alpha:c1", HeadSHA: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.NextWithLock(ctx, "agent-1", -time.Second); err != nil {
		t.Fatal(err) // lease already expired on creation
	}

	claimed, err := q.NextWithLock(ctx, "agent-2", time.Minute)
	if err != nil {
		t.Fatalf("NextWithLock after expiry: %v", err)
	}
	if claimed == nil || claimed.ID != e.ID {
		t.Fatalf("expected the expired lock's entry to be reclaimable, got %+v", claimed)
	}
	if claimed.AttemptCount != 1 {
		t.Fatalf("expected attempt_count incremented by reclaim, got %d", claimed.AttemptCount)
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var re *railyarderr.Error
	if !errors.As(err, &re) || re.Code != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}
