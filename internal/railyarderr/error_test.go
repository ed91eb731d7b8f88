package railyarderr

import (
	"context"
	"errors"
	"testing"
)

func TestExitCodeTaxonomy(t *testing.T) {
	cases := []struct {
		class Class
		want  int
	}{
		{ClassValidation, 1},
		{ClassNotFound, 2},
		{ClassSystem, 3},
		{ClassExternal, 4},
		{ClassLockContention, 5},
		{ClassCancelled, 130},
	}
	for _, c := range cases {
		if got := c.class.ExitCode(); got != c.want {
			t.Errorf("%s.ExitCode() = %d, want %d", c.class, got, c.want)
		}
	}
}

func TestFixValidateAutomaticImpact(t *testing.T) {
	bad := Fix{Description: "nuke it", Automatic: true, Impact: ImpactDestructive}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for automatic+Destructive fix")
	}
	good := Fix{Description: "retry", Automatic: true, Impact: ImpactSafe}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorUnwrapDoesNotLeakToMessage(t *testing.T) {
	cause := errors.New("internal pgx detail with stack-looking text")
	e := Wrap(ClassSystem, CodeDBCorrupted, "database corrupted", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("errors.Is should find the wrapped cause")
	}
	// The cause's raw text is allowed to appear in e.Error() (developer-facing
	// logs), but never in e.Message, which is what callers render to users.
	if e.Message != "database corrupted" {
		t.Fatalf("Message got polluted: %q", e.Message)
	}
}

func TestEnrichFillsDefaults(t *testing.T) {
	e := New(ClassNotFound, CodeSessionNotFound, "session \"x\" not found")
	Enrich(e)
	if e.Suggestion == "" {
		t.Fatal("expected default suggestion to be filled in")
	}
}

func TestClassifyContextSignals(t *testing.T) {
	if Classify(context.DeadlineExceeded) != Retryable {
		t.Fatal("deadline exceeded should be retryable")
	}
	if Classify(context.Canceled) != Terminal {
		t.Fatal("cancellation should be terminal")
	}
}

func TestClassifyWithAttemptsDowngrades(t *testing.T) {
	err := errors.New("database is locked")
	if Classify(err) != Retryable {
		t.Fatal("expected db-locked to classify as retryable")
	}
	if ClassifyWithAttempts(err, 3, 3) != Terminal {
		t.Fatal("expected retryable to downgrade to terminal at max attempts")
	}
	if ClassifyWithAttempts(err, 1, 3) != Retryable {
		t.Fatal("expected retryable to stay retryable below max attempts")
	}
}

func TestClassifyMergeConflictIsTerminal(t *testing.T) {
	e := External(CodeVCSCommandFailed, "rebase failed: conflict in src/main.go")
	if Classify(e) != Terminal {
		t.Fatal("merge conflicts must never be retried automatically")
	}
}
