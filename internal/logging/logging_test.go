package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitJSONOutputWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})
	WithComponent("queue").Info().Msg("claimed entry")

	out := buf.String()
	if !strings.Contains(out, `"component":"queue"`) {
		t.Fatalf("expected component field in output, got %s", out)
	}
	if !strings.Contains(out, "claimed entry") {
		t.Fatalf("expected message in output, got %s", out)
	}
}

func TestInitConsoleOutputIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: false, Output: &buf})
	Logger.Warn().Msg("stale lock detected")

	if !strings.Contains(buf.String(), "stale lock detected") {
		t.Fatalf("expected message in console output, got %s", buf.String())
	}
}
