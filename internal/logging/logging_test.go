package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVerbosity(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, 0).WithName("lift")

	log.Info("step", "drive", 42)
	log.V(1).Info("hidden")

	out := buf.String()
	if !strings.Contains(out, "lift: ") {
		t.Errorf("expected name prefix, got %q", out)
	}
	if !strings.Contains(out, `"drive"=42`) {
		t.Errorf("expected drive key, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("V(1) line printed at verbosity 0: %q", out)
	}

	buf.Reset()
	New(&buf, 1).V(1).Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected V(1) line at verbosity 1, got %q", buf.String())
	}
}
