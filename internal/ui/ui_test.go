package ui

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/papapumpkin/mergetrain/internal/manifest"
)

// captureStderr redirects os.Stderr to a pipe and returns the captured output.
func captureStderr(fn func()) string {
	r, w, _ := os.Pipe()
	orig := os.Stderr
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = orig

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	r.Close()
	return string(buf[:n])
}

func TestNewWritesToStderr(t *testing.T) {
	output := captureStderr(func() {
		New().Error("boom")
	})
	if !strings.Contains(output, "error: ") || !strings.Contains(output, "boom") {
		t.Errorf("unexpected output: %q", output)
	}
}

func TestMergeProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewWriter(&buf)

	p.Merging("feat-a", "https://example.com/a.git", "dev", "abc123")
	p.Skipping("feat-b")
	p.RerereResolved("feat-c")
	p.Halted("feat-d", errors.New("resolve, commit, run mergetrain merge --continue"))
	p.MergeSucceeded(3, 1)

	out := buf.String()
	checks := []struct {
		name   string
		substr string
	}{
		{"merging line", "Merging feat-a"},
		{"merge target", "https://example.com/a.git dev"},
		{"skip", "Skipping feat-b since patch-manifest says it is merged"},
		{"rerere", "git rerere handled merge of feat-c"},
		{"halt", "merge of feat-d halted"},
		{"remediation", "mergetrain merge --continue"},
		{"summary", "merged: 3, skipped: 1"},
	}
	for _, c := range checks {
		if !strings.Contains(out, c.substr) {
			t.Errorf("expected output to contain %s (%q), got:\n%s", c.name, c.substr, out)
		}
	}
}

func TestValidationResult(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		var buf bytes.Buffer
		NewWriter(&buf).ValidationResult("manifest_in.json", 4, nil)
		if !strings.Contains(buf.String(), "4 enabled branch(es), no errors") {
			t.Errorf("got %q", buf.String())
		}
	})
	t.Run("errors", func(t *testing.T) {
		var buf bytes.Buffer
		errs := []manifest.ValidationError{
			{Branch: "feat-a", Field: "repourl", Err: manifest.ErrMissingField},
			{Branch: "feat-b", Field: "CONFIG_X", Err: manifest.ErrOptionConflict},
		}
		NewWriter(&buf).ValidationResult("m.json", 2, errs)
		out := buf.String()
		if !strings.Contains(out, "2 error(s)") {
			t.Errorf("missing error count: %q", out)
		}
		for _, e := range errs {
			if !strings.Contains(out, e.Error()) {
				t.Errorf("missing %q in %q", e.Error(), out)
			}
		}
	})
}

func TestBlockTrimsTrailingNewlines(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf).Block("| a |\n| b |\n\n")
	if buf.String() != "| a |\n| b |\n" {
		t.Errorf("got %q", buf.String())
	}
}
