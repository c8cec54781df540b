package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ralphctl/ralph/internal/prd"
)

func TestExtractMarkPassNone(t *testing.T) {
	id, err := ExtractMarkPass("just some output")
	if err != nil || id != "" {
		t.Fatalf("expected no mark-pass, got id=%q err=%v", id, err)
	}
}

func TestExtractMarkPassOne(t *testing.T) {
	id, err := ExtractMarkPass("done\n<mark_pass>S1-001</mark_pass>\n")
	if err != nil || id != "S1-001" {
		t.Fatalf("expected S1-001, got id=%q err=%v", id, err)
	}
}

func TestExtractMarkPassMultipleIsError(t *testing.T) {
	_, err := ExtractMarkPass("<mark_pass>S1-001</mark_pass><mark_pass>S1-002</mark_pass>")
	if err != ErrMultipleMarkPass {
		t.Fatalf("expected ErrMultipleMarkPass, got %v", err)
	}
}

func TestRenderIncludesStoryAndRules(t *testing.T) {
	out := Render(PromptData{
		Story: prd.Story{ID: "S1-001", Description: "do the thing", Scope: prd.Scope{Touch: []string{"pkg/**"}}},
		NonNegotiableRules: []string{"stay in scope"},
	})
	if !containsAll(out, "S1-001", "do the thing", "pkg/**", "stay in scope", "<mark_pass>S1-001</mark_pass>") {
		t.Fatalf("rendered prompt missing expected content:\n%s", out)
	}
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !contains(haystack, n) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}

func TestInvokeTimesOut(t *testing.T) {
	inv := &Invoker{Command: "sleep", Args: []string{"2"}, Timeout: 50 * time.Millisecond}
	out, err := inv.Invoke(context.Background(), t.TempDir(), "ignored", nil, "", "", "")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !out.TimedOut || out.ExitCode != 124 {
		t.Fatalf("expected timeout, got %+v", out)
	}
}

func TestInvokeProtectsAndRestoresPaths(t *testing.T) {
	dir := t.TempDir()
	protected := filepath.Join(dir, "prd.json")
	if err := os.WriteFile(protected, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	inv := &Invoker{Command: "true", Timeout: 5 * time.Second}
	_, err := inv.Invoke(context.Background(), dir, "ignored", []string{protected}, "", "", "")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	info, err := os.Stat(protected)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		t.Fatalf("expected write permission restored after invocation, got mode %v", info.Mode())
	}
}
