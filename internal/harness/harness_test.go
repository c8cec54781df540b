package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/state"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		reason      Reason
		isPreflight bool
		want        int
	}{
		{"", false, 0},
		{ReasonMissingGit, true, 2},
		{ReasonAgentTimeout, false, 1},
		{Reason("cheating_detected"), false, 9},
		{Reason("verify_post_failed"), false, 8},
	}
	for _, c := range cases {
		if got := ExitCode(c.reason, c.isPreflight); got != c.want {
			t.Errorf("ExitCode(%q, %v) = %d, want %d", c.reason, c.isPreflight, got, c.want)
		}
	}
}

func TestResolveAllowlistPath(t *testing.T) {
	if got := resolveAllowlistPath("/repo", ""); got != filepath.Join("/repo", allowlistFileName) {
		t.Errorf("empty configured: got %q", got)
	}
	if got := resolveAllowlistPath("/repo", "/abs/list.txt"); got != "/abs/list.txt" {
		t.Errorf("absolute configured: got %q", got)
	}
	if got := resolveAllowlistPath("/repo", ".ralph/story_verify_allowlist.txt"); got != filepath.Join("/repo", ".ralph/story_verify_allowlist.txt") {
		t.Errorf("relative configured: got %q", got)
	}
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allow.txt")
	writeFile(t, path, "npm test\n# a comment\n\ngo test ./...\n")

	got := loadAllowlist(path)
	if !got["npm test"] || !got["go test ./..."] {
		t.Fatalf("expected both commands allowed, got %v", got)
	}
	if got["# a comment"] {
		t.Fatalf("comment line should not be allowed: %v", got)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 entries, got %d", len(got))
	}
}

func TestLoadAllowlistMissingFile(t *testing.T) {
	got := loadAllowlist(filepath.Join(t.TempDir(), "missing.txt"))
	if len(got) != 0 {
		t.Fatalf("expected empty map for missing file, got %v", got)
	}
}

func TestTail(t *testing.T) {
	if got := tail("short", 100); got != "short" {
		t.Errorf("short string should pass through unchanged, got %q", got)
	}
	s := "0123456789"
	if got := tail(s, 4); got != "6789" {
		t.Errorf("tail(%q, 4) = %q, want %q", s, got, "6789")
	}
}

func TestSha256Hex(t *testing.T) {
	got := sha256Hex([]byte("hello"))
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("sha256Hex(\"hello\") = %s, want %s", got, want)
	}
	if sha256Hex(nil) == got {
		t.Error("empty and non-empty input should not hash the same")
	}
}

func TestIsVerifyFailure(t *testing.T) {
	if !isVerifyFailure(gate.ReasonVerifyPostFailed) {
		t.Error("verify_post_failed should be classified as a verify failure")
	}
	if isVerifyFailure(gate.ReasonScopeViolation) {
		t.Error("scope_violation should not be classified as a verify failure")
	}
}

func TestCircuitBreakerTripped(t *testing.T) {
	h := &Harness{opts: Options{Cfg: &config.Config{
		CircuitBreaker: config.CircuitBreakerConfig{MaxSameFailure: 3, MaxNoProgress: 5},
	}}}

	st := &state.State{SameFailureStreak: 2, NoProgressStreak: 1}
	if h.circuitBreakerTripped(st) {
		t.Error("should not trip below both thresholds")
	}

	st.SameFailureStreak = 3
	if !h.circuitBreakerTripped(st) {
		t.Error("should trip once same_failure_streak reaches the ceiling")
	}

	st.SameFailureStreak = 0
	st.NoProgressStreak = 5
	if !h.circuitBreakerTripped(st) {
		t.Error("should trip once no_progress_streak reaches the ceiling")
	}
}

func TestCircuitBreakerDisabledThreshold(t *testing.T) {
	h := &Harness{opts: Options{Cfg: &config.Config{
		CircuitBreaker: config.CircuitBreakerConfig{MaxSameFailure: 0, MaxNoProgress: 0},
	}}}
	st := &state.State{SameFailureStreak: 1000, NoProgressStreak: 1000}
	if h.circuitBreakerTripped(st) {
		t.Error("a zero ceiling should disable that half of the breaker")
	}
}

func TestParseDiffLines(t *testing.T) {
	raw := `diff --git a/foo.go b/foo.go
index 111..222 100644
--- a/foo.go
+++ b/foo.go
@@ -1,3 +1,3 @@
 package foo
-func old() {}
+func new() {}
`
	lines := parseDiffLines(raw)
	var added, removed int
	for _, l := range lines {
		if l.File != "foo.go" {
			t.Errorf("unexpected file %q on line %+v", l.File, l)
		}
		if l.Added {
			added++
		}
		if l.Removed {
			removed++
		}
	}
	if added != 1 || removed != 1 {
		t.Fatalf("expected 1 added and 1 removed line, got added=%d removed=%d", added, removed)
	}
}

func TestParseDiffLinesUntrackedFile(t *testing.T) {
	raw := `diff --git a/dev/null b/new.go
--- /dev/null
+++ b/new.go
@@ -0,0 +1,2 @@
+package new
+func Added() {}
`
	lines := parseDiffLines(raw)
	if len(lines) != 2 {
		t.Fatalf("expected 2 added lines, got %d: %+v", len(lines), lines)
	}
	for _, l := range lines {
		if l.File != "new.go" {
			t.Errorf("expected file new.go, got %q", l.File)
		}
		if !l.Added {
			t.Errorf("expected an added line, got %+v", l)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
