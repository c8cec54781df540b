package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "verify.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunPassWithSignature(t *testing.T) {
	script := writeScript(t, "echo VERIFY_SH_SHA=deadbeef\nexit 0\n")
	r := NewRunner(script, 5*time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), t.TempDir(), "pre", ModeQuick)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Passed() {
		t.Fatalf("expected Passed(), got %+v", res)
	}
}

func TestRunMissingSignatureErrors(t *testing.T) {
	script := writeScript(t, "echo ok\nexit 0\n")
	r := NewRunner(script, 5*time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), t.TempDir(), "pre", ModeQuick)
	if err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v (res=%+v)", err, res)
	}
}

func TestRunFailureReturnsNonzeroCategory(t *testing.T) {
	script := writeScript(t, "echo VERIFY_SH_SHA=abc\necho 'test failed: boom'\nexit 1\n")
	r := NewRunner(script, 5*time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), t.TempDir(), "post", ModeFull)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Category != CategoryFail || res.ReturnCode != 1 {
		t.Fatalf("expected fail category/rc 1, got %+v", res)
	}
	summary, err := os.ReadFile(res.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) == 0 {
		t.Fatal("expected a non-empty failure summary")
	}
}

func TestRunTimeout(t *testing.T) {
	script := writeScript(t, "sleep 5\n")
	r := NewRunner(script, 100*time.Millisecond)
	res, err := r.Run(context.Background(), t.TempDir(), t.TempDir(), "pre", ModeQuick)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Category != CategoryTimeout || res.ReturnCode != 124 {
		t.Fatalf("expected timeout/124, got %+v", res)
	}
}

func TestTailLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := TailLines(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "c" || lines[1] != "d" {
		t.Fatalf("unexpected tail: %v", lines)
	}
}
