package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lock")
	l, err := Acquire(dir, time.Hour)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker.json")); err != nil {
		t.Fatalf("expected marker.json: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected lock dir removed, got err=%v", err)
	}
	// Idempotent release.
	if err := l.Release(); err != nil {
		t.Fatalf("second Release should be a no-op: %v", err)
	}
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lock")
	l1, err := Acquire(dir, time.Hour)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l1.Release()

	if _, err := Acquire(dir, time.Hour); err == nil {
		t.Fatal("expected second Acquire to fail while held")
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lock")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := Metadata{PID: 999999, EpochSecs: time.Now().Add(-time.Hour).Unix()}
	if err := writeMetadata(dir, meta); err != nil {
		t.Fatal(err)
	}

	l, err := Acquire(dir, time.Minute)
	if err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got: %v", err)
	}
	defer l.Release()

	got, err := ReadMetadata(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.PID != os.Getpid() {
		t.Fatalf("expected marker to be rewritten with current pid, got %d", got.PID)
	}
}

func TestAcquireDoesNotReclaimFreshDeadLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lock")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := Metadata{PID: 999999, EpochSecs: time.Now().Unix()}
	if err := writeMetadata(dir, meta); err != nil {
		t.Fatal(err)
	}

	if _, err := Acquire(dir, time.Hour); err == nil {
		t.Fatal("expected fresh (not yet stale) dead-pid lock to stay held")
	}
}
