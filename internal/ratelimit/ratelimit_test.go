package ratelimit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireDisabledIsNoop(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "rl.json"), false, 1, false)
	res, err := l.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if res.Slept {
		t.Fatal("disabled limiter should never sleep")
	}
}

func TestAcquireIncrementsCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.json")
	l := New(path, true, 5, false)
	for i := 0; i < 3; i++ {
		if _, err := l.Acquire(); err != nil {
			t.Fatal(err)
		}
	}
	w, err := l.load()
	if err != nil {
		t.Fatal(err)
	}
	if w.Count != 3 {
		t.Fatalf("expected count 3, got %d", w.Count)
	}
}

func TestAcquireSleepsAtLimitAndResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.json")
	var slept time.Duration
	l := New(path, true, 2, true, WithSleeper(func(d time.Duration) { slept = d }))

	for i := 0; i < 2; i++ {
		if _, err := l.Acquire(); err != nil {
			t.Fatal(err)
		}
	}
	res, err := l.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Slept {
		t.Fatal("expected sleep once count reached the per-hour limit")
	}
	if !res.ShouldRestart {
		t.Fatal("expected restart-on-sleep to propagate")
	}
	if slept < 2*time.Second {
		t.Fatalf("expected at least the 2s floor, got %s", slept)
	}
	w, _ := l.load()
	if w.Count != 1 {
		t.Fatalf("expected window reset then incremented to 1, got %d", w.Count)
	}
}

func TestAcquireResetsExpiredWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.json")
	now := time.Now()
	l := New(path, true, 1, false, WithClock(func() time.Time { return now }))
	if _, err := l.Acquire(); err != nil {
		t.Fatal(err)
	}

	later := now.Add(2 * time.Hour)
	l2 := New(path, true, 1, false, WithClock(func() time.Time { return later }))
	res, err := l2.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if res.Slept {
		t.Fatal("expired window should reset without sleeping")
	}
}
