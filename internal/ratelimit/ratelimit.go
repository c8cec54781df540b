// Package ratelimit implements the sliding 1-hour window cap on agent
// calls described in spec.md §4.4: before each agent call, reset the
// window if an hour has elapsed, sleep out the remainder of the window if
// the count has reached the configured limit, then record the call.
//
// Grounded on the teacher's rpiCycleDelay/backoff sleeps in
// cmd/ao/rpi_loop.go and the supervisorLease's persisted-JSON-with-
// timestamps shape (rpi_loop_supervisor.go), here specialized to a single
// window record instead of a lease.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const windowDuration = time.Hour

// Window is the persisted sliding-window record (spec.md §4.4:
// "window_start_epoch, count").
type Window struct {
	WindowStartEpoch int64 `json:"window_start_epoch"`
	Count            int   `json:"count"`
	LastSleepSeconds int   `json:"last_sleep_seconds,omitempty"`
}

// Limiter enforces a per-hour cap on agent invocations, persisted at path.
type Limiter struct {
	path           string
	enabled        bool
	perHour        int
	restartOnSleep bool
	sleepFn        func(time.Duration)
	nowFn          func() time.Time
}

// Option customizes a Limiter, primarily to make tests deterministic.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.nowFn = now } }

// WithSleeper overrides the sleep function.
func WithSleeper(sleep func(time.Duration)) Option { return func(l *Limiter) { l.sleepFn = sleep } }

// New returns a Limiter persisted at path.
func New(path string, enabled bool, perHour int, restartOnSleep bool, opts ...Option) *Limiter {
	l := &Limiter{
		path:           path,
		enabled:        enabled,
		perHour:        perHour,
		restartOnSleep: restartOnSleep,
		sleepFn:        time.Sleep,
		nowFn:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result reports what Acquire did, so the caller (the main loop) can decide
// whether to restart the current iteration (spec.md §4.4: "Optionally the
// iteration may be restarted if a sleep occurred").
type Result struct {
	Slept           bool
	SleptSeconds    int
	ShouldRestart   bool
	Window          Window
}

// Acquire runs one call through the limiter: reset-if-expired, sleep-if-at-
// limit, increment, persist.
func (l *Limiter) Acquire() (Result, error) {
	if !l.enabled {
		return Result{}, nil
	}

	w, err := l.load()
	if err != nil {
		return Result{}, err
	}

	now := l.nowFn()
	nowEpoch := now.Unix()

	if w.WindowStartEpoch == 0 || nowEpoch-w.WindowStartEpoch >= int64(windowDuration.Seconds()) {
		w = Window{WindowStartEpoch: nowEpoch}
	}

	res := Result{Window: w}

	if l.perHour > 0 && w.Count >= l.perHour {
		windowEnd := w.WindowStartEpoch + int64(windowDuration.Seconds())
		sleepSecs := int(windowEnd-nowEpoch) + 2
		if sleepSecs < 2 {
			sleepSecs = 2
		}
		l.sleepFn(time.Duration(sleepSecs) * time.Second)

		w = Window{WindowStartEpoch: l.nowFn().Unix(), LastSleepSeconds: sleepSecs}
		res.Slept = true
		res.SleptSeconds = sleepSecs
		res.ShouldRestart = l.restartOnSleep
	}

	w.Count++
	res.Window = w
	if err := l.save(w); err != nil {
		return res, err
	}
	return res, nil
}

func (l *Limiter) load() (Window, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Window{}, nil
		}
		return Window{}, fmt.Errorf("ratelimit: read %s: %w", l.path, err)
	}
	var w Window
	if err := json.Unmarshal(data, &w); err != nil {
		return Window{}, nil
	}
	return w, nil
}

func (l *Limiter) save(w Window) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ratelimit: ensure dir: %w", err)
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("ratelimit: marshal: %w", err)
	}
	data = append(data, '\n')
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ratelimit: write temp: %w", err)
	}
	return os.Rename(tmp, l.path)
}
