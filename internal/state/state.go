// Package state implements the harness's durable JSON state object
// (spec.md §3 "Harness State", §4.3 "State Store"): iteration counters,
// streaks, last-verify records, and cumulative metrics, merged via
// read-modify-write and protected during agent execution by revoking the
// file's write permission.
//
// Grounded on the teacher's supervisorLeaseMetadata persistence
// (cmd/ao/rpi_loop_supervisor.go writeMetadata: truncate+seek+write+sync a
// JSON file in place) and internal/config's layered load/merge shape.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// VerifyRecord captures one verify invocation's outcome (spec.md §3:
// "last verify-pre/post return codes with log paths, hashes, timestamps,
// and verify mode recorded").
type VerifyRecord struct {
	Mode      string    `json:"mode"`
	ReturnCode int      `json:"return_code"`
	LogPath   string    `json:"log_path"`
	ShaLine   string    `json:"verify_sh_sha,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RateLimitWindow mirrors internal/ratelimit's persisted window record,
// duplicated into harness state for observability (spec.md §4.4: "State
// merged into harness state for observability").
type RateLimitWindow struct {
	Limit            int   `json:"limit"`
	Count            int   `json:"count"`
	WindowStartEpoch int64 `json:"window_start_epoch"`
	LastSleepSeconds int   `json:"last_sleep_seconds,omitempty"`
}

// Metrics is the cumulative counters block (spec.md §3: "cumulative metrics
// counters (totals, passes, failures by category, unique failure modes)").
type Metrics struct {
	TotalIterations  int            `json:"total_iterations"`
	Passes           int            `json:"passes"`
	FailuresByReason map[string]int `json:"failures_by_reason"`
	UniqueFailureModes int          `json:"unique_failure_modes"`
}

// SelectedStory is a compact record of the current iteration's chosen story.
type SelectedStory struct {
	ID       string `json:"id"`
	Slice    int    `json:"slice"`
	Priority int    `json:"priority"`
}

// State is the full harness state object (spec.md §3 "Harness State").
type State struct {
	IterationIndex   int             `json:"iteration_index"`
	ActiveSlice      int             `json:"active_slice"`
	SelectionMode    string          `json:"selection_mode"`
	LastIterationDir string          `json:"last_iteration_dir,omitempty"`
	LastGoodCommit   string          `json:"last_good_commit,omitempty"`
	AgentCommand     string          `json:"agent_command,omitempty"`
	AgentModel       string          `json:"agent_model,omitempty"`

	LastVerifyPre  *VerifyRecord `json:"last_verify_pre,omitempty"`
	LastVerifyPost *VerifyRecord `json:"last_verify_post,omitempty"`

	LastFailureSignature string `json:"last_failure_signature,omitempty"`
	SameFailureStreak    int    `json:"same_failure_streak"`
	NoProgressStreak     int    `json:"no_progress_streak"`

	RateLimit     RateLimitWindow `json:"rate_limit"`
	SelectedStory *SelectedStory  `json:"selected_story,omitempty"`
	Metrics       Metrics         `json:"metrics"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Empty returns a zero-value state with initialized maps, matching what
// Preflight resets the state file to when it isn't valid JSON (spec.md
// §4.2: "state file is valid JSON (reset to {} otherwise)").
func Empty() *State {
	return &State{
		Metrics: Metrics{FailuresByReason: map[string]int{}},
	}
}

// Store owns read-modify-write access to the state file at path.
type Store struct {
	path string
}

// New returns a Store bound to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the state file. A missing or invalid file yields Empty() and
// no error, per the preflight "reset to {}" rule; the distinction between
// "never existed" and "corrupt" is not load-bearing for the harness, which
// always wants to proceed with a usable state object.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return Empty(), nil
	}
	if st.Metrics.FailuresByReason == nil {
		st.Metrics.FailuresByReason = map[string]int{}
	}
	return &st, nil
}

// Save atomically rewrites the state file (write-to-temp, rename).
func (s *Store) Save(st *State) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("state: ensure dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state: rename temp: %w", err)
	}
	return nil
}

// Merge loads the current state, applies patch (a function mutating the
// loaded state in place), and saves the result — the "merge(patch)
// atomically rewrites the file with the patch applied" API of spec.md
// §4.3.
func (s *Store) Merge(patch func(*State)) (*State, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	patch(st)
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// RecordFailure updates the same-failure circuit breaker fields: if
// signature matches the previously recorded one the streak increments,
// otherwise it resets to 1 (spec.md §4.9 "Same-failure breaker").
func (st *State) RecordFailure(signature string) {
	if st.LastFailureSignature != "" && st.LastFailureSignature == signature {
		st.SameFailureStreak++
	} else {
		st.SameFailureStreak = 1
	}
	st.LastFailureSignature = signature
}

// RecordProgress updates the no-progress breaker: progressed=true resets
// the streak to zero, false increments it (spec.md §4.9 "No-progress
// breaker").
func (st *State) RecordProgress(progressed bool) {
	if progressed {
		st.NoProgressStreak = 0
		return
	}
	st.NoProgressStreak++
}

// RecordOutcome increments the cumulative metrics counters for one
// iteration outcome (spec.md §3 Metrics).
func (st *State) RecordOutcome(pass bool, reason string) {
	st.Metrics.TotalIterations++
	if pass {
		st.Metrics.Passes++
		return
	}
	if reason == "" {
		return
	}
	if st.Metrics.FailuresByReason == nil {
		st.Metrics.FailuresByReason = map[string]int{}
	}
	if st.Metrics.FailuresByReason[reason] == 0 {
		st.Metrics.UniqueFailureModes++
	}
	st.Metrics.FailuresByReason[reason]++
}

// Protect revokes write permission on the state file (and PRD file, via a
// separate call) for the duration of agent execution (spec.md §4.3
// "Concurrency"). A missing file is not an error: nothing to protect yet.
func Protect(path string) error {
	return chmodIfExists(path, 0o444)
}

// Unprotect restores write permission, called on every exit path of the
// protecting function (spec.md §4.7 "On exit: restore write permissions").
func Unprotect(path string) error {
	return chmodIfExists(path, 0o644)
}

func chmodIfExists(path string, mode os.FileMode) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("state: stat %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("state: chmod %s: %w", path, err)
	}
	return nil
}
