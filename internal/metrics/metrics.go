// Package metrics appends one JSON event per iteration outcome to a
// durable JSONL log (spec.md §4.11 "A separate append-only structured
// event log records each iteration"). Grounded on internal/state's
// atomic-write idiom for the mutable parts of harness state, but an event
// log is append-only by nature so writes here use O_APPEND rather than
// temp-then-rename.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Outcome is the iteration result category (spec.md §4.11).
type Outcome string

const (
	OutcomePass           Outcome = "pass"
	OutcomeFail           Outcome = "fail"
	OutcomeVerifyPreFail  Outcome = "verify_pre_fail"
	OutcomeVerifyPostFail Outcome = "verify_post_fail"
	OutcomeBlock          Outcome = "block"

	// OutcomeSelfHeal records an iteration that failed verify-post, was
	// rolled back to the last good commit, and continued rather than
	// blocking because the re-run verify-post passed.
	OutcomeSelfHeal Outcome = "self_heal"
)

// Event is one line of the metrics JSONL (spec.md §4.11: "wall timestamp,
// iteration index, story id, outcome, verify return code, wall duration,
// diff line count, any cheat signals, block reason").
type Event struct {
	Timestamp     string   `json:"timestamp"`
	IterationIndex int     `json:"iteration_index"`
	StoryID       string   `json:"story_id,omitempty"`
	Outcome       Outcome  `json:"outcome"`
	VerifyReturnCode int   `json:"verify_return_code"`
	WallDurationMs int64   `json:"wall_duration_ms"`
	DiffLines     int      `json:"diff_lines"`
	CheatSignals  []string `json:"cheat_signals,omitempty"`
	BlockReason   string   `json:"block_reason,omitempty"`
}

// Sink appends events to a single JSONL file.
type Sink struct {
	path string
}

// NewSink returns a Sink for the JSONL file at path; the file is created by
// the first Append.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Append writes one event as a single JSON line, creating the file and any
// necessary truncation-free append handle per call (spec.md "append-only").
func (s *Sink) Append(e Event) error {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal metrics event: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics sink: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append metrics event: %w", err)
	}
	return nil
}

// ReadAll loads every event in the log, in append order. Malformed trailing
// lines (e.g. from a crash mid-write) are skipped rather than erroring the
// whole read, since the log's own self-heal is "append only, never repair".
func ReadAll(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var e Event
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			events = append(events, e)
		}
	}
	return events, nil
}
