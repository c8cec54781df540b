// Package iteration creates and populates the per-iteration artifact
// directory (spec.md §3 "Iteration Record"): a snapshot of everything that
// happened during one pass of the loop, written once and never mutated
// afterward. Grounded on internal/gitutil's worktree-per-run naming
// (iter_<n>_<timestamp>, echoing CreateWorktree's run-id-suffixed branch
// names) and google/uuid for the per-iteration correlation id referenced
// by the selection and contract-review records.
package iteration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/prd"
)

// SelectionRecord captures the selector's decision for the record (spec.md
// §3: "selection record (chosen id + dependency analysis)").
type SelectionRecord struct {
	ID                 string                 `json:"id,omitempty"`
	Blocked            bool                   `json:"blocked"`
	BlockReason        string                 `json:"block_reason,omitempty"`
	BlockDetail        string                 `json:"block_detail,omitempty"`
	DependencyAnalysis []prd.CandidateAnalysis `json:"dependency_analysis,omitempty"`
}

// Dir is a single iteration's on-disk artifact directory, rooted at
// <stateDir>/iter_<n>_<timestamp>_<uuid8>/ (spec.md §3 "Persisted state
// layout").
type Dir struct {
	Path  string
	Index int
	ID    string
}

// Create makes a fresh iteration directory under stateDir. The directory
// name embeds the iteration index, a UTC timestamp, and the first 8
// characters of a random UUID so iterations never collide even across
// clock skew or rapid restarts.
func Create(stateDir string, index int, now time.Time) (Dir, error) {
	id := uuid.NewString()
	name := fmt.Sprintf("iter_%d_%s_%s", index, now.UTC().Format("20060102T150405Z"), id[:8])
	path := filepath.Join(stateDir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Dir{}, fmt.Errorf("create iteration directory: %w", err)
	}
	return Dir{Path: path, Index: index, ID: id}, nil
}

func (d Dir) join(name string) string { return filepath.Join(d.Path, name) }

// WritePRDBefore / WritePRDAfter snapshot the PRD document's raw bytes.
func (d Dir) WritePRDBefore(data []byte) error { return os.WriteFile(d.join("prd_before.json"), data, 0o644) }
func (d Dir) WritePRDAfter(data []byte) error  { return os.WriteFile(d.join("prd_after.json"), data, 0o644) }

// WriteProgressLogTailBefore / WriteProgressLogTailAfter record the
// progress-log tail (spec.md §3 "progress-log tails before/after").
func (d Dir) WriteProgressLogTailBefore(tail string) error {
	return os.WriteFile(d.join("progress_log_tail_before.txt"), []byte(tail), 0o644)
}
func (d Dir) WriteProgressLogTailAfter(tail string) error {
	return os.WriteFile(d.join("progress_log_tail_after.txt"), []byte(tail), 0o644)
}

// WriteHeadCommits records the HEAD commit hashes before/after the agent.
func (d Dir) WriteHeadCommits(before, after string) error {
	return os.WriteFile(d.join("head_commits.json"), mustJSON(map[string]string{"before": before, "after": after}), 0o644)
}

// WriteDiff stores the unified diff produced during the iteration.
func (d Dir) WriteDiff(diff string) error { return os.WriteFile(d.join("diff.patch"), []byte(diff), 0o644) }

// WritePrompt stores the rendered prompt sent to the agent.
func (d Dir) WritePrompt(prompt string) error { return os.WriteFile(d.join("prompt.txt"), []byte(prompt), 0o644) }

// WriteAgentOutput stores the agent's stdout/stderr.
func (d Dir) WriteAgentOutput(stdout, stderr string) error {
	if err := os.WriteFile(d.join("agent_stdout.log"), []byte(stdout), 0o644); err != nil {
		return err
	}
	return os.WriteFile(d.join("agent_stderr.log"), []byte(stderr), 0o644)
}

// CopyLog copies an already-produced log file (verify-pre/post/story-verify/
// final-verify) into the iteration directory under name.
func (d Dir) CopyLog(name string, data []byte) error { return os.WriteFile(d.join(name), data, 0o644) }

// WriteSelection records the selector's decision.
func (d Dir) WriteSelection(rec SelectionRecord) error {
	return os.WriteFile(d.join("selection.json"), mustJSON(rec), 0o644)
}

// WriteSelectedStory snapshots the chosen story's JSON.
func (d Dir) WriteSelectedStory(s prd.Story) error {
	return os.WriteFile(d.join("selected_story.json"), mustJSON(s), 0o644)
}

// WriteContractReview stores the contract reviewer's judgment JSON.
func (d Dir) WriteContractReview(j gate.ContractJudgment) error {
	return os.WriteFile(d.join("contract_review.json"), mustJSON(j), 0o644)
}

// WriteGateResult stores the gate pipeline's block/skipped-checks outcome.
func (d Dir) WriteGateResult(r gate.Result) error {
	type skipped struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	}
	out := struct {
		Blocked       bool      `json:"blocked"`
		Reason        string    `json:"reason,omitempty"`
		Detail        string    `json:"detail,omitempty"`
		SkippedChecks []skipped `json:"skipped_checks,omitempty"`
	}{}
	if r.Block != nil {
		out.Blocked = true
		out.Reason = string(r.Block.Reason)
		out.Detail = r.Block.Detail
	}
	for _, s := range r.Skipped {
		out.SkippedChecks = append(out.SkippedChecks, skipped{Name: s.Name, Reason: s.Reason})
	}
	return os.WriteFile(d.join("gate_result.json"), mustJSON(out), 0o644)
}

func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	return data
}
