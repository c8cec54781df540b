// Package gate implements the ordered post-agent Gate Pipeline (spec.md
// §4.8): tamper → scope → cheat → test-co-change → pass-touch →
// verify-post → story-verify → contract-review → progress-log, run
// strictly in numeric order with a failure short-circuiting the remainder
// (spec.md §5 "Ordering guarantee").
//
// Grounded on the teacher's check-table pattern in cmd/ao/doctor.go
// (ordered checks, each returning a status) generalized from "pass/warn/
// fail" to "continue or typed block" (spec.md §9 "Exceptions → typed
// results").
package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ralphctl/ralph/internal/agent"
	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/prd"
)

// Reason enumerates the work-integrity / tamper / control block codes from
// spec.md §7 that this package can emit.
type Reason string

const (
	ReasonAgentPassFlip          Reason = "agent_pass_flip"
	ReasonAgentPRDEdit           Reason = "agent_prd_edit"
	ReasonVerifySHModified       Reason = "verify_sh_modified"
	ReasonHarnessFileModified    Reason = "harness_file_modified"
	ReasonDirtyWorktree          Reason = "dirty_worktree"
	ReasonDiffTooLarge           Reason = "diff_too_large"
	ReasonScopeViolation         Reason = "scope_violation"
	ReasonCheatingDetected       Reason = "cheating_detected"
	ReasonNoTestChanges          Reason = "no_test_changes"
	ReasonPassFlipNoTouch        Reason = "pass_flip_no_touch"
	ReasonVerifyPostFailed       Reason = "verify_post_failed"
	ReasonStoryVerifyDisallowed  Reason = "story_verify_disallowed"
	ReasonContractReviewFailed  Reason = "contract_review_failed"
	ReasonProgressLogInvalid    Reason = "progress_log_invalid"
)

// SkippedCheck records a gate that did not run, and why, per spec.md §5:
// "skips subsequent gates by recording a skipped_checks entry with the
// reason".
type SkippedCheck struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Block is the typed result of a failing gate.
type Block struct {
	Reason Reason
	Detail string
}

func (b *Block) Error() string { return fmt.Sprintf("gate: %s: %s", b.Reason, b.Detail) }

// Context carries everything the pipeline's gates need, per spec.md §9
// "Globals become explicit state... the many ambient variables... become
// fields of an IterationContext value threaded through gates."
type Context struct {
	RepoRoot string
	StateDir string

	Cfg   *config.Config
	Story prd.Story

	PRDPath           string
	PRDBeforeFingerprint string
	PRDAfterFingerprint  string
	PRDBeforeHash        string
	PRDAfterHash         string

	ChangedFiles []string
	DiffStat     gitutil.DiffStat
	DiffLines    []DiffLine
	WorktreeClean bool

	AgentOutcome agent.Outcome

	VerifierPath  string
	HarnessPaths  []string // harness-internal files; edits require override flags
	CIWorkflowGlobs []string

	ProgressLogPath           string
	ProgressLogBeforePrefix   string // sha256 hex of the pre-iteration file bytes
	ProgressLogBeforeSize     int64
	ProgressLogAfter          []byte

	StandardVerifyCommand string
	StoryVerifyAllowlist  map[string]bool

	RunContractReview func(Context) (ContractJudgment, error)
	RunVerifyPost     func(Mode string) (VerifyPostResult, error)
	RunStoryVerify    func(command string) error
}

// VerifyPostResult is the subset of verify.Result the pass-touch/verify-post
// gates need, kept decoupled from internal/verify's concrete type so gate
// doesn't import it merely for a struct shape.
type VerifyPostResult struct {
	ReturnCode int
	Passed     bool
	LogPath    string
}

// Mode mirrors verify.Mode as a plain string to avoid an import cycle risk
// if verify ever needs gate-level types in the future.
type Mode = string

// Result is the pipeline's overall outcome.
type Result struct {
	Block   *Block
	Skipped []SkippedCheck
}

// Run executes the thirteen gates in order, short-circuiting on the first
// block (spec.md §5).
func Run(ctx Context) Result {
	var res Result

	checks := []func(Context) (*Block, *SkippedCheck){
		gatePassStability,
		gatePRDEditPolicy,
		gateVerifierFileIntegrity,
		gateWorktreeClean,
		gateDiffSize,
		gateScope,
		gateCheat,
		gateTestCoChange,
		gatePassTouch,
		gateVerifyPost,
		gateStoryVerify,
		gateContractReview,
		gateProgressLog,
	}
	names := []string{
		"pass_stability", "prd_edit_policy", "verifier_file_integrity", "worktree_clean",
		"diff_size", "scope", "cheat", "test_co_change", "pass_touch", "verify_post",
		"story_verify", "contract_review", "progress_log",
	}

	for i, check := range checks {
		block, skipped := check(ctx)
		if block != nil {
			res.Block = block
			for _, name := range names[i+1:] {
				res.Skipped = append(res.Skipped, SkippedCheck{Name: name, Reason: "short_circuited_by_" + string(block.Reason)})
			}
			return res
		}
		if skipped != nil {
			res.Skipped = append(res.Skipped, *skipped)
		}
	}
	return res
}

// gatePassStability is gate 1: the PRD passes vector must be byte-identical
// before and after the agent (spec.md §4.8/1).
func gatePassStability(ctx Context) (*Block, *SkippedCheck) {
	if ctx.PRDBeforeFingerprint != ctx.PRDAfterFingerprint {
		return &Block{Reason: ReasonAgentPassFlip, Detail: "PRD passes vector changed during agent execution"}, nil
	}
	return nil, nil
}

// gatePRDEditPolicy is gate 2: PRD hash unchanged unless agent-may-edit-PRD
// is set (spec.md §4.8/2).
func gatePRDEditPolicy(ctx Context) (*Block, *SkippedCheck) {
	if ctx.PRDBeforeHash == ctx.PRDAfterHash {
		return nil, nil
	}
	if ctx.Cfg != nil && ctx.Cfg.Gates.AgentMayEditPRD {
		return nil, nil
	}
	return &Block{Reason: ReasonAgentPRDEdit, Detail: "PRD bytes changed and agent_may_edit_prd is not set"}, nil
}

// gateVerifierFileIntegrity is gate 3 (spec.md §4.8/3).
func gateVerifierFileIntegrity(ctx Context) (*Block, *SkippedCheck) {
	for _, f := range ctx.ChangedFiles {
		if ctx.VerifierPath != "" && f == ctx.VerifierPath && !(ctx.Cfg != nil && ctx.Cfg.Gates.AllowVerifierEdits) {
			return &Block{Reason: ReasonVerifySHModified, Detail: f}, nil
		}
		for _, hp := range ctx.HarnessPaths {
			if f == hp && !(ctx.Cfg != nil && ctx.Cfg.Gates.AllowHarnessFileEdits) {
				return &Block{Reason: ReasonHarnessFileModified, Detail: f}, nil
			}
		}
	}
	return nil, nil
}

// gateWorktreeClean is gate 4 (spec.md §4.8/4). The caller populates
// ctx.WorktreeClean from `git status --porcelain` (internal/gitutil.IsClean)
// before invoking Run, since that call needs a timeout/context the pure
// gate functions don't carry.
func gateWorktreeClean(ctx Context) (*Block, *SkippedCheck) {
	if ctx.WorktreeClean {
		return nil, nil
	}
	return &Block{Reason: ReasonDirtyWorktree, Detail: "git status --porcelain is non-empty after the agent run"}, nil
}

// gateDiffSize is gate 5 (spec.md §4.8/5).
func gateDiffSize(ctx Context) (*Block, *SkippedCheck) {
	ceiling := 0
	if ctx.Cfg != nil {
		ceiling = ctx.Cfg.Gates.DiffCeiling
	}
	if ceiling <= 0 {
		return nil, nil
	}
	if ctx.DiffStat.Total() > ceiling {
		return &Block{Reason: ReasonDiffTooLarge, Detail: fmt.Sprintf("%d lines changed exceeds ceiling %d", ctx.DiffStat.Total(), ceiling)}, nil
	}
	return nil, nil
}

// gateScope is gate 6 (spec.md §4.8/6): each changed file must match at
// least one scope.touch/create pattern and none of scope.avoid.
// Harness-internal paths and PRD/progress are ignored.
func gateScope(ctx Context) (*Block, *SkippedCheck) {
	ignored := map[string]bool{ctx.PRDPath: true, ctx.ProgressLogPath: true}
	for _, hp := range ctx.HarnessPaths {
		ignored[hp] = true
	}

	for _, f := range ctx.ChangedFiles {
		if ignored[f] {
			continue
		}
		if matchesAny(ctx.Story.Scope.Avoid, f) {
			return &Block{Reason: ReasonScopeViolation, Detail: fmt.Sprintf("%s matches a forbidden (avoid) pattern", f)}, nil
		}
		if !matchesAny(ctx.Story.Scope.Touch, f) && !matchesAny(ctx.Story.Scope.Create, f) {
			return &Block{Reason: ReasonScopeViolation, Detail: fmt.Sprintf("%s matches neither scope.touch nor scope.create", f)}, nil
		}
	}
	return nil, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// sha256Hex returns the hex SHA-256 of data; the progress-log gate compares
// it against the pre-iteration prefix hash.
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
