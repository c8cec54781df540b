package gate

import (
	"testing"

	"github.com/ralphctl/ralph/internal/agent"
	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/prd"
)

func baseContext() Context {
	cfg := config.Default()
	return Context{
		Cfg:                cfg,
		Story:              prd.Story{ID: "S1-001", Scope: prd.Scope{Touch: []string{"pkg/**"}}},
		PRDPath:            "prd.json",
		ProgressLogPath:    "progress.md",
		PRDBeforeFingerprint: "fp",
		PRDAfterFingerprint:  "fp",
		WorktreeClean:      true,
		RunVerifyPost: func(mode string) (VerifyPostResult, error) {
			return VerifyPostResult{Passed: true, ReturnCode: 0}, nil
		},
		RunContractReview: func(Context) (ContractJudgment, error) {
			j := ContractJudgment{Decision: DecisionPass}
			return j, nil
		},
		ProgressLogBeforePrefix: sha256Hex(nil),
		ProgressLogAfter: []byte(validProgressAppend("S1-001")),
	}
}

func validProgressAppend(storyID string) string {
	return "Summary: did the thing\nCommands: go test ./...\nEvidence: tests pass, see CI\nNext: follow up on edge cases\nStory: " + storyID + " 2026-07-31\n" +
		"padding padding padding padding padding padding padding padding padding padding padding padding padding padding"
}

func TestRunHappyPath(t *testing.T) {
	ctx := baseContext()
	res := Run(ctx)
	if res.Block != nil {
		t.Fatalf("expected no block, got %+v", res.Block)
	}
}

func TestGatePassStabilityBlocks(t *testing.T) {
	ctx := baseContext()
	ctx.PRDAfterFingerprint = "changed"
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonAgentPassFlip {
		t.Fatalf("expected agent_pass_flip, got %+v", res.Block)
	}
	if len(res.Skipped) == 0 {
		t.Fatal("expected remaining gates recorded as skipped")
	}
}

func TestGatePRDEditPolicyBlocksWithoutFlag(t *testing.T) {
	ctx := baseContext()
	ctx.PRDBeforeHash = "a"
	ctx.PRDAfterHash = "b"
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonAgentPRDEdit {
		t.Fatalf("expected agent_prd_edit, got %+v", res.Block)
	}
}

func TestGatePRDEditPolicyAllowsWithFlag(t *testing.T) {
	ctx := baseContext()
	ctx.Cfg.Gates.AgentMayEditPRD = true
	ctx.PRDBeforeHash = "a"
	ctx.PRDAfterHash = "b"
	res := Run(ctx)
	if res.Block != nil {
		t.Fatalf("expected no block with agent_may_edit_prd, got %+v", res.Block)
	}
}

func TestGateWorktreeCleanBlocks(t *testing.T) {
	ctx := baseContext()
	ctx.WorktreeClean = false
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonDirtyWorktree {
		t.Fatalf("expected dirty_worktree, got %+v", res.Block)
	}
}

func TestGateDiffSizeBlocks(t *testing.T) {
	ctx := baseContext()
	ctx.Cfg.Gates.DiffCeiling = 10
	ctx.DiffStat = gitutil.DiffStat{Insertions: 20}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonDiffTooLarge {
		t.Fatalf("expected diff_too_large, got %+v", res.Block)
	}
}

func TestGateScopeBlocksOutOfScopeFile(t *testing.T) {
	ctx := baseContext()
	ctx.ChangedFiles = []string{"other/unrelated.go"}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonScopeViolation {
		t.Fatalf("expected scope_violation, got %+v", res.Block)
	}
}

func TestGateScopeAllowsTouchPattern(t *testing.T) {
	ctx := baseContext()
	ctx.ChangedFiles = []string{"pkg/foo.go"}
	res := Run(ctx)
	if res.Block != nil {
		t.Fatalf("expected no block, got %+v", res.Block)
	}
}

func TestGateCheatDetectsTestDeletion(t *testing.T) {
	ctx := baseContext()
	ctx.ChangedFiles = []string{"pkg/foo_test.go"}
	ctx.DiffLines = []DiffLine{{File: "pkg/foo_test.go", Removed: true, Text: "func TestFoo(t *testing.T) {}"}}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonCheatingDetected {
		t.Fatalf("expected cheating_detected, got %+v", res.Block)
	}
}

func TestGateCheatOffSkipsDetection(t *testing.T) {
	ctx := baseContext()
	ctx.Cfg.Gates.CheatDetection = "off"
	ctx.ChangedFiles = []string{"pkg/foo_test.go"}
	ctx.DiffLines = []DiffLine{{File: "pkg/foo_test.go", Removed: true, Text: "assert.True(t, ok)"}}
	res := Run(ctx)
	if res.Block != nil {
		t.Fatalf("expected no block when cheat detection off, got %+v", res.Block)
	}
}

func TestGatePassTouchBlocksWhenNoTouchAndAllMeta(t *testing.T) {
	ctx := baseContext()
	ctx.AgentOutcome = agent.Outcome{MarkPass: "S1-001"}
	ctx.ChangedFiles = []string{"prd.json", "progress.md"}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonPassFlipNoTouch {
		t.Fatalf("expected pass_flip_no_touch, got %+v", res.Block)
	}
}

func TestGatePassTouchAllowsNonMetaChange(t *testing.T) {
	ctx := baseContext()
	ctx.AgentOutcome = agent.Outcome{MarkPass: "S1-001"}
	ctx.ChangedFiles = []string{"pkg/foo.go"}
	res := Run(ctx)
	if res.Block != nil {
		t.Fatalf("expected no block, got %+v", res.Block)
	}
}

func TestGateVerifyPostBlocksOnFailure(t *testing.T) {
	ctx := baseContext()
	ctx.RunVerifyPost = func(mode string) (VerifyPostResult, error) {
		return VerifyPostResult{Passed: false, ReturnCode: 1}, nil
	}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonVerifyPostFailed {
		t.Fatalf("expected verify_post_failed, got %+v", res.Block)
	}
}

func TestGateStoryVerifyDisallowedCommand(t *testing.T) {
	ctx := baseContext()
	ctx.Story.Verify = []string{"make extra-check"}
	ctx.StoryVerifyAllowlist = map[string]bool{}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonStoryVerifyDisallowed {
		t.Fatalf("expected story_verify_disallowed, got %+v", res.Block)
	}
}

func TestGateStoryVerifySkippedWhenNoCommands(t *testing.T) {
	ctx := baseContext()
	res := Run(ctx)
	found := false
	for _, s := range res.Skipped {
		if s.Name == "story_verify" && s.Reason == "no_story_verify_commands" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected story_verify skipped with no_story_verify_commands, got %+v", res.Skipped)
	}
}

func TestGateContractReviewBlocksOnFail(t *testing.T) {
	ctx := baseContext()
	ctx.RunContractReview = func(Context) (ContractJudgment, error) {
		return ContractJudgment{Decision: DecisionFail}, nil
	}
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonContractReviewFailed {
		t.Fatalf("expected contract_review_failed, got %+v", res.Block)
	}
}

func TestGateProgressLogBlocksOnShortAppend(t *testing.T) {
	ctx := baseContext()
	ctx.ProgressLogAfter = []byte("Summary: x\n")
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonProgressLogInvalid {
		t.Fatalf("expected progress_log_invalid, got %+v", res.Block)
	}
}

func TestGateProgressLogBlocksOnMutatedPrefix(t *testing.T) {
	ctx := baseContext()
	ctx.ProgressLogBeforeSize = 5
	ctx.ProgressLogBeforePrefix = sha256Hex([]byte("AAAAA"))
	res := Run(ctx)
	if res.Block == nil || res.Block.Reason != ReasonProgressLogInvalid {
		t.Fatalf("expected progress_log_invalid for mutated prefix, got %+v", res.Block)
	}
}
