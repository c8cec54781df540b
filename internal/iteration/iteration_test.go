package iteration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/prd"
)

func TestCreateWritesUnderStateDir(t *testing.T) {
	stateDir := t.TempDir()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	dir, err := Create(stateDir, 3, now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dir.Index != 3 {
		t.Fatalf("expected index 3, got %d", dir.Index)
	}
	if filepath.Dir(dir.Path) != stateDir {
		t.Fatalf("expected iteration dir under %s, got %s", stateDir, dir.Path)
	}
	if info, err := os.Stat(dir.Path); err != nil || !info.IsDir() {
		t.Fatalf("expected iteration directory to exist: %v", err)
	}
}

func TestWriteArtifacts(t *testing.T) {
	stateDir := t.TempDir()
	dir, err := Create(stateDir, 1, time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := dir.WritePRDBefore([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("WritePRDBefore: %v", err)
	}
	if err := dir.WritePRDAfter([]byte(`{"a":2}`)); err != nil {
		t.Fatalf("WritePRDAfter: %v", err)
	}
	if err := dir.WriteHeadCommits("abc123", "def456"); err != nil {
		t.Fatalf("WriteHeadCommits: %v", err)
	}
	if err := dir.WriteDiff("--- a\n+++ b\n"); err != nil {
		t.Fatalf("WriteDiff: %v", err)
	}
	if err := dir.WritePrompt("do the thing"); err != nil {
		t.Fatalf("WritePrompt: %v", err)
	}
	if err := dir.WriteAgentOutput("out", "err"); err != nil {
		t.Fatalf("WriteAgentOutput: %v", err)
	}
	if err := dir.WriteSelection(SelectionRecord{ID: "S1-001", DependencyAnalysis: []prd.CandidateAnalysis{{StoryID: "S1-001", Eligible: true}}}); err != nil {
		t.Fatalf("WriteSelection: %v", err)
	}
	if err := dir.WriteSelectedStory(prd.Story{ID: "S1-001"}); err != nil {
		t.Fatalf("WriteSelectedStory: %v", err)
	}
	if err := dir.WriteContractReview(gate.ContractJudgment{Decision: gate.DecisionPass}); err != nil {
		t.Fatalf("WriteContractReview: %v", err)
	}
	if err := dir.WriteGateResult(gate.Result{Skipped: []gate.SkippedCheck{{Name: "cheat", Reason: "off"}}}); err != nil {
		t.Fatalf("WriteGateResult: %v", err)
	}

	for _, name := range []string{
		"prd_before.json", "prd_after.json", "head_commits.json", "diff.patch",
		"prompt.txt", "agent_stdout.log", "agent_stderr.log", "selection.json",
		"selected_story.json", "contract_review.json", "gate_result.json",
	} {
		if _, err := os.Stat(filepath.Join(dir.Path, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}
