package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/prd"
)

// runAgentSelection invokes the configured agent with a prompt describing
// the eligible candidates and returns its raw stdout. selector.Select does
// its own <selected_id> sentinel parsing on the result, so this must not
// pre-parse the ID itself.
func runAgentSelection(cfg *config.Config, candidates []prd.Story) (string, error) {
	var b strings.Builder
	b.WriteString("Select the next story to work on from this list of eligible candidates.\n")
	b.WriteString("Respond with exactly one line: <selected_id>STORY_ID</selected_id>\n\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s: %s (priority %d)\n", c.ID, c.Description, c.Priority)
	}

	timeout := time.Duration(cfg.Timeouts.AgentSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := append([]string{}, cfg.Agent.Args...)
	if cfg.Agent.PromptFlag != "" {
		args = append(args, cfg.Agent.PromptFlag, b.String())
	} else {
		args = append(args, b.String())
	}

	cmd := exec.CommandContext(ctx, cfg.Agent.Command, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("agent selection timed out after %s", timeout)
		}
		return "", fmt.Errorf("agent selection: %w: %s", err, errOut.String())
	}
	return out.String(), nil
}

// runContractReviewCommand invokes the configured external contract
// reviewer, feeding it the iteration's story ID and changed-file list as
// JSON on stdin and decoding its stdout as a ContractJudgment. A nonzero
// exit or malformed JSON is returned as an error, which the caller
// (gateContractReview) turns into a contract_review_failed block.
func runContractReviewCommand(gctx gate.Context, repoRoot, command string, timeout time.Duration) (gate.ContractJudgment, error) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	input, err := json.Marshal(struct {
		StoryID      string   `json:"story_id"`
		ChangedFiles []string `json:"changed_files"`
		ContractRefs []string `json:"contract_refs"`
	}{
		StoryID:      gctx.Story.ID,
		ChangedFiles: gctx.ChangedFiles,
		ContractRefs: gctx.Story.Scope.Touch,
	})
	if err != nil {
		return gate.ContractJudgment{}, err
	}

	cmd := exec.CommandContext(ctx, command)
	cmd.Dir = repoRoot
	cmd.Stdin = bytes.NewReader(input)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return gate.ContractJudgment{}, fmt.Errorf("contract review timed out after %s", timeout)
		}
		return gate.ContractJudgment{}, fmt.Errorf("contract review: %w: %s", err, errOut.String())
	}

	var judgment gate.ContractJudgment
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &judgment); err != nil {
		return gate.ContractJudgment{}, fmt.Errorf("contract review produced invalid JSON: %w", err)
	}
	return judgment, nil
}
