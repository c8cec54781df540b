package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/harness"
	"github.com/ralphctl/ralph/internal/prd"
)

var (
	runPRDPath           string
	runProgressLogPath   string
	runHarnessScriptPath string
	runWorkflowScriptDir string
	runUpdateTaskCmd     string
	runContractReviewCmd string
	runWorktree          bool
)

var runCmd = &cobra.Command{
	Use:   "run [max-iterations]",
	Short: "Run the main iteration loop",
	Long: `Acquire the run lock, execute preflight, then drive up to
max-iterations passes of select -> verify-pre -> agent -> gates -> land,
stopping early on completion or a block.

Examples:
  ralph run 20
  ralph run --profile=promote 5
  ralph run --dry-run 1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPRDPath, "prd", "prd.json", "PRD file path")
	runCmd.Flags().StringVar(&runProgressLogPath, "progress-log", "progress.md", "progress log file path")
	runCmd.Flags().StringVar(&runHarnessScriptPath, "harness-script", "ralph.sh", "harness entrypoint script path, hashed for tamper detection")
	runCmd.Flags().StringVar(&runWorkflowScriptDir, "workflow-scripts", ".ralph/workflows", "workflow scripts directory, hashed for tamper detection")
	runCmd.Flags().StringVar(&runUpdateTaskCmd, "update-task-command", "", "optional external command invoked as '<cmd> <story-id> pass|fail' when a pass-mark lands")
	runCmd.Flags().StringVar(&runContractReviewCmd, "contract-review-command", "", "external command invoked to judge contract compliance; when empty, the contract-review gate blocks every iteration with contract_review_failed")
	runCmd.Flags().BoolVar(&runWorktree, "worktree", false, "isolate each iteration in its own git worktree, equivalent to setting gates.worktree_mode: always")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if runWorktree {
		cfg.Gates.WorktreeMode = "always"
	}

	maxIterations := cfg.MaxIterations
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("max-iterations must be a positive integer, got %q", args[0])
		}
		maxIterations = n
	}
	if maxIterations <= 0 {
		return fmt.Errorf("max-iterations is required (pass it as an argument or set max_iterations in config)")
	}

	repoRoot, err := gitutil.GetRepoRoot("", 10*time.Second)
	if err != nil {
		return err
	}
	stateDir := cfg.BaseDir
	if !filepath.IsAbs(stateDir) {
		stateDir = filepath.Join(repoRoot, stateDir)
	}

	opts := harness.Options{
		RepoRoot:           repoRoot,
		StateDir:           stateDir,
		PRDPath:            resolvePath(repoRoot, runPRDPath),
		ProgressLogPath:    resolvePath(repoRoot, runProgressLogPath),
		HarnessScriptPath:  resolvePath(repoRoot, runHarnessScriptPath),
		WorkflowScriptsDir: resolvePath(repoRoot, runWorkflowScriptDir),
		ContractFilePaths: []string{
			resolvePath(repoRoot, "CONTRACT.md"),
			resolvePath(repoRoot, "contract.md"),
		},
		ImplementationPlanPaths: []string{
			resolvePath(repoRoot, "IMPLEMENTATION_PLAN.md"),
			resolvePath(repoRoot, "implementation_plan.md"),
		},
		CIWorkflowGlobs:   []string{".github/workflows/*.yml", ".github/workflows/*.yaml"},
		Cfg:               cfg,
		DryRun:            flagDryRun,
		RunTaskUpdater:    taskUpdaterFor(runUpdateTaskCmd, repoRoot, cfg),
		RunContractReview: contractReviewerFor(runContractReviewCmd, repoRoot, cfg),
		AgentSelect:       agentSelectFor(cfg),
	}

	h := harness.New(opts)
	code := h.Run(context.Background(), maxIterations)
	os.Exit(code)
	return nil
}

func resolvePath(repoRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// taskUpdaterFor returns nil when no external update-task command is
// configured, matching the gate pipeline's own nil-means-skip convention
// for optional collaborators.
func taskUpdaterFor(command, repoRoot string, cfg *config.Config) func(string, bool) error {
	if command == "" {
		return nil
	}
	return func(storyID string, pass bool) error {
		status := "fail"
		if pass {
			status = "pass"
		}
		return runExternal(repoRoot, command, []string{storyID, status}, time.Duration(cfg.Timeouts.VerifySeconds)*time.Second)
	}
}

// contractReviewerFor returns nil when no external contract-review command
// is configured; internal/gate then blocks with contract_review_failed
// on a synthetic FAIL judgment (spec.md §4.8/12).
func contractReviewerFor(command, repoRoot string, cfg *config.Config) func(gate.Context) (gate.ContractJudgment, error) {
	if command == "" {
		return nil
	}
	return func(gctx gate.Context) (gate.ContractJudgment, error) {
		return runContractReviewCommand(gctx, repoRoot, command, time.Duration(cfg.Timeouts.VerifySeconds)*time.Second)
	}
}

func agentSelectFor(cfg *config.Config) func([]prd.Story) (string, error) {
	if cfg.Selection.Mode != "agent" {
		return nil
	}
	return func(candidates []prd.Story) (string, error) {
		return runAgentSelection(cfg, candidates)
	}
}

func runExternal(workDir, command string, args []string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", command, args, err, out.String())
	}
	return nil
}
