package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gitutil"
)

const defaultGitTimeout = 30 * time.Second

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ralph's environment is wired correctly",
	Long: `Validate that the resolved configuration, the repository, and the
external commands it invokes (agent, verifier) are all reachable and
sane. Optional components are reported as warnings, not failures.

Examples:
  ralph doctor
  ralph doctor --json`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"` // "pass", "warn", "fail"
	Detail   string `json:"detail"`
	Required bool   `json:"required"`
}

type doctorOutput struct {
	Checks  []doctorCheck `json:"checks"`
	Result  string        `json:"result"` // "HEALTHY", "DEGRADED", "UNHEALTHY"
	Summary string        `json:"summary"`
}

func gatherDoctorChecks(cfg *config.Config) []doctorCheck {
	return []doctorCheck{
		checkGitRepo(),
		checkAgentCommand(cfg),
		checkVerifierCommand(cfg),
		checkPRDFile(),
		checkHarnessScript(),
		checkStateDir(cfg),
		checkRateLimitSanity(cfg),
	}
}

func doctorStatusIcon(status string) string {
	switch status {
	case "pass":
		return "✓"
	case "warn":
		return "!"
	case "fail":
		return "✗"
	}
	return "?"
}

func renderDoctorTable(w io.Writer, output doctorOutput) {
	fmt.Fprintln(w, "ralph doctor")
	fmt.Fprintln(w, "------------")

	maxName := 0
	for _, c := range output.Checks {
		if len(c.Name) > maxName {
			maxName = len(c.Name)
		}
	}
	for _, c := range output.Checks {
		padding := strings.Repeat(" ", maxName-len(c.Name))
		fmt.Fprintf(w, "%s %s%s  %s\n", doctorStatusIcon(c.Status), c.Name, padding, c.Detail)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", output.Summary)
}

func hasRequiredFailure(checks []doctorCheck) bool {
	for _, c := range checks {
		if c.Required && c.Status == "fail" {
			return true
		}
	}
	return false
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	output := computeDoctorResult(gatherDoctorChecks(cfg))
	w := cmd.OutOrStdout()

	if doctorJSON {
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal doctor output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	renderDoctorTable(w, output)

	if hasRequiredFailure(output.Checks) {
		return fmt.Errorf("doctor failed: one or more required checks did not pass")
	}
	return nil
}

func checkGitRepo() doctorCheck {
	root, err := gitutil.GetRepoRoot("", defaultGitTimeout)
	if err != nil {
		return doctorCheck{Name: "Git repository", Status: "fail", Detail: err.Error(), Required: true}
	}
	return doctorCheck{Name: "Git repository", Status: "pass", Detail: root, Required: true}
}

func checkAgentCommand(cfg *config.Config) doctorCheck {
	if cfg.Agent.Command == "" {
		return doctorCheck{Name: "Agent command", Status: "fail", Detail: "agent.command is not configured", Required: true}
	}
	if _, err := exec.LookPath(cfg.Agent.Command); err != nil {
		return doctorCheck{Name: "Agent command", Status: "fail", Detail: fmt.Sprintf("%q not found in PATH", cfg.Agent.Command), Required: true}
	}
	return doctorCheck{Name: "Agent command", Status: "pass", Detail: cfg.Agent.Command, Required: true}
}

func checkVerifierCommand(cfg *config.Config) doctorCheck {
	if cfg.Verify.Command == "" {
		return doctorCheck{Name: "Verifier command", Status: "fail", Detail: "verify.command is not configured", Required: true}
	}
	path := cfg.Verify.Command
	if !filepath.IsAbs(path) {
		if root, err := gitutil.GetRepoRoot("", defaultGitTimeout); err == nil {
			path = filepath.Join(root, cfg.Verify.Command)
		}
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return doctorCheck{Name: "Verifier command", Status: "fail", Detail: fmt.Sprintf("%q not found", cfg.Verify.Command), Required: true}
	}
	return doctorCheck{Name: "Verifier command", Status: "pass", Detail: cfg.Verify.Command, Required: true}
}

func checkPRDFile() doctorCheck {
	root, err := gitutil.GetRepoRoot("", defaultGitTimeout)
	if err != nil {
		return doctorCheck{Name: "PRD file", Status: "warn", Detail: "cannot determine repository root", Required: false}
	}
	path := filepath.Join(root, runPRDPath)
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{Name: "PRD file", Status: "fail", Detail: fmt.Sprintf("%s not found", path), Required: true}
	}
	return doctorCheck{Name: "PRD file", Status: "pass", Detail: path, Required: true}
}

func checkHarnessScript() doctorCheck {
	root, err := gitutil.GetRepoRoot("", defaultGitTimeout)
	if err != nil {
		return doctorCheck{Name: "Harness script", Status: "warn", Detail: "cannot determine repository root", Required: false}
	}
	path := filepath.Join(root, runHarnessScriptPath)
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{Name: "Harness script", Status: "warn", Detail: fmt.Sprintf("%s not found, tamper detection disabled for it", path), Required: false}
	}
	return doctorCheck{Name: "Harness script", Status: "pass", Detail: path, Required: false}
}

func checkStateDir(cfg *config.Config) doctorCheck {
	root, err := gitutil.GetRepoRoot("", defaultGitTimeout)
	if err != nil {
		return doctorCheck{Name: "State directory", Status: "warn", Detail: "cannot determine repository root", Required: false}
	}
	dir := cfg.BaseDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return doctorCheck{Name: "State directory", Status: "warn", Detail: fmt.Sprintf("%s does not exist yet, will be created on first run", dir), Required: false}
	}
	if !info.IsDir() {
		return doctorCheck{Name: "State directory", Status: "fail", Detail: fmt.Sprintf("%s exists and is not a directory", dir), Required: true}
	}
	return doctorCheck{Name: "State directory", Status: "pass", Detail: dir, Required: false}
}

func checkRateLimitSanity(cfg *config.Config) doctorCheck {
	if !cfg.RateLimit.Enabled {
		return doctorCheck{Name: "Rate limit", Status: "warn", Detail: "disabled", Required: false}
	}
	return doctorCheck{Name: "Rate limit", Status: "pass", Detail: fmt.Sprintf("max %d calls per hour", cfg.RateLimit.PerHour), Required: false}
}

func countCheckStatuses(checks []doctorCheck) (passes, fails, warns int) {
	for _, c := range checks {
		switch c.Status {
		case "pass":
			passes++
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}
	return passes, fails, warns
}

func buildDoctorSummary(passes, fails, warns, total int) string {
	switch {
	case fails == 0 && warns == 0:
		return fmt.Sprintf("%d/%d checks passed", passes, total)
	case fails == 0:
		summary := fmt.Sprintf("%d/%d checks passed, %d warning", passes, total, warns)
		if warns > 1 {
			summary += "s"
		}
		return summary
	default:
		parts := []string{fmt.Sprintf("%d/%d checks passed", passes, total)}
		if warns > 0 {
			w := fmt.Sprintf("%d warning", warns)
			if warns > 1 {
				w += "s"
			}
			parts = append(parts, w)
		}
		if fails > 0 {
			parts = append(parts, fmt.Sprintf("%d failed", fails))
		}
		return strings.Join(parts, ", ")
	}
}

func computeDoctorResult(checks []doctorCheck) doctorOutput {
	passes, fails, warns := countCheckStatuses(checks)
	total := len(checks)

	result := "HEALTHY"
	switch {
	case fails > 0:
		result = "UNHEALTHY"
	case warns > 0:
		result = "DEGRADED"
	}

	return doctorOutput{
		Checks:  checks,
		Result:  result,
		Summary: buildDoctorSummary(passes, fails, warns, total),
	}
}
