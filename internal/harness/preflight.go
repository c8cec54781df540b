package harness

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ralphctl/ralph/internal/config"
	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/prd"
)

// PreflightOptions is the subset of Options the fail-closed checks need
// (spec.md §4.2).
type PreflightOptions struct {
	RepoRoot                string
	PRDPath                 string
	ProgressLogPath         string
	VerifierPath            string
	ContractFilePaths       []string // canonical alternatives; at least one must exist
	ImplementationPlanPaths []string
	StatePath               string
	AgentCommand            string
	DryRun                  bool
	Profile                 string
	VerifyPostMode          string
	VerifyFinalMode         string
	LockTimeout             int
}

// runPreflight runs every fail-closed check from spec.md §4.2 in order,
// returning the first failure as a blockError. A nil return means the
// harness may proceed to the main loop.
func runPreflight(o PreflightOptions) *blockError {
	if _, err := exec.LookPath("git"); err != nil {
		return block(ReasonMissingGit, "git executable not found on PATH")
	}
	if !o.DryRun && o.AgentCommand != "" {
		if _, err := exec.LookPath(o.AgentCommand); err != nil {
			if _, statErr := os.Stat(o.AgentCommand); statErr != nil {
				return block(ReasonMissingAgentCmd, o.AgentCommand)
			}
		}
	} else if !o.DryRun && o.AgentCommand == "" {
		return block(ReasonMissingAgentCmd, "no agent command configured")
	}

	doc, blk := loadAndValidatePRD(o.PRDPath)
	if blk != nil {
		return blk
	}

	if o.VerifierPath == "" {
		return block(ReasonMissingVerifySh, "no verifier command configured")
	}
	if info, err := os.Stat(o.VerifierPath); err != nil || info.IsDir() {
		if _, lookErr := exec.LookPath(o.VerifierPath); lookErr != nil {
			return block(ReasonMissingVerifySh, o.VerifierPath)
		}
	}

	if !anyExists(o.ContractFilePaths) {
		return block(ReasonMissingContractFile, "none of the canonical contract file paths exist")
	}
	if !anyExists(o.ImplementationPlanPaths) {
		return block(ReasonMissingImplementationPlan, "none of the canonical implementation-plan paths exist")
	}

	if dir := filepath.Dir(o.ProgressLogPath); dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return block(ReasonMissingImplementationPlan, "progress log parent directory does not exist: "+dir)
		}
	}

	// State file validity is repaired in place (reset to Empty), not a
	// preflight failure — handled by state.Store.Load, which never errors
	// on invalid JSON. Nothing to check here beyond what Load already does.

	clean, err := gitutil.IsClean(o.RepoRoot, defaultGitTimeout)
	if err != nil {
		return block(ReasonDirtyWorktree, err.Error())
	}
	if !clean {
		return block(ReasonDirtyWorktree, "git status --porcelain is non-empty before the run starts")
	}

	if config.RequiresPromotionVerify(o.Profile) {
		if o.VerifyPostMode != "promotion" || o.VerifyFinalMode != "promotion" {
			return block(ReasonProfileRequiresPromotionVerify, "profile="+o.Profile+" requires verify.post and verify.final to be promotion")
		}
	}
	if config.RequiresFullVerify(o.Profile) {
		if o.VerifyFinalMode != "full" && o.VerifyFinalMode != "promotion" {
			return block(ReasonProfileRequiresFullVerify, "profile="+o.Profile+" requires verify.final to be full or promotion")
		}
	}

	_ = doc
	return nil
}

func anyExists(paths []string) bool {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return len(paths) == 0
}

// loadAndValidatePRD loads and validates the PRD, mapping parse/validation
// failures to the preflight reason codes (spec.md §4.2/§7).
func loadAndValidatePRD(path string) (*prd.Document, *blockError) {
	if _, err := os.Stat(path); err != nil {
		return nil, block(ReasonMissingPRD, path)
	}
	doc, err := prd.Load(path)
	if err != nil {
		return nil, block(ReasonInvalidPRDJSON, err.Error())
	}
	if err := doc.Validate(); err != nil {
		return nil, block(ReasonInvalidPRDSchema, err.Error())
	}
	return doc, nil
}
