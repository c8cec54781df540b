package harness

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ralphctl/ralph/internal/gitutil"
	"github.com/ralphctl/ralph/internal/iteration"
	"github.com/ralphctl/ralph/internal/manifest"
	"github.com/ralphctl/ralph/internal/prd"
	"github.com/ralphctl/ralph/internal/state"
	"github.com/ralphctl/ralph/internal/verify"
)

// runCompletion implements the Completion Detector (spec.md §4.10):
// declare done only once every story passes, then run one final verify at
// the configured final mode before reporting success. A stale pass vector
// or a failing final verify blocks rather than exits 0, since the loop
// must never report success on unverified state.
func (h *Harness) runCompletion(ctx context.Context, st *state.State, index int) int {
	doc, err := prd.Load(h.opts.PRDPath)
	if err != nil || !doc.AllPass() {
		blk := block(ReasonIncompleteCompletion, "not every story in the PRD passes")
		h.writeBlocked(blk, st, "")
		return ExitCode(blk.Reason, false)
	}

	head, err := gitutil.HeadCommit(h.opts.RepoRoot, defaultGitTimeout)
	if err != nil || head == "" {
		blk := block(ReasonFinalVerifyMissingSha, "cannot resolve the current HEAD commit for the final verify")
		h.writeBlocked(blk, st, "")
		return ExitCode(blk.Reason, false)
	}

	finalDir, err := iteration.Create(h.opts.StateDir, index+1, time.Now())
	if err != nil {
		blk := block(ReasonFinalVerifyMissingIterDir, err.Error())
		h.writeBlocked(blk, st, "")
		return ExitCode(blk.Reason, false)
	}

	res, err := h.verifier.Run(ctx, h.opts.RepoRoot, finalDir.Path, "verify_final", verify.Mode(h.opts.Cfg.Verify.Final))
	if err != nil || !res.Passed() {
		blk := block(ReasonFinalVerifyFailed, "final verify did not pass with the required signature")
		h.writeBlocked(blk, st, finalDir.Path)
		return ExitCode(blk.Reason, false)
	}

	manifest.Write(h.manifestPath, manifest.RunManifest{
		RunID:              filepath.Base(finalDir.Path),
		IterationDir:       finalDir.Path,
		HeadBefore:         head,
		HeadAfter:          head,
		VerifyFinalLogPath: res.LogPath,
		FinalStatus:        manifest.StatusPass,
	})
	return 0
}
