package harness

import (
	"context"
	"os"
	"strings"

	"github.com/ralphctl/ralph/internal/gate"
	"github.com/ralphctl/ralph/internal/gitutil"
)

// selfHeal rolls root back to the last known-good commit and removes
// untracked debris, implementing the verify-failure branch of the self-heal
// policy (spec.md §4.9: "roll back to the last good commit
// (gitutil.ResetHard + CleanUntracked) and continue instead of blocking
// immediately"). root is the repository or iteration worktree the agent was
// running against. It returns true only if the rollback left a clean tree,
// so the caller can safely retry the failed step once.
func (h *Harness) selfHeal(ctx context.Context, root string) bool {
	data, err := os.ReadFile(h.lastGoodPath)
	if err != nil {
		return false
	}
	ref := strings.TrimSpace(string(data))
	if ref == "" {
		return false
	}

	if err := gitutil.ResetHard(root, ref, defaultGitTimeout); err != nil {
		return false
	}
	if err := gitutil.CleanUntracked(root, h.opts.StateDir, defaultGitTimeout); err != nil {
		return false
	}

	clean, err := gitutil.IsClean(root, defaultGitTimeout)
	return err == nil && clean
}

// attemptSelfHeal rolls back via selfHeal and, if the tree came back clean,
// re-runs verify-post once against the restored last-good commit. healed
// reports whether the rollback itself succeeded; verifyPassed reports
// whether the re-run verify-post passed. A caller should only continue the
// run (rather than block) when both are true (spec.md §4.9: rollback, a
// verify re-run, and only block if that re-run still fails).
func (h *Harness) attemptSelfHeal(ctx context.Context, gctx gate.Context, root string) (healed bool, verifyPassed bool) {
	if !h.selfHeal(ctx, root) {
		return false, false
	}
	if gctx.RunVerifyPost == nil {
		return true, false
	}
	res, err := gctx.RunVerifyPost(gate.Mode(h.opts.Cfg.Verify.Post))
	return true, err == nil && res.Passed
}
