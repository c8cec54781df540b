package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralphctl/ralph/internal/gitutil"
)

// worktreeEnabled reports whether this run should isolate each iteration in
// its own git worktree, per the Gates.WorktreeMode setting. "always" turns
// isolation on; "never" and "auto" (the default) leave the harness operating
// directly against the repository, since nothing in the harness currently
// auto-detects a signal worth switching on for "auto".
func worktreeEnabled(mode string) bool {
	return mode == "always"
}

// iterationWorkspace is the git root an iteration runs its verify/agent/gate
// steps against: either the shared repository, or a detached-checkout
// worktree created for this iteration alone.
type iterationWorkspace struct {
	root         string
	isWorktree   bool
	worktreePath string
	runID        string
}

// verbosef prints to stderr when verbose output is enabled, matching the
// teacher's VerbosePrintf gate around worktree-lifecycle logging.
func (h *Harness) verbosef(format string, args ...any) {
	if !h.opts.Cfg.Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

// openWorkspace creates an isolated worktree for this iteration when
// Gates.WorktreeMode enables it, or returns the shared repository root
// unchanged. Grounded on the teacher's per-run worktree lifecycle
// (internal/gitutil.CreateWorktree), wired here behind an actual config
// check rather than left unreachable.
func (h *Harness) openWorkspace() (iterationWorkspace, error) {
	if !worktreeEnabled(h.opts.Cfg.Gates.WorktreeMode) {
		return iterationWorkspace{root: h.opts.RepoRoot}, nil
	}
	path, runID, err := gitutil.CreateWorktree(h.opts.RepoRoot, defaultGitTimeout, h.verbosef)
	if err != nil {
		return iterationWorkspace{}, fmt.Errorf("create iteration worktree: %w", err)
	}
	h.verbosef("Created iteration worktree %s (run %s)\n", path, runID)
	return iterationWorkspace{root: path, isWorktree: true, worktreePath: path, runID: runID}, nil
}

// close merges the worktree back into the repository when land is true, or
// leaves the repository untouched otherwise, then always removes the
// worktree directory. A merge failure is returned to the caller so the
// iteration is treated as an error rather than silently discarded.
func (ws iterationWorkspace) close(h *Harness, land bool) error {
	if !ws.isWorktree {
		return nil
	}
	if land {
		if err := gitutil.MergeWorktree(h.opts.RepoRoot, ws.worktreePath, ws.runID, defaultGitTimeout, h.verbosef); err != nil {
			return fmt.Errorf("merge iteration worktree: %w", err)
		}
	}
	if err := gitutil.RemoveWorktree(h.opts.RepoRoot, ws.worktreePath, ws.runID, defaultGitTimeout); err != nil {
		h.verbosef("Warning: could not remove iteration worktree %s: %v\n", ws.worktreePath, err)
	}
	return nil
}

// reroot translates an absolute path rooted at fromRoot to the equivalent
// path under toRoot, carrying PRD/progress-log/harness-script/workflow-scripts
// paths into an isolated worktree checkout of the same commit. Paths
// outside fromRoot (state-directory bookkeeping, which lives alongside the
// repository rather than inside it) pass through unchanged.
func reroot(path, fromRoot, toRoot string) string {
	if fromRoot == toRoot || path == "" {
		return path
	}
	rel, err := filepath.Rel(fromRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.Join(toRoot, rel)
}

