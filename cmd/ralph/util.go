package main

import (
	"os"

	"github.com/ralphctl/ralph/internal/gitutil"
)

// gitRepoRootOrCwd resolves the git repository root, falling back to the
// current working directory for commands that merely inspect state and
// don't require a git repository to function.
func gitRepoRootOrCwd() (string, error) {
	if root, err := gitutil.GetRepoRoot("", defaultGitTimeout); err == nil {
		return root, nil
	}
	return os.Getwd()
}
