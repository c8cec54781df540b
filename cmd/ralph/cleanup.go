package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/lock"
)

var (
	cleanupMaxAge      time.Duration
	cleanupLockStale   time.Duration
	cleanupDryRun      bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale locks and blocked artifacts",
	Long: `Reclaim the run lock if its holder process is no longer alive, and
delete blocked artifact directories older than --max-age. Safe to run while
no "ralph run" is in progress; refuses to touch a lock held by a live
process.

Examples:
  ralph cleanup
  ralph cleanup --max-age=168h
  ralph cleanup --dry-run`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 7*24*time.Hour, "delete blocked artifact directories older than this")
	cleanupCmd.Flags().DurationVar(&cleanupLockStale, "lock-stale-after", 10*time.Minute, "age beyond which a dead-holder lock is considered reclaimable")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "report what would be removed without removing it")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	root, err := gitRepoRootOrCwd()
	if err != nil {
		return err
	}
	baseDir := cfg.BaseDir
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(root, baseDir)
	}

	w := cmd.OutOrStdout()

	lockDir := filepath.Join(baseDir, "lock")
	if err := cleanupLock(w, lockDir); err != nil {
		fmt.Fprintf(w, "lock: %v\n", err)
	}

	removed, err := cleanupBlockedArtifacts(w, baseDir, cleanupMaxAge)
	if err != nil {
		return fmt.Errorf("cleanup blocked artifacts: %w", err)
	}
	fmt.Fprintf(w, "removed %d blocked artifact director%s\n", removed, pluralIes(removed))
	return nil
}

func cleanupLock(w io.Writer, lockDir string) error {
	l, err := lock.Acquire(lockDir, cleanupLockStale)
	if err != nil {
		if err == lock.ErrHeld {
			fmt.Fprintln(w, "lock is held by a live process, leaving it in place")
			return nil
		}
		return err
	}
	return l.Release()
}

func cleanupBlockedArtifacts(w io.Writer, baseDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "blocked_") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(baseDir, e.Name())
		if cleanupDryRun {
			fmt.Fprintf(w, "would remove %s\n", path)
			removed++
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

func pluralIes(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
