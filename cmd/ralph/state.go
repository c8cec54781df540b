package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/cliutil"
	"github.com/ralphctl/ralph/internal/state"
)

const stateFileName = "state.json"

var stateJSON bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted harness state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current harness state",
	Long: `Read state.json from the harness state directory and print the
iteration counters, rate-limit window, and selected story.`,
	RunE: runStateShow,
}

func init() {
	stateShowCmd.Flags().BoolVar(&stateJSON, "json", false, "output raw JSON instead of a table")
	stateCmd.AddCommand(stateShowCmd)
	rootCmd.AddCommand(stateCmd)
}

func runStateShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseDir := cfg.BaseDir
	if !filepath.IsAbs(baseDir) {
		if root, err := gitRepoRootOrCwd(); err == nil {
			baseDir = filepath.Join(root, baseDir)
		}
	}
	path := filepath.Join(baseDir, stateFileName)

	store := state.New(path)
	st, err := store.Load()
	if err != nil {
		return fmt.Errorf("load state %s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	if stateJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	tbl := cliutil.NewTable(w, "FIELD", "VALUE")
	tbl.AddRow("iteration_index", fmt.Sprintf("%d", st.IterationIndex))
	tbl.AddRow("active_slice", fmt.Sprintf("%d", st.ActiveSlice))
	tbl.AddRow("selection_mode", st.SelectionMode)
	tbl.AddRow("last_good_commit", cliutil.Dim(st.LastGoodCommit))
	tbl.AddRow("same_failure_streak", fmt.Sprintf("%d", st.SameFailureStreak))
	tbl.AddRow("no_progress_streak", fmt.Sprintf("%d", st.NoProgressStreak))
	tbl.AddRow("rate_limit", fmt.Sprintf("%d/%d this window", st.RateLimit.Count, st.RateLimit.Limit))
	if st.SelectedStory != nil {
		tbl.AddRow("selected_story", st.SelectedStory.ID)
	}
	tbl.AddRow("total_iterations", fmt.Sprintf("%d", st.Metrics.TotalIterations))
	tbl.AddRow("passes", fmt.Sprintf("%d", st.Metrics.Passes))
	tbl.AddRow("updated_at", st.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	return tbl.Render()
}
