package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/cliutil"
	"github.com/ralphctl/ralph/internal/manifest"
)

const manifestFileName = "manifest.json"

var manifestJSON bool

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect the last run's manifest",
}

var manifestShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the most recent run manifest",
	Long: `Read the Run Manifest written at the end of the last "ralph run"
invocation and print its outcome, commit range, and any skipped checks.`,
	RunE: runManifestShow,
}

func init() {
	manifestShowCmd.Flags().BoolVar(&manifestJSON, "json", false, "output raw JSON instead of a table")
	manifestCmd.AddCommand(manifestShowCmd)
	rootCmd.AddCommand(manifestCmd)
}

func runManifestShow(cmd *cobra.Command, args []string) error {
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
	path := filepath.Join(baseDir, manifestFileName)

	m, err := manifest.Read(path)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}

	w := cmd.OutOrStdout()
	if manifestJSON {
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	tbl := cliutil.NewTable(w, "FIELD", "VALUE")
	tbl.AddRow("run_id", m.RunID)
	tbl.AddRow("status", cliutil.Status(string(m.FinalStatus)))
	tbl.AddRow("head_before", m.HeadBefore)
	tbl.AddRow("head_after", m.HeadAfter)
	tbl.AddRow("commit_count", fmt.Sprintf("%d", m.CommitCount))
	if m.BlockedReason != "" {
		tbl.AddRow("blocked_reason", m.BlockedReason)
		tbl.AddRow("blocked_detail", m.BlockedDetail)
	}
	tbl.AddRow("generated_at", m.GeneratedAt)
	if err := tbl.Render(); err != nil {
		return err
	}

	if len(m.SkippedChecks) > 0 {
		fmt.Fprintln(w)
		skipped := cliutil.NewTable(w, "SKIPPED CHECK", "REASON")
		for _, s := range m.SkippedChecks {
			skipped.AddRow(s.Name, s.Reason)
		}
		return skipped.Render()
	}
	return nil
}
