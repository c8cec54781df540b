package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ralphctl/ralph/internal/config"
)

// Global flags shared across every subcommand, mirroring the teacher's
// package-level flag variables bound in root.go's init().
var (
	flagDryRun     bool
	flagVerbose    bool
	flagOutput     string
	flagProfile    string
	flagBaseDir    string
	flagAgentCmd   string
	flagVerifyCmd  string
	flagConfigFile string
)

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Autonomous coding-agent iteration harness",
	Long: `ralph drives a coding agent through a backlog of stories one iteration
at a time: select a story, run the pre-iteration verifier, invoke the agent
under a timeout, run the post-agent gate pipeline, and land or block.

Core commands:
  run       Run the main iteration loop
  doctor    Check that ralph's environment is wired correctly
  manifest  Inspect the last run's manifest
  state     Inspect the persisted harness state
  cleanup   Remove stale locks and blocked artifacts`,
	SilenceUsage: true,
}

// Execute runs the root command and exits the process with its result code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ralph:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "skip preflight's agent-executable check; the agent subprocess is still invoked")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "named mode profile (fast, thorough, audit, verify, explore, promote, max)")
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", "", "harness state directory (default .ralph)")
	rootCmd.PersistentFlags().StringVar(&flagAgentCmd, "agent-command", "", "coding agent executable")
	rootCmd.PersistentFlags().StringVar(&flagVerifyCmd, "verify-command", "", "external verifier executable")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default .ralph/config.yaml)")
}

// loadConfig resolves configuration through internal/config's layered
// precedence chain with this invocation's flags as the top-priority layer.
func loadConfig() (*config.Config, error) {
	if flagConfigFile != "" {
		os.Setenv("RALPH_CONFIG", flagConfigFile)
	}
	overrides := &config.Config{
		Output:  flagOutput,
		BaseDir: flagBaseDir,
		Verbose: flagVerbose,
		Profile: flagProfile,
	}
	overrides.Agent.Command = flagAgentCmd
	overrides.Verify.Command = flagVerifyCmd
	return config.Load(overrides)
}
