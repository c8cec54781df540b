// Package config provides configuration management for ralph.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (RALPH_*)
// 3. Project config (.ralph/config.yaml in cwd)
// 4. Home config (~/.ralph/config.yaml)
// 5. Defaults, then a named mode profile overlay
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all ralph configuration: the CLI/main-loop environment
// surface named in spec.md §6 ("agent command, model, mode profile, verify
// modes, timeouts, rate-limit parameters, maximum iterations, allowlists,
// circuit-breaker thresholds, diff ceiling, test-co-change policy").
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the harness state directory (spec.md §6 "Persisted state
	// layout"). Default: .ralph
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Profile selects a named mode overlay: fast, thorough, audit, verify,
	// explore, promote, max. Applied via ApplyProfile before file/env/flag
	// overrides, so any explicitly configured field still wins.
	Profile string `yaml:"profile" json:"profile"`

	Agent          AgentConfig          `yaml:"agent" json:"agent"`
	Verify         VerifyConfig         `yaml:"verify" json:"verify"`
	Timeouts       TimeoutsConfig       `yaml:"timeouts" json:"timeouts"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit" json:"rate_limit"`
	Selection      SelectionConfig      `yaml:"selection" json:"selection"`
	Gates          GatesConfig          `yaml:"gates" json:"gates"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`

	// MaxIterations is the default iteration budget when the CLI positional
	// argument is omitted. 0 means "no default, flag is required".
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`
}

// AgentConfig describes how the coding agent subprocess is invoked.
type AgentConfig struct {
	// Command is the executable invoked with the rendered prompt appended
	// to Args (spec.md §6 "argument vector constructed from configured args
	// plus the rendered prompt string").
	Command string `yaml:"command" json:"command"`
	// Args are extra arguments prepended before the prompt (or prompt flag).
	Args []string `yaml:"args" json:"args"`
	// PromptFlag, if set, precedes the rendered prompt (e.g. "--prompt")
	// instead of passing it as a bare trailing argument.
	PromptFlag string `yaml:"prompt_flag" json:"prompt_flag"`
	// Model is passed through to the agent invocation (interpretation is
	// agent-specific; the harness only threads it through).
	Model string `yaml:"model" json:"model"`
}

// VerifyConfig names the verify mode used at each pipeline stage
// (spec.md §6 "Verifier contract... mode ∈ {quick, full, promotion}").
type VerifyConfig struct {
	// Command is the external verifier executable (e.g. "./verify.sh").
	Command string `yaml:"command" json:"command"`
	Pre     string `yaml:"pre" json:"pre"`
	Post    string `yaml:"post" json:"post"`
	// Promotion is the mode verify-post upgrades to when a pass-mark is
	// requested and Post is "quick" (spec.md §4.6).
	Promotion string `yaml:"promotion" json:"promotion"`
	// Final is the mode used by the Completion Detector's final verify.
	Final string `yaml:"final" json:"final"`
}

// TimeoutsConfig holds the deadlines applied to each external subprocess
// (spec.md §5: "a deadline expires the child is first terminated gracefully,
// then killed after a short grace").
type TimeoutsConfig struct {
	AgentSeconds     int `yaml:"agent_seconds" json:"agent_seconds"`
	VerifySeconds    int `yaml:"verify_seconds" json:"verify_seconds"`
	IterationSeconds int `yaml:"iteration_seconds" json:"iteration_seconds"`
	GraceSeconds     int `yaml:"grace_seconds" json:"grace_seconds"`
}

// RateLimitConfig configures the sliding-window agent-call limiter
// (spec.md §4.4).
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	PerHour        int  `yaml:"per_hour" json:"per_hour"`
	RestartOnSleep bool `yaml:"restart_on_sleep" json:"restart_on_sleep"`
}

// SelectionConfig configures the Selector (spec.md §4.5).
type SelectionConfig struct {
	// Mode is "harness" (priority scan) or "agent" (agent chooses via
	// <selected_id>).
	Mode string `yaml:"mode" json:"mode"`
}

// GatesConfig configures the Gate Pipeline (spec.md §4.8).
type GatesConfig struct {
	// DiffCeiling is the maximum insertion+deletion line count before the
	// diff-size gate blocks.
	DiffCeiling int `yaml:"diff_ceiling" json:"diff_ceiling"`
	// CheatDetection is "off", "warn", or "block".
	CheatDetection string `yaml:"cheat_detection" json:"cheat_detection"`
	// TestCoChange is "off", "warn", or "strict".
	TestCoChange string `yaml:"test_co_change" json:"test_co_change"`
	// AgentMayEditPRD allows the PRD-edit-policy gate to pass when the PRD
	// hash changed, per spec.md §4.8/2.
	AgentMayEditPRD bool `yaml:"agent_may_edit_prd" json:"agent_may_edit_prd"`
	// AllowVerifierEdits / AllowHarnessFileEdits toggle the per-file override
	// flags referenced by the verifier-file-integrity gate (§4.8/3).
	AllowVerifierEdits    bool `yaml:"allow_verifier_edits" json:"allow_verifier_edits"`
	AllowHarnessFileEdits bool `yaml:"allow_harness_file_edits" json:"allow_harness_file_edits"`
	// StoryVerifyAllowlistFile lists permitted story verify-command strings,
	// one per line (§4.8/11).
	StoryVerifyAllowlistFile string `yaml:"story_verify_allowlist_file" json:"story_verify_allowlist_file"`
	// AllowStoryVerifyBypass is the Open Question #3 runtime escape hatch.
	AllowStoryVerifyBypass bool `yaml:"allow_story_verify_bypass" json:"allow_story_verify_bypass"`
	// SelfHeal enables rollback-and-continue on a failing verify-post.
	SelfHeal bool `yaml:"self_heal" json:"self_heal"`
	// CheatAllowlistPatterns lets specific regex-matched paths opt out of cheat
	// scanning (§4.8/7's "allowlist-regex optionally removed under an
	// opt-in flag").
	CheatAllowlistPatterns []string `yaml:"cheat_allowlist_patterns" json:"cheat_allowlist_patterns"`
	// WorktreeMode controls the supplemented worktree-isolation feature:
	// "auto" (default, single working tree), "always", or "never".
	WorktreeMode string `yaml:"worktree_mode" json:"worktree_mode"`
}

// CircuitBreakerConfig configures the self-heal circuit breaker
// (spec.md §4.9).
type CircuitBreakerConfig struct {
	MaxSameFailure int `yaml:"max_same_failure" json:"max_same_failure"`
	MaxNoProgress  int `yaml:"max_no_progress" json:"max_no_progress"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput  = "table"
	defaultBaseDir = ".ralph"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Profile: "thorough",
		Agent: AgentConfig{
			Command: "",
			Args:    nil,
		},
		Verify: VerifyConfig{
			Command:   "./verify.sh",
			Pre:       "quick",
			Post:      "quick",
			Promotion: "full",
			Final:     "full",
		},
		Timeouts: TimeoutsConfig{
			AgentSeconds:     1800,
			VerifySeconds:    900,
			IterationSeconds: 2700,
			GraceSeconds:     5,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			PerHour:        20,
			RestartOnSleep: true,
		},
		Selection: SelectionConfig{
			Mode: "harness",
		},
		Gates: GatesConfig{
			DiffCeiling:              800,
			CheatDetection:           "block",
			TestCoChange:             "warn",
			AgentMayEditPRD:          false,
			StoryVerifyAllowlistFile: ".ralph/story_verify_allowlist.txt",
			AllowStoryVerifyBypass:   false,
			SelfHeal:                 true,
			WorktreeMode:             "auto",
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxSameFailure: 3,
			MaxNoProgress:  5,
		},
		MaxIterations: 0,
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults+profile.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	profile := resolveRequestedProfile(flagOverrides)
	if profile != "" {
		cfg = ApplyProfile(cfg, profile)
	}

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// resolveRequestedProfile checks flag overrides, then the environment, for
// an explicitly requested profile name, ahead of the full precedence chain,
// since the profile must be applied before file/env merges run.
func resolveRequestedProfile(flagOverrides *Config) string {
	if flagOverrides != nil && flagOverrides.Profile != "" {
		return flagOverrides.Profile
	}
	return strings.TrimSpace(os.Getenv("RALPH_PROFILE"))
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ralph", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("RALPH_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".ralph", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies RALPH_* environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("RALPH_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("RALPH_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if isTruthy(os.Getenv("RALPH_VERBOSE")) {
		cfg.Verbose = true
	}
	if v := os.Getenv("RALPH_AGENT_COMMAND"); v != "" {
		cfg.Agent.Command = v
	}
	if v := os.Getenv("RALPH_AGENT_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("RALPH_VERIFY_COMMAND"); v != "" {
		cfg.Verify.Command = v
	}
	if v := os.Getenv("RALPH_VERIFY_PRE"); v != "" {
		cfg.Verify.Pre = v
	}
	if v := os.Getenv("RALPH_VERIFY_POST"); v != "" {
		cfg.Verify.Post = v
	}
	if v := os.Getenv("RALPH_VERIFY_PROMOTION"); v != "" {
		cfg.Verify.Promotion = v
	}
	if v := os.Getenv("RALPH_VERIFY_FINAL"); v != "" {
		cfg.Verify.Final = v
	}
	if n, ok := getEnvInt("RALPH_MAX_ITERATIONS"); ok {
		cfg.MaxIterations = n
	}
	if n, ok := getEnvInt("RALPH_TIMEOUT_AGENT_SECONDS"); ok {
		cfg.Timeouts.AgentSeconds = n
	}
	if n, ok := getEnvInt("RALPH_TIMEOUT_VERIFY_SECONDS"); ok {
		cfg.Timeouts.VerifySeconds = n
	}
	if n, ok := getEnvInt("RALPH_TIMEOUT_ITERATION_SECONDS"); ok {
		cfg.Timeouts.IterationSeconds = n
	}
	if isTruthy(os.Getenv("RALPH_RATE_LIMIT_ENABLED")) {
		cfg.RateLimit.Enabled = true
	}
	if v, ok := os.LookupEnv("RALPH_RATE_LIMIT_ENABLED"); ok && !isTruthy(v) {
		cfg.RateLimit.Enabled = false
	}
	if n, ok := getEnvInt("RALPH_RATE_LIMIT_PER_HOUR"); ok {
		cfg.RateLimit.PerHour = n
	}
	if v := os.Getenv("RALPH_SELECTION_MODE"); v != "" {
		cfg.Selection.Mode = v
	}
	if n, ok := getEnvInt("RALPH_DIFF_CEILING"); ok {
		cfg.Gates.DiffCeiling = n
	}
	if v := os.Getenv("RALPH_CHEAT_DETECTION"); v != "" {
		cfg.Gates.CheatDetection = v
	}
	if v := os.Getenv("RALPH_TEST_CO_CHANGE"); v != "" {
		cfg.Gates.TestCoChange = v
	}
	if isTruthy(os.Getenv("RALPH_AGENT_MAY_EDIT_PRD")) {
		cfg.Gates.AgentMayEditPRD = true
	}
	if isTruthy(os.Getenv("RALPH_ALLOW_STORY_VERIFY_BYPASS")) {
		cfg.Gates.AllowStoryVerifyBypass = true
	}
	if v, ok := os.LookupEnv("RALPH_SELF_HEAL"); ok {
		cfg.Gates.SelfHeal = isTruthy(v)
	}
	if v := os.Getenv("RALPH_WORKTREE_MODE"); v != "" {
		cfg.Gates.WorktreeMode = v
	}
	if n, ok := getEnvInt("RALPH_CIRCUIT_BREAKER_MAX_SAME_FAILURE"); ok {
		cfg.CircuitBreaker.MaxSameFailure = n
	}
	if n, ok := getEnvInt("RALPH_CIRCUIT_BREAKER_MAX_NO_PROGRESS"); ok {
		cfg.CircuitBreaker.MaxNoProgress = n
	}
	return cfg
}

func isTruthy(v string) bool {
	return v == "true" || v == "1"
}

func getEnvInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// merge merges src into dst, with src values taking precedence. Zero values
// in src are treated as "not set" and leave dst unchanged, except for bool
// fields which always win from src — booleans therefore can't be explicitly
// "unset back to false" by a later merge layer; RALPH_*_ENABLED-style flags
// that need tri-state semantics are handled in applyEnv via LookupEnv instead.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Profile != "" {
		dst.Profile = src.Profile
	}
	if src.MaxIterations != 0 {
		dst.MaxIterations = src.MaxIterations
	}

	if src.Agent.Command != "" {
		dst.Agent.Command = src.Agent.Command
	}
	if len(src.Agent.Args) > 0 {
		dst.Agent.Args = src.Agent.Args
	}
	if src.Agent.PromptFlag != "" {
		dst.Agent.PromptFlag = src.Agent.PromptFlag
	}
	if src.Agent.Model != "" {
		dst.Agent.Model = src.Agent.Model
	}

	if src.Verify.Command != "" {
		dst.Verify.Command = src.Verify.Command
	}
	if src.Verify.Pre != "" {
		dst.Verify.Pre = src.Verify.Pre
	}
	if src.Verify.Post != "" {
		dst.Verify.Post = src.Verify.Post
	}
	if src.Verify.Promotion != "" {
		dst.Verify.Promotion = src.Verify.Promotion
	}
	if src.Verify.Final != "" {
		dst.Verify.Final = src.Verify.Final
	}

	if src.Timeouts.AgentSeconds != 0 {
		dst.Timeouts.AgentSeconds = src.Timeouts.AgentSeconds
	}
	if src.Timeouts.VerifySeconds != 0 {
		dst.Timeouts.VerifySeconds = src.Timeouts.VerifySeconds
	}
	if src.Timeouts.IterationSeconds != 0 {
		dst.Timeouts.IterationSeconds = src.Timeouts.IterationSeconds
	}
	if src.Timeouts.GraceSeconds != 0 {
		dst.Timeouts.GraceSeconds = src.Timeouts.GraceSeconds
	}

	if src.RateLimit.Enabled {
		dst.RateLimit.Enabled = true
	}
	if src.RateLimit.PerHour != 0 {
		dst.RateLimit.PerHour = src.RateLimit.PerHour
	}
	if src.RateLimit.RestartOnSleep {
		dst.RateLimit.RestartOnSleep = true
	}

	if src.Selection.Mode != "" {
		dst.Selection.Mode = src.Selection.Mode
	}

	if src.Gates.DiffCeiling != 0 {
		dst.Gates.DiffCeiling = src.Gates.DiffCeiling
	}
	if src.Gates.CheatDetection != "" {
		dst.Gates.CheatDetection = src.Gates.CheatDetection
	}
	if src.Gates.TestCoChange != "" {
		dst.Gates.TestCoChange = src.Gates.TestCoChange
	}
	if src.Gates.AgentMayEditPRD {
		dst.Gates.AgentMayEditPRD = true
	}
	if src.Gates.AllowVerifierEdits {
		dst.Gates.AllowVerifierEdits = true
	}
	if src.Gates.AllowHarnessFileEdits {
		dst.Gates.AllowHarnessFileEdits = true
	}
	if src.Gates.StoryVerifyAllowlistFile != "" {
		dst.Gates.StoryVerifyAllowlistFile = src.Gates.StoryVerifyAllowlistFile
	}
	if src.Gates.AllowStoryVerifyBypass {
		dst.Gates.AllowStoryVerifyBypass = true
	}
	if len(src.Gates.CheatAllowlistPatterns) > 0 {
		dst.Gates.CheatAllowlistPatterns = src.Gates.CheatAllowlistPatterns
	}
	if src.Gates.WorktreeMode != "" {
		dst.Gates.WorktreeMode = src.Gates.WorktreeMode
	}

	if src.CircuitBreaker.MaxSameFailure != 0 {
		dst.CircuitBreaker.MaxSameFailure = src.CircuitBreaker.MaxSameFailure
	}
	if src.CircuitBreaker.MaxNoProgress != 0 {
		dst.CircuitBreaker.MaxNoProgress = src.CircuitBreaker.MaxNoProgress
	}

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceProfile Source = "profile"
	SourceHome    Source = "~/.ralph/config.yaml"
	SourceProject Source = ".ralph/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// ResolvedField shows a single config value with the layer that produced it.
type ResolvedField = resolved

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(profile, home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if profile != "" {
		result = resolved{Value: profile, Source: SourceProfile}
	}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}
