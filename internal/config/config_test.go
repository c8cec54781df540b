package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.BaseDir != ".ralph" {
		t.Errorf("Default BaseDir = %q, want %q", cfg.BaseDir, ".ralph")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.Verify.Pre != "quick" {
		t.Errorf("Default Verify.Pre = %q, want %q", cfg.Verify.Pre, "quick")
	}
	if cfg.Verify.Promotion != "full" {
		t.Errorf("Default Verify.Promotion = %q, want %q", cfg.Verify.Promotion, "full")
	}
	if cfg.RateLimit.PerHour != 20 {
		t.Errorf("Default RateLimit.PerHour = %d, want %d", cfg.RateLimit.PerHour, 20)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Default RateLimit.Enabled = false, want true")
	}
	if cfg.Selection.Mode != "harness" {
		t.Errorf("Default Selection.Mode = %q, want %q", cfg.Selection.Mode, "harness")
	}
	if cfg.Gates.DiffCeiling != 800 {
		t.Errorf("Default Gates.DiffCeiling = %d, want %d", cfg.Gates.DiffCeiling, 800)
	}
	if cfg.CircuitBreaker.MaxSameFailure != 3 {
		t.Errorf("Default CircuitBreaker.MaxSameFailure = %d, want %d", cfg.CircuitBreaker.MaxSameFailure, 3)
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output:  "json",
		BaseDir: "/custom/path",
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merge Output = %q, want %q", result.Output, "json")
	}
	if result.BaseDir != "/custom/path" {
		t.Errorf("merge BaseDir = %q, want %q", result.BaseDir, "/custom/path")
	}
	// Defaults should be preserved when not overridden.
	if result.Gates.DiffCeiling != 800 {
		t.Errorf("merge preserved Gates.DiffCeiling = %d, want %d", result.Gates.DiffCeiling, 800)
	}
}

func TestMerge_BoolAlwaysWinsFromSrc(t *testing.T) {
	dst := Default()
	dst.Gates.SelfHeal = false

	src := &Config{Gates: GatesConfig{SelfHeal: true}}
	result := merge(dst, src)

	if !result.Gates.SelfHeal {
		t.Error("merge should set SelfHeal true when src has it true")
	}
}

func TestMerge_ZeroValueNotOverridden(t *testing.T) {
	dst := Default()
	src := &Config{Output: "json"} // everything else zero-valued

	result := merge(dst, src)

	if result.RateLimit.PerHour != 20 {
		t.Errorf("merge should preserve default RateLimit.PerHour, got %d", result.RateLimit.PerHour)
	}
	if result.Verify.Promotion != "full" {
		t.Errorf("merge should preserve default Verify.Promotion, got %q", result.Verify.Promotion)
	}
}

func TestApplyEnv(t *testing.T) {
	origOutput := os.Getenv("RALPH_OUTPUT")
	origVerbose := os.Getenv("RALPH_VERBOSE")
	origDiffCeiling := os.Getenv("RALPH_DIFF_CEILING")
	defer func() {
		_ = os.Setenv("RALPH_OUTPUT", origOutput)           //nolint:errcheck // test env restore
		_ = os.Setenv("RALPH_VERBOSE", origVerbose)          //nolint:errcheck // test env restore
		_ = os.Setenv("RALPH_DIFF_CEILING", origDiffCeiling) //nolint:errcheck // test env restore
	}()

	_ = os.Setenv("RALPH_OUTPUT", "yaml")      //nolint:errcheck // test env setup
	_ = os.Setenv("RALPH_VERBOSE", "true")     //nolint:errcheck // test env setup
	_ = os.Setenv("RALPH_DIFF_CEILING", "123") //nolint:errcheck // test env setup

	cfg := Default()
	cfg = applyEnv(cfg)

	if cfg.Output != "yaml" {
		t.Errorf("applyEnv Output = %q, want %q", cfg.Output, "yaml")
	}
	if !cfg.Verbose {
		t.Error("applyEnv Verbose = false, want true")
	}
	if cfg.Gates.DiffCeiling != 123 {
		t.Errorf("applyEnv Gates.DiffCeiling = %d, want %d", cfg.Gates.DiffCeiling, 123)
	}
}

func TestApplyEnv_RateLimitTriState(t *testing.T) {
	orig, hadOrig := os.LookupEnv("RALPH_RATE_LIMIT_ENABLED")
	defer func() {
		if hadOrig {
			_ = os.Setenv("RALPH_RATE_LIMIT_ENABLED", orig) //nolint:errcheck // test env restore
		} else {
			_ = os.Unsetenv("RALPH_RATE_LIMIT_ENABLED") //nolint:errcheck // test env restore
		}
	}()

	_ = os.Setenv("RALPH_RATE_LIMIT_ENABLED", "false") //nolint:errcheck // test env setup
	cfg := applyEnv(Default())
	if cfg.RateLimit.Enabled {
		t.Error("applyEnv should disable RateLimit.Enabled when RALPH_RATE_LIMIT_ENABLED=false")
	}
}

func TestLoadFromPath_MissingFileReturnsNil(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
	if cfg != nil {
		t.Error("expected nil config for missing file")
	}
}

func TestLoadFromPath_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "output: json\nbase_dir: .custom-ralph\nverify:\n  pre: full\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loadFromPath: %v", err)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want %q", cfg.Output, "json")
	}
	if cfg.BaseDir != ".custom-ralph" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, ".custom-ralph")
	}
	if cfg.Verify.Pre != "full" {
		t.Errorf("Verify.Pre = %q, want %q", cfg.Verify.Pre, "full")
	}
}

func TestApplyProfile_Fast(t *testing.T) {
	cfg := ApplyProfile(Default(), ProfileFast)
	if cfg.Verify.Promotion != "quick" {
		t.Errorf("fast profile Verify.Promotion = %q, want %q", cfg.Verify.Promotion, "quick")
	}
	if cfg.Gates.CheatDetection != "warn" {
		t.Errorf("fast profile Gates.CheatDetection = %q, want %q", cfg.Gates.CheatDetection, "warn")
	}
	if cfg.Profile != ProfileFast {
		t.Errorf("Profile field = %q, want %q", cfg.Profile, ProfileFast)
	}
}

func TestApplyProfile_Max(t *testing.T) {
	cfg := ApplyProfile(Default(), ProfileMax)
	if cfg.Verify.Post != "promotion" {
		t.Errorf("max profile Verify.Post = %q, want %q", cfg.Verify.Post, "promotion")
	}
	if cfg.CircuitBreaker.MaxSameFailure != 1 {
		t.Errorf("max profile CircuitBreaker.MaxSameFailure = %d, want %d", cfg.CircuitBreaker.MaxSameFailure, 1)
	}
	if cfg.Gates.DiffCeiling != 300 {
		t.Errorf("max profile Gates.DiffCeiling = %d, want %d", cfg.Gates.DiffCeiling, 300)
	}
}

func TestApplyProfile_UnknownIsNoOp(t *testing.T) {
	base := Default()
	cfg := ApplyProfile(Default(), "nonexistent-profile")
	if cfg.Verify != base.Verify {
		t.Error("unknown profile should not change Verify config")
	}
	if cfg.Profile != "nonexistent-profile" {
		t.Errorf("Profile field should still be recorded even for an unknown profile, got %q", cfg.Profile)
	}
}

func TestRequiresPromotionVerify(t *testing.T) {
	cases := map[string]bool{
		ProfilePromote: true,
		ProfileMax:     true,
		ProfileFast:    false,
		ProfileAudit:   false,
	}
	for profile, want := range cases {
		if got := RequiresPromotionVerify(profile); got != want {
			t.Errorf("RequiresPromotionVerify(%q) = %v, want %v", profile, got, want)
		}
	}
}

func TestRequiresFullVerify(t *testing.T) {
	cases := map[string]bool{
		ProfileAudit:  true,
		ProfileVerify: true,
		ProfileMax:    true,
		ProfileFast:   false,
		ProfilePromote: false,
	}
	for profile, want := range cases {
		if got := RequiresFullVerify(profile); got != want {
			t.Errorf("RequiresFullVerify(%q) = %v, want %v", profile, got, want)
		}
	}
}

func TestResolveStringField_Precedence(t *testing.T) {
	tests := []struct {
		name                                 string
		profile, home, project, env, flag, def string
		wantValue                             string
		wantSource                            Source
	}{
		{"default only", "", "", "", "", "", "fallback", "fallback", SourceDefault},
		{"profile over default", "p", "", "", "", "", "fallback", "p", SourceProfile},
		{"home over profile", "p", "h", "", "", "", "fallback", "h", SourceHome},
		{"project over home", "p", "h", "proj", "", "", "fallback", "proj", SourceProject},
		{"env over project", "p", "h", "proj", "e", "", "fallback", "e", SourceEnv},
		{"flag over env", "p", "h", "proj", "e", "f", "fallback", "f", SourceFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStringField(tt.profile, tt.home, tt.project, tt.env, tt.flag, tt.def)
			if got.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", got.Source, tt.wantSource)
			}
		})
	}
}

func TestProjectConfigPath_EnvOverride(t *testing.T) {
	orig, had := os.LookupEnv("RALPH_CONFIG")
	defer func() {
		if had {
			_ = os.Setenv("RALPH_CONFIG", orig) //nolint:errcheck // test env restore
		} else {
			_ = os.Unsetenv("RALPH_CONFIG") //nolint:errcheck // test env restore
		}
	}()

	_ = os.Setenv("RALPH_CONFIG", "/tmp/explicit-ralph-config.yaml") //nolint:errcheck // test env setup
	if got := projectConfigPath(); got != "/tmp/explicit-ralph-config.yaml" {
		t.Errorf("projectConfigPath() = %q, want override path", got)
	}
}
