package config

// Profile names recognized by ApplyProfile (spec.md §6: "mode profile
// (fast/thorough/audit/verify/explore/promote/max)").
const (
	ProfileFast     = "fast"
	ProfileThorough = "thorough"
	ProfileAudit    = "audit"
	ProfileVerify   = "verify"
	ProfileExplore  = "explore"
	ProfilePromote  = "promote"
	ProfileMax      = "max"
)

// ApplyProfile overlays a named mode profile onto cfg, the way
// applySupervisorDefaults overlays supervisor-mode defaults onto unset
// flags: each profile only sets the fields it cares about, so a profile
// overlay composes with the rest of the precedence chain instead of
// replacing it wholesale. Applied once, right after Default(), before
// home/project/env/flag layers — any of those can still override a field
// the profile set. Unknown profile names are a no-op (spec.md §9: "Unknown
// profile names warn and fall back without enabling anything").
func ApplyProfile(cfg *Config, profile string) *Config {
	switch profile {
	case ProfileFast:
		applyFastProfile(cfg)
	case ProfileThorough:
		applyThoroughProfile(cfg)
	case ProfileAudit:
		applyAuditProfile(cfg)
	case ProfileVerify:
		applyVerifyProfile(cfg)
	case ProfileExplore:
		applyExploreProfile(cfg)
	case ProfilePromote:
		applyPromoteProfile(cfg)
	case ProfileMax:
		applyMaxProfile(cfg)
	}
	cfg.Profile = profile
	return cfg
}

// applyFastProfile favors iteration speed: quick pre/post/promotion verify
// (verify.final is left unchanged), a generous diff ceiling, cheat
// detection in warn-only mode.
func applyFastProfile(cfg *Config) {
	cfg.Verify.Pre = "quick"
	cfg.Verify.Post = "quick"
	cfg.Verify.Promotion = "quick"
	cfg.Gates.DiffCeiling = 1500
	cfg.Gates.CheatDetection = "warn"
	cfg.Gates.TestCoChange = "off"
}

// applyThoroughProfile is the balanced default: full promotion verify,
// moderate diff ceiling, cheat detection blocking.
func applyThoroughProfile(cfg *Config) {
	cfg.Verify.Pre = "quick"
	cfg.Verify.Post = "quick"
	cfg.Verify.Promotion = "full"
	cfg.Verify.Final = "full"
	cfg.Gates.DiffCeiling = 800
	cfg.Gates.CheatDetection = "block"
	cfg.Gates.TestCoChange = "warn"
}

// applyAuditProfile runs full verify at every stage and tightens the
// circuit breaker, for runs whose output will be reviewed by a human.
func applyAuditProfile(cfg *Config) {
	cfg.Verify.Pre = "full"
	cfg.Verify.Post = "full"
	cfg.Verify.Promotion = "full"
	cfg.Verify.Final = "full"
	cfg.Gates.CheatDetection = "block"
	cfg.Gates.TestCoChange = "strict"
	cfg.CircuitBreaker.MaxSameFailure = 1
}

// applyVerifyProfile is a verification-only stance: full verify everywhere,
// a 400-line diff ceiling, and no self-heal (a failing verify should stop
// the run rather than be silently rolled back).
func applyVerifyProfile(cfg *Config) {
	cfg.Verify.Pre = "full"
	cfg.Verify.Post = "full"
	cfg.Verify.Promotion = "full"
	cfg.Verify.Final = "full"
	cfg.Gates.SelfHeal = false
	cfg.Gates.DiffCeiling = 400
}

// applyExploreProfile relaxes gating for early-stage spike work: quick
// verify, cheat detection off, no enforced test co-change.
func applyExploreProfile(cfg *Config) {
	cfg.Verify.Pre = "quick"
	cfg.Verify.Post = "quick"
	cfg.Verify.Promotion = "quick"
	cfg.Gates.CheatDetection = "off"
	cfg.Gates.TestCoChange = "off"
	cfg.Gates.DiffCeiling = 3000
}

// applyPromoteProfile requires promotion-grade verify before any pass-mark
// (spec.md §4.2 preflight check "profile_requires_promotion_verify").
func applyPromoteProfile(cfg *Config) {
	cfg.Verify.Post = "promotion"
	cfg.Verify.Promotion = "promotion"
	cfg.Verify.Final = "promotion"
	cfg.Gates.CheatDetection = "block"
	cfg.Gates.TestCoChange = "strict"
}

// applyMaxProfile is the strictest stance: full/promotion verify
// everywhere, smallest diff ceiling, strict test co-change, and a
// single-strike circuit breaker.
func applyMaxProfile(cfg *Config) {
	cfg.Verify.Pre = "full"
	cfg.Verify.Post = "promotion"
	cfg.Verify.Promotion = "promotion"
	cfg.Verify.Final = "promotion"
	cfg.Gates.CheatDetection = "block"
	cfg.Gates.TestCoChange = "strict"
	cfg.Gates.DiffCeiling = 300
	cfg.CircuitBreaker.MaxSameFailure = 1
	cfg.CircuitBreaker.MaxNoProgress = 2
}

// RequiresPromotionVerify reports whether the profile mandates promotion (or
// stricter) verify at post/final stages, used by Preflight's
// profile_requires_promotion_verify check.
func RequiresPromotionVerify(profile string) bool {
	return profile == ProfilePromote || profile == ProfileMax
}

// RequiresFullVerify reports whether the profile mandates at least full
// verify, used by Preflight's profile_requires_full_verify check.
func RequiresFullVerify(profile string) bool {
	return profile == ProfileAudit || profile == ProfileVerify || profile == ProfileMax
}
