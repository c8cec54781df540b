package gate

import "regexp"

// exemptPattern marks changed files that count as neither source nor test
// for the test-co-change gate (spec.md §4.8/8). Reuses testPathPattern from
// cheat.go for "is this a test file".
var exemptPattern = regexp.MustCompile(`(?i)\.(md|txt|ya?ml|json|toml)$|^docs/|^\.github/|^\.ralph/`)

func isSourceFile(path string) bool {
	if testPathPattern.MatchString(path) || exemptPattern.MatchString(path) {
		return false
	}
	return true
}

// gateTestCoChange is gate 8 (spec.md §4.8/8): warn, or block in strict
// mode, if a source file changed with no accompanying test-file change.
func gateTestCoChange(ctx Context) (*Block, *SkippedCheck) {
	policy := "warn"
	if ctx.Cfg != nil && ctx.Cfg.Gates.TestCoChange != "" {
		policy = ctx.Cfg.Gates.TestCoChange
	}
	if policy == "off" {
		return nil, &SkippedCheck{Name: "test_co_change", Reason: "test_co_change_off"}
	}

	sourceChanged, testChanged := false, false
	for _, f := range ctx.ChangedFiles {
		if testPathPattern.MatchString(f) {
			testChanged = true
		} else if isSourceFile(f) {
			sourceChanged = true
		}
	}
	if !sourceChanged || testChanged {
		return nil, nil
	}
	if policy == "strict" {
		return &Block{Reason: ReasonNoTestChanges, Detail: "source files changed with no accompanying test file"}, nil
	}
	return nil, &SkippedCheck{Name: "test_co_change", Reason: "warn_only: source changed with no test file"}
}
