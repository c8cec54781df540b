package gate

import (
	"regexp"
	"strings"
)

// testPathPattern recognizes common test-file naming conventions across
// language ecosystems, used by the cheat-detection "deletion of any file
// whose path matches test conventions" check (spec.md §4.8/7).
var testPathPattern = regexp.MustCompile(`(?i)(^|/)(tests?|spec|__tests__)(/|$)|_test\.[a-z]+$|\.test\.[a-z]+$|_spec\.[a-z]+$|test_[^/]+\.[a-z]+$`)

var assertionTokenPattern = regexp.MustCompile(`(?i)\b(assert|expect|should|must)\b`)

// testSkipMarkerPatterns recognizes test-skip markers across several
// language dialects (spec.md §4.8/7: "addition of test-skip markers in any
// recognized language dialect").
var testSkipMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bt\.skip\(`),          // Go
	regexp.MustCompile(`(?i)\b(it|describe|test)\.skip\(`), // JS/TS (mocha/jest)
	regexp.MustCompile(`(?i)@pytest\.mark\.skip`),  // Python
	regexp.MustCompile(`(?i)\bxit\(|\bxdescribe\(`), // Jasmine/Jest
	regexp.MustCompile(`(?i)#\s*nocheck|#\s*noqa`), // suppress-diagnostic comments in some linters
}

// suppressCommentPattern recognizes "suppress next diagnostic" style
// comments across common linters (spec.md §4.8/7: "newly added 'suppress
// next diagnostic' comments").
var suppressCommentPattern = regexp.MustCompile(`(?i)//\s*nolint|#\s*noqa|//\s*eslint-disable|#\s*type:\s*ignore`)

// DiffLine is one line of a unified diff, classified +/-/context, used by
// the cheat and test-co-change gates. Callers (internal/gitutil or a
// dedicated diff reader) build this slice from `git diff`.
type DiffLine struct {
	File    string
	Added   bool
	Removed bool
	Text    string
}

// gateCheat is gate 7 (spec.md §4.8/7). Matches block unless
// Cfg.Gates.CheatDetection is "off"; "warn" logs but does not block (the
// caller surfaces warnings separately — Run() only reports a Block).
func gateCheat(ctx Context) (*Block, *SkippedCheck) {
	mode := "block"
	var allowlist []string
	if ctx.Cfg != nil {
		if ctx.Cfg.Gates.CheatDetection != "" {
			mode = ctx.Cfg.Gates.CheatDetection
		}
		allowlist = ctx.Cfg.Gates.CheatAllowlistPatterns
	}
	if mode == "off" {
		return nil, &SkippedCheck{Name: "cheat", Reason: "cheat_detection_off"}
	}

	signal := DetectCheating(ctx.DiffLines, ctx.ChangedFiles, ctx.VerifierPath, ctx.CIWorkflowGlobs, allowlist)
	if signal == "" {
		return nil, nil
	}
	if mode == "warn" {
		return nil, &SkippedCheck{Name: "cheat", Reason: "warn_only: " + signal}
	}
	return &Block{Reason: ReasonCheatingDetected, Detail: signal}, nil
}

// DetectCheating scans a diff for the signals enumerated in spec.md §4.8/7
// and returns a human-readable description of the first one found, or ""
// if none. allowlistRegex entries are removed from consideration first
// (the opt-in "allowlist-regex optionally removed" behavior).
func DetectCheating(lines []DiffLine, changedFiles []string, verifierPath string, ciWorkflowGlobs, allowlistRegex []string) string {
	filtered := filterAllowlisted(lines, allowlistRegex)

	for _, f := range changedFiles {
		if testPathPattern.MatchString(f) && fileWasDeleted(filtered, f) {
			return "deletion of test file: " + f
		}
		if f == verifierPath {
			return "modification of verifier script: " + f
		}
		if matchesAny(ciWorkflowGlobs, f) {
			return "modification of CI workflow file: " + f
		}
	}

	for _, l := range filtered {
		if l.Removed && assertionTokenPattern.MatchString(l.Text) {
			return "removal of assertion-like line in " + l.File
		}
		if l.Added {
			for _, skipPat := range testSkipMarkerPatterns {
				if skipPat.MatchString(l.Text) {
					return "addition of test-skip marker in " + l.File
				}
			}
			if suppressCommentPattern.MatchString(l.Text) {
				return "addition of suppress-diagnostic comment in " + l.File
			}
		}
	}
	return ""
}

func filterAllowlisted(lines []DiffLine, allowlistRegex []string) []DiffLine {
	if len(allowlistRegex) == 0 {
		return lines
	}
	var patterns []*regexp.Regexp
	for _, p := range allowlistRegex {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}
	if len(patterns) == 0 {
		return lines
	}
	out := make([]DiffLine, 0, len(lines))
	for _, l := range lines {
		allowed := false
		for _, re := range patterns {
			if re.MatchString(l.File) {
				allowed = true
				break
			}
		}
		if !allowed {
			out = append(out, l)
		}
	}
	return out
}

func fileWasDeleted(lines []DiffLine, file string) bool {
	hasRemoval, hasAddition := false, false
	for _, l := range lines {
		if l.File != file {
			continue
		}
		if l.Removed {
			hasRemoval = true
		}
		if l.Added {
			hasAddition = true
		}
	}
	return hasRemoval && !hasAddition
}

// StrippedComment is a small helper for callers building DiffLine slices
// from raw unified-diff text, trimming the leading +/- marker.
func StrippedComment(raw string) string {
	return strings.TrimPrefix(strings.TrimPrefix(raw, "+"), "-")
}
