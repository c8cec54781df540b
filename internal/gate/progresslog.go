package gate

import (
	"regexp"
	"strings"
)

const minAppendedBytes = 200

var datePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// requiredSections are checked case-sensitively against the literal labels
// spec.md §4.8/13 names; each must have "non-trivial content length" (more
// than just the label itself).
var requiredSections = []string{"Summary:", "Commands:", "Evidence:"}
var alternativeSections = []string{"Next:", "Gotcha:"}

// gateProgressLog is gate 13 (spec.md §4.8/13): the final gate. The agent
// must have append-only extended the progress file by at least
// minAppendedBytes, with the required sections populated, the story id
// present, and a date present; the file's prior prefix bytes must hash
// equal the pre-iteration snapshot.
func gateProgressLog(ctx Context) (*Block, *SkippedCheck) {
	if int64(len(ctx.ProgressLogAfter)) < ctx.ProgressLogBeforeSize {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "progress log shrank during the iteration"}, nil
	}
	prefix := ctx.ProgressLogAfter[:ctx.ProgressLogBeforeSize]
	if sha256Hex(prefix) != ctx.ProgressLogBeforePrefix {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "progress log prefix was modified, not just appended to"}, nil
	}

	appended := string(ctx.ProgressLogAfter[ctx.ProgressLogBeforeSize:])
	if len(strings.TrimSpace(appended)) < minAppendedBytes {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "appended progress log section is shorter than the required minimum"}, nil
	}

	for _, section := range requiredSections {
		if !hasNonTrivialSection(appended, section) {
			return &Block{Reason: ReasonProgressLogInvalid, Detail: "missing or empty required section: " + section}, nil
		}
	}
	if !hasAnyNonTrivialSection(appended, alternativeSections) {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "missing both Next: and Gotcha: sections"}, nil
	}

	if !strings.Contains(appended, ctx.Story.ID) {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "appended section does not mention the story id"}, nil
	}
	if !datePattern.MatchString(appended) {
		return &Block{Reason: ReasonProgressLogInvalid, Detail: "appended section does not contain a YYYY-MM-DD date"}, nil
	}
	return nil, nil
}

// hasNonTrivialSection reports whether label appears in text followed by
// more than whitespace before the next section label or end of text.
func hasNonTrivialSection(text, label string) bool {
	idx := strings.Index(text, label)
	if idx < 0 {
		return false
	}
	rest := text[idx+len(label):]
	end := len(rest)
	for _, other := range append(append([]string{}, requiredSections...), alternativeSections...) {
		if other == label {
			continue
		}
		if i := strings.Index(rest, other); i >= 0 && i < end {
			end = i
		}
	}
	return len(strings.TrimSpace(rest[:end])) > 0
}

func hasAnyNonTrivialSection(text string, labels []string) bool {
	for _, l := range labels {
		if hasNonTrivialSection(text, l) {
			return true
		}
	}
	return false
}
