// Package selector implements the Selector component (spec.md §4.5):
// choosing one eligible story in the active slice, either by harness
// priority scan or by delegating the choice to the coding agent via a
// strict single-line sentinel prompt.
//
// Grounded on the teacher's queueSelection / highest-severity item pick in
// cmd/ao/rpi_loop.go (pickQueueItem-style priority scan over parsed queue
// entries) generalized from "highest severity" to "highest priority,
// document order tie-break" over prd.CandidateAnalysis.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ralphctl/ralph/internal/prd"
)

// BlockReason enumerates the typed selection blocks from spec.md §7.
type BlockReason string

const (
	BlockMissingDependency   BlockReason = "missing_dependency_id"
	BlockDependencyDeadlock  BlockReason = "dependency_deadlock"
	BlockNeedsHumanDecision  BlockReason = "needs_human_decision"
	BlockInvalidSelection    BlockReason = "invalid_selection"
	BlockMissingStandardVerify BlockReason = "missing_verify_sh_in_story"

	// BlockNoUnfinishedStories means every story already passes. This is
	// not a deadlock: callers should check prd.Document.AllPass() before
	// calling Select and route to the Completion Detector instead of
	// treating this as a block.
	BlockNoUnfinishedStories BlockReason = "no_unfinished_stories"
)

// Block is returned when no story can be selected.
type Block struct {
	Reason   BlockReason
	Detail   string
	Analysis []prd.CandidateAnalysis
}

func (b *Block) Error() string { return fmt.Sprintf("selector: %s: %s", b.Reason, b.Detail) }

// Selection is the successful outcome: the chosen story plus the analysis
// that justified it (spec.md §3 "selection record (chosen id + dependency
// analysis)").
type Selection struct {
	Story    prd.Story
	Analysis []prd.CandidateAnalysis
}

// Mode names the selection strategy (spec.md §4.5).
type Mode string

const (
	ModeHarness Mode = "harness"
	ModeAgent   Mode = "agent"
)

// AgentSelect is invoked in agent mode to obtain the agent's raw selection
// output; selector parses and validates it. Kept as an injectable function
// so the selector package never imports internal/agent directly (avoiding
// an import cycle with the Agent Invoker, which itself may need to select
// before the main gate pipeline runs).
type AgentSelect func(candidates []prd.Story) (string, error)

var selectedIDPattern = regexp.MustCompile(`^<selected_id>([^<\n]+)</selected_id>$`)

// Select picks one eligible story from doc's active slice, per the
// standard-verify-command guard and the needs-human-decision guard
// described in spec.md §4.5.
func Select(doc *prd.Document, mode Mode, standardVerifyCmd string, agentSelect AgentSelect) (*Selection, *Block) {
	slice, ok := doc.ActiveSlice()
	if !ok {
		return nil, &Block{Reason: BlockNoUnfinishedStories, Detail: "no unfinished stories remain"}
	}

	analysis := doc.AnalyzeSlice(slice)
	if prd.HasMissingDependency(analysis) {
		return nil, &Block{Reason: BlockMissingDependency, Detail: "a candidate declares a dependency id absent from the PRD", Analysis: analysis}
	}

	for _, ca := range analysis {
		story, _ := doc.StoryByID(ca.StoryID)
		if story.NeedsHumanDecision {
			return nil, &Block{Reason: BlockNeedsHumanDecision, Detail: story.ID, Analysis: analysis}
		}
	}

	eligible := prd.EligibleCandidates(analysis)
	if len(eligible) == 0 {
		return nil, &Block{Reason: BlockDependencyDeadlock, Detail: fmt.Sprintf("no eligible candidate in slice %d", slice), Analysis: analysis}
	}

	eligibleStories := make([]prd.Story, 0, len(eligible))
	for _, ca := range eligible {
		s, _ := doc.StoryByID(ca.StoryID)
		eligibleStories = append(eligibleStories, s)
	}

	var chosenID string
	if mode == ModeAgent && agentSelect != nil {
		raw, err := agentSelect(eligibleStories)
		if err != nil {
			return nil, &Block{Reason: BlockInvalidSelection, Detail: err.Error(), Analysis: analysis}
		}
		id, err := parseSelectedID(raw)
		if err != nil {
			return nil, &Block{Reason: BlockInvalidSelection, Detail: err.Error(), Analysis: analysis}
		}
		chosenID = id
	} else {
		chosenID = pickHighestPriority(eligibleStories)
	}

	story, ok := doc.StoryByID(chosenID)
	if !ok || story.Passes || !isEligible(eligible, chosenID) || storySlice(doc, chosenID) != slice {
		return nil, &Block{Reason: BlockInvalidSelection, Detail: fmt.Sprintf("selection %q failed eligibility/slice/passes validation", chosenID), Analysis: analysis}
	}

	if standardVerifyCmd != "" && !story.HasStandardVerify(standardVerifyCmd) {
		return nil, &Block{Reason: BlockMissingStandardVerify, Detail: story.ID, Analysis: analysis}
	}

	return &Selection{Story: story, Analysis: analysis}, nil
}

// pickHighestPriority chooses the eligible story with the highest
// priority, tie-broken by appearance order (eligible already preserves
// document order from AnalyzeSlice/EligibleCandidates).
func pickHighestPriority(eligible []prd.Story) string {
	best := eligible[0]
	for _, s := range eligible[1:] {
		if s.Priority > best.Priority {
			best = s
		}
	}
	return best.ID
}

func isEligible(eligible []prd.CandidateAnalysis, id string) bool {
	for _, ca := range eligible {
		if ca.StoryID == id {
			return true
		}
	}
	return false
}

func storySlice(doc *prd.Document, id string) int {
	s, _ := doc.StoryByID(id)
	return s.Slice
}

// parseSelectedID extracts exactly one <selected_id>X</selected_id> line
// from raw agent output; anything else is rejected (spec.md §4.5: "parse
// exactly one <selected_id>X</selected_id> line (no other output allowed)").
func parseSelectedID(raw string) (string, error) {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	nonEmpty := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(l))
		}
	}
	if len(nonEmpty) != 1 {
		return "", errors.New("agent selection output must be exactly one line")
	}
	m := selectedIDPattern.FindStringSubmatch(nonEmpty[0])
	if m == nil {
		return "", errors.New("agent selection output did not match <selected_id>ID</selected_id>")
	}
	return strings.TrimSpace(m[1]), nil
}
