package gate

// Severity is a contract-review violation's severity (spec.md §6).
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

// RecommendedAction is a contract-review violation's recommended remedy
// (spec.md §6).
type RecommendedAction string

const (
	ActionRevert        RecommendedAction = "REVERT"
	ActionPatchContract RecommendedAction = "PATCH_CONTRACT"
	ActionPatchCode     RecommendedAction = "PATCH_CODE"
	ActionNeedsHuman    RecommendedAction = "NEEDS_HUMAN"
)

// Decision is the reviewer's overall verdict (spec.md §3/§4.8-12).
type Decision string

const (
	DecisionPass    Decision = "PASS"
	DecisionFail    Decision = "FAIL"
	DecisionBlocked Decision = "BLOCKED"
)

// PassFlipDecision is the reviewer's specific verdict on whether the
// requested pass-mark is warranted (spec.md §6).
type PassFlipDecision string

const (
	PassFlipAllow   PassFlipDecision = "ALLOW"
	PassFlipDeny    PassFlipDecision = "DENY"
	PassFlipBlocked PassFlipDecision = "BLOCKED"
)

// Violation is one item in a contract judgment's violations list.
type Violation struct {
	Description       string            `json:"description"`
	Severity          Severity          `json:"severity"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}

// ContractJudgment is the schema-valid JSON the external contract reviewer
// must produce (spec.md §3 "Iteration Record... contract-review JSON",
// §6 "Contract reviewer contract").
type ContractJudgment struct {
	SelectedStoryID    string      `json:"selected_story_id"`
	Decision           Decision    `json:"decision"`
	Confidence         string      `json:"confidence"` // high|med|low
	ContractRefsChecked []string   `json:"contract_refs_checked"`
	ScopeCheck         bool        `json:"scope_check"`
	VerifyCheck        bool        `json:"verify_check"`
	PassFlipCheck      struct {
		DecisionOnPassFlip PassFlipDecision `json:"decision_on_pass_flip"`
	} `json:"pass_flip_check"`
	Violations       []Violation `json:"violations"`
	RequiredFollowups []string   `json:"required_followups"`
	Rationale        []string    `json:"rationale"`
}

// SyntheticFail builds the FAIL judgment gateContractReview uses when no
// reviewer is configured; its rationale becomes the block detail, and the
// judgment itself is not written to the iteration directory. A reviewer
// that fails to run or returns invalid JSON also blocks
// contract_review_failed, with the error as the detail and no
// SyntheticFail judgment.
func SyntheticFail(storyID, reason string) ContractJudgment {
	j := ContractJudgment{
		SelectedStoryID: storyID,
		Decision:        DecisionFail,
		Confidence:      "low",
		Rationale:       []string{"synthetic judgment: " + reason},
	}
	j.PassFlipCheck.DecisionOnPassFlip = PassFlipBlocked
	return j
}

// gateContractReview is gate 12 (spec.md §4.8/12). Only Decision=PASS
// permits proceeding.
func gateContractReview(ctx Context) (*Block, *SkippedCheck) {
	if ctx.RunContractReview == nil {
		j := SyntheticFail(ctx.Story.ID, "no contract reviewer configured")
		return &Block{Reason: ReasonContractReviewFailed, Detail: j.Rationale[0]}, nil
	}
	judgment, err := ctx.RunContractReview(ctx)
	if err != nil {
		return &Block{Reason: ReasonContractReviewFailed, Detail: err.Error()}, nil
	}
	if judgment.Decision != DecisionPass {
		return &Block{Reason: ReasonContractReviewFailed, Detail: "contract review decision=" + string(judgment.Decision)}, nil
	}
	return nil, nil
}
