// Package harness wires the Lock Manager, Preflight, Selector, Verifier
// Invoker, Agent Invoker, Gate Pipeline, Self-Heal & Circuit Breaker,
// Completion Detector, Artifact Manifest Writer, Metrics Sink, and Rate
// Limiter into the single linear main loop (spec.md §2 "Control flow").
//
// Grounded on the teacher's cmd/ao/rpi_loop_supervisor.go: the
// cycleFailureError kind-tagging (task vs. infrastructure) generalizes here
// to blockError (a typed, reason-coded terminal outcome), and
// runRPISupervisedCycle's single-iteration shape (heal → engine → gates →
// landing) generalizes to runIteration (select → verify-pre → agent →
// gates → land).
package harness

// Reason enumerates the block/outcome reason codes from spec.md §7 that
// this package (as opposed to internal/gate or internal/selector) is
// responsible for emitting: preflight, control, verification, and
// completion codes.
type Reason string

const (
	// Preflight (spec.md §4.2, §7).
	ReasonMissingGit                   Reason = "missing_git"
	ReasonMissingJQ                    Reason = "missing_jq"
	ReasonMissingTimeoutOrPython3      Reason = "missing_timeout_or_python3"
	ReasonMissingAgentCmd              Reason = "missing_agent_cmd"
	ReasonMissingPRD                   Reason = "missing_prd"
	ReasonInvalidPRDJSON               Reason = "invalid_prd_json"
	ReasonInvalidPRDSchema             Reason = "invalid_prd_schema"
	ReasonMissingVerifySh              Reason = "missing_verify_sh"
	ReasonMissingContractFile          Reason = "missing_contract_file"
	ReasonMissingImplementationPlan    Reason = "missing_implementation_plan"
	ReasonDirtyWorktree                Reason = "dirty_worktree"
	ReasonLockHeld                     Reason = "lock_held"
	ReasonProfileRequiresPromotionVerify Reason = "profile_requires_promotion_verify"
	ReasonProfileRequiresFullVerify     Reason = "profile_requires_full_verify"

	// Verification (spec.md §7).
	ReasonVerifyPreFailed     Reason = "verify_pre_failed"
	ReasonVerifyShaMissingPre Reason = "verify_sha_missing_pre"
	ReasonAgentTimeout        Reason = "agent_timeout"
	ReasonUpdateTaskFailed    Reason = "update_task_failed"

	// ReasonVerifyPostFailedAfterSelfHeal is used instead of the gate
	// package's verify_post_failed when self-heal was attempted (rollback
	// plus a verify-post re-run) and the repository still would not verify.
	// Kept distinct from verify_post_failed so ExitCode can reserve exit 8
	// for the no-self-heal case (spec.md §6).
	ReasonVerifyPostFailedAfterSelfHeal Reason = "verify_post_failed_after_self_heal"

	// Control (spec.md §7).
	ReasonCircuitBreaker          Reason = "circuit_breaker"
	ReasonNoProgress              Reason = "no_progress"
	ReasonMaxItersExceeded        Reason = "max_iters_exceeded"
	ReasonMarkPassForbidden       Reason = "mark_pass_forbidden"
	ReasonMarkPassMismatch        Reason = "mark_pass_mismatch"
	ReasonPromoteStoryVerifyMissing Reason = "promote_story_verify_missing"
	ReasonPromoteStoryVerifyFailed  Reason = "promote_story_verify_failed"
	ReasonPromoteMarkPassMissing    Reason = "promote_mark_pass_missing"

	// Completion (spec.md §7).
	ReasonIncompleteCompletion      Reason = "incomplete_completion"
	ReasonFinalVerifyFailed         Reason = "final_verify_failed"
	ReasonFinalVerifyMissingSha     Reason = "final_verify_missing_sha"
	ReasonFinalVerifyMissingIterDir Reason = "final_verify_missing_iter_dir"
	ReasonFinalVerifyLogCopyFailed  Reason = "final_verify_log_copy_failed"
)

// blockError is the harness package's typed terminal outcome, mirroring
// gate.Block and selector.Block but for reasons that originate above those
// packages (preflight, control-loop, completion).
type blockError struct {
	Reason Reason
	Detail string
}

func (e *blockError) Error() string { return string(e.Reason) + ": " + e.Detail }

func block(reason Reason, detail string) *blockError {
	return &blockError{Reason: reason, Detail: detail}
}

// ExitCode maps a terminal outcome to the CLI exit codes in spec.md §6:
// 0 success; 1 generic block; 2 preflight block; 8 verify-post fail with
// self-heal never attempted; 9 cheating detected. A verify-post failure
// that self-heal attempted and still could not clear carries
// ReasonVerifyPostFailedAfterSelfHeal instead, which falls through to the
// generic block code rather than reusing 8.
func ExitCode(reason Reason, isPreflight bool) int {
	switch {
	case reason == "":
		return 0
	case isPreflight:
		return 2
	case reason == "cheating_detected":
		return 9
	case reason == "verify_post_failed":
		return 8
	default:
		return 1
	}
}
