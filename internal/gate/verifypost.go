package gate

// gateVerifyPost is gate 10 (spec.md §4.8/10). It picks the verify mode
// (verify.post, promoted to verify.promotion when a pass-mark is present
// and the configured mode is "quick"), runs it through ctx.RunVerifyPost,
// and blocks verify_post_failed on any failure. Self-heal is not done
// here: when it is enabled, internal/harness attempts rollback and a
// verify-post re-run after the pipeline has returned this block.
func gateVerifyPost(ctx Context) (*Block, *SkippedCheck) {
	if ctx.RunVerifyPost == nil {
		return nil, &SkippedCheck{Name: "verify_post", Reason: "no_verify_post_runner_configured"}
	}
	mode := "quick"
	if ctx.Cfg != nil && ctx.Cfg.Verify.Post != "" {
		mode = ctx.Cfg.Verify.Post
	}
	if ctx.AgentOutcome.MarkPass != "" && mode == "quick" && ctx.Cfg != nil && ctx.Cfg.Verify.Promotion != "" {
		mode = ctx.Cfg.Verify.Promotion
	}

	res, err := ctx.RunVerifyPost(mode)
	if err != nil {
		return &Block{Reason: ReasonVerifyPostFailed, Detail: err.Error()}, nil
	}
	if !res.Passed {
		return &Block{Reason: ReasonVerifyPostFailed, Detail: "verify-post exited non-zero or lacked a signature"}, nil
	}
	return nil, nil
}
