package gate

// gateStoryVerify is gate 11 (spec.md §4.8/11): run the story's verify
// commands excluding the standard verifier already run. Each command must
// appear in the static allowlist unless bypassed; forbidden commands block
// story_verify_disallowed. The gate then runs each command through
// ctx.RunStoryVerify (supplied by internal/harness); the first failing
// command blocks verify_post_failed. A story with no extra commands is
// recorded as the "no_story_verify_commands" skip (spec.md "Boundary
// behaviors").
func gateStoryVerify(ctx Context) (*Block, *SkippedCheck) {
	commands := ctx.Story.StoryVerifyCommands(ctx.StandardVerifyCommand)
	if len(commands) == 0 {
		return nil, &SkippedCheck{Name: "story_verify", Reason: "no_story_verify_commands"}
	}

	bypass := ctx.Cfg != nil && ctx.Cfg.Gates.AllowStoryVerifyBypass
	if !bypass {
		for _, cmd := range commands {
			if ctx.StoryVerifyAllowlist != nil && !ctx.StoryVerifyAllowlist[cmd] {
				return &Block{Reason: ReasonStoryVerifyDisallowed, Detail: cmd}, nil
			}
		}
	}

	if ctx.RunStoryVerify == nil {
		return nil, &SkippedCheck{Name: "story_verify", Reason: "no_story_verify_runner_configured"}
	}
	for _, cmd := range commands {
		if err := ctx.RunStoryVerify(cmd); err != nil {
			return &Block{Reason: ReasonVerifyPostFailed, Detail: "story verify command failed: " + cmd + ": " + err.Error()}, nil
		}
	}
	return nil, nil
}
