package gate

// gatePassTouch is gate 9 (spec.md §4.8/9). If and only if the agent
// requested a pass-mark (AgentOutcome.MarkPass != ""), at least one changed
// file must match scope.touch, or at least one changed file must fall
// outside the meta-paths list (PRD, progress log, harness-internal files).
//
// Open Question #1 (spec.md §9, decided in SPEC_FULL.md/DESIGN.md): PRD
// edits never count as a non-meta touch, even when agent_may_edit_prd is
// set — the PRD path is always in metaPaths regardless of that flag.
func gatePassTouch(ctx Context) (*Block, *SkippedCheck) {
	if ctx.AgentOutcome.MarkPass == "" {
		return nil, &SkippedCheck{Name: "pass_touch", Reason: "no_pass_mark_requested"}
	}

	meta := map[string]bool{ctx.PRDPath: true, ctx.ProgressLogPath: true}
	for _, hp := range ctx.HarnessPaths {
		meta[hp] = true
	}

	touchMatched := false
	hasNonMeta := false
	for _, f := range ctx.ChangedFiles {
		if matchesAny(ctx.Story.Scope.Touch, f) {
			touchMatched = true
		}
		if !meta[f] {
			hasNonMeta = true
		}
	}

	if touchMatched || hasNonMeta {
		return nil, nil
	}
	return &Block{Reason: ReasonPassFlipNoTouch, Detail: "pass-mark requested but no changed file matches scope.touch or falls outside meta paths"}, nil
}
