package prd

import "sort"

// DependencyStatus classifies a single dependency edge for a candidate
// story, per spec.md §4.5.
type DependencyStatus string

const (
	DepMissing             DependencyStatus = "missing_dependency_id"
	DepBlockedByHuman       DependencyStatus = "blocked_by_human_decision"
	DepUnsatisfiedNotPassed DependencyStatus = "unsatisfied_not_passed"
	DepSatisfied            DependencyStatus = "satisfied"
)

// DependencyEdge is one dependency relationship from a candidate story to
// one of its declared dependency ids.
type DependencyEdge struct {
	DependencyID string           `json:"dependency_id"`
	Status       DependencyStatus `json:"status"`
}

// CandidateAnalysis is the per-story dependency analysis record persisted
// in the selection record (spec.md §3 "Iteration Record... selection record
// (chosen id + dependency analysis)").
type CandidateAnalysis struct {
	StoryID  string           `json:"story_id"`
	Eligible bool             `json:"eligible"`
	Edges    []DependencyEdge `json:"edges"`
}

// AnalyzeSlice builds the dependency analysis for every unfinished story in
// slice, modeled as a set of nodes (story ids) plus directed edges (each
// story's Dependencies list) rather than in-structure back-pointers — graph
// state lives entirely in these returned value types, not in fields on
// Story itself (spec.md §9 "Cycles vs. arena+index (re-architecture)").
func (d *Document) AnalyzeSlice(slice int) []CandidateAnalysis {
	byID := make(map[string]Story, len(d.Stories))
	for _, s := range d.Stories {
		byID[s.ID] = s
	}

	var candidates []Story
	for _, s := range d.Stories {
		if s.Slice == slice && !s.Passes {
			candidates = append(candidates, s)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return false }) // preserve document order

	out := make([]CandidateAnalysis, 0, len(candidates))
	for _, s := range candidates {
		ca := CandidateAnalysis{StoryID: s.ID}
		eligible := true
		for _, depID := range s.Dependencies {
			dep, ok := byID[depID]
			var status DependencyStatus
			switch {
			case !ok:
				status = DepMissing
				eligible = false
			case dep.NeedsHumanDecision:
				status = DepBlockedByHuman
				eligible = false
			case !dep.Passes:
				status = DepUnsatisfiedNotPassed
				eligible = false
			default:
				status = DepSatisfied
			}
			ca.Edges = append(ca.Edges, DependencyEdge{DependencyID: depID, Status: status})
		}
		ca.Eligible = eligible
		out = append(out, ca)
	}
	return out
}

// HasMissingDependency reports whether any analysis entry references an
// unknown story id (spec.md §4.5: "If any candidate has missing_dependency_id").
func HasMissingDependency(analyses []CandidateAnalysis) bool {
	for _, ca := range analyses {
		for _, e := range ca.Edges {
			if e.Status == DepMissing {
				return true
			}
		}
	}
	return false
}

// EligibleCandidates returns the subset of analyses whose story is eligible
// (all dependencies satisfied).
func EligibleCandidates(analyses []CandidateAnalysis) []CandidateAnalysis {
	var out []CandidateAnalysis
	for _, ca := range analyses {
		if ca.Eligible {
			out = append(out, ca)
		}
	}
	return out
}

// Validate checks the document-level invariants from spec.md §3: globally
// unique ids, dependencies resolve to a known story, and dependencies never
// point forward across slices.
func (d *Document) Validate() error {
	seen := make(map[string]Story, len(d.Stories))
	for _, s := range d.Stories {
		if _, dup := seen[s.ID]; dup {
			return ErrDuplicateID
		}
		seen[s.ID] = s
	}
	for _, s := range d.Stories {
		for _, depID := range s.Dependencies {
			dep, ok := seen[depID]
			if !ok {
				return ErrUnknownDependency
			}
			if dep.Slice > s.Slice {
				return ErrForwardDependency
			}
		}
		if d.Header.StandardVerifyCommand != "" && !s.HasStandardVerify(d.Header.StandardVerifyCommand) {
			return ErrMissingStandardVerify
		}
	}
	return nil
}
