package prd

import "errors"

var (
	// ErrInvalidDocument is returned when a PRD file parses as neither JSON
	// nor TOML.
	ErrInvalidDocument = errors.New("prd: document is not valid JSON or TOML")

	// ErrDuplicateID is returned when two stories share an identifier
	// (spec.md §3 invariant: "identifiers are globally unique").
	ErrDuplicateID = errors.New("prd: duplicate story id")

	// ErrUnknownDependency is returned when a story depends on an id absent
	// from the document.
	ErrUnknownDependency = errors.New("prd: dependency references unknown story id")

	// ErrForwardDependency is returned when a story depends on a story in a
	// later slice (spec.md §3 invariant: "dependencies never point forward
	// across slices").
	ErrForwardDependency = errors.New("prd: dependency points to a later slice")

	// ErrMissingStandardVerify is returned when a story's verify list omits
	// the document's standard verify command.
	ErrMissingStandardVerify = errors.New("prd: story is missing the standard verify command")
)
