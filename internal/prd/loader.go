package prd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a PRD document from path. It is JSON-first: when the
// bytes don't parse as JSON it falls back to TOML, so a project may author
// its backlog in either format (spec.md §3 says only "parses as JSON" for
// the preflight check; TOML is a SPEC_FULL.md domain-stack addition grounded
// on BurntSushi/toml). Load does not run Validate; call it separately so
// callers can choose how to report validation errors.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prd %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw PRD bytes, trying JSON then TOML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if json.Valid(bytes.TrimSpace(data)) {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return &doc, nil
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Save writes the document back as JSON (the canonical persisted form used
// for iteration-record PRD snapshots), pretty-printed for diffability.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prd: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
