// Package cliutil holds small terminal-presentation helpers shared by the
// cmd/ralph subcommands: status colorization and tabular output.
//
// Grounded on other_examples/manifests/daydemir-ralph (a Go project named
// "ralph" that pulls in github.com/fatih/color for its own CLI output) and
// the teacher's cli/internal/formatter package for the table-writer shape.
package cliutil

import "github.com/fatih/color"

var (
	passColor    = color.New(color.FgGreen, color.Bold)
	blockedColor = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	dimColor     = color.New(color.Faint)
)

// Status colorizes a PASS/BLOCKED/WARN/other status word for a TTY.
// fatih/color disables itself automatically when stdout isn't a terminal
// or NO_COLOR is set, so callers don't need to check isatty themselves.
func Status(s string) string {
	switch s {
	case "PASS", "pass":
		return passColor.Sprint(s)
	case "BLOCKED", "blocked", "FAIL", "fail":
		return blockedColor.Sprint(s)
	case "WARN", "warn", "SKIPPED", "skipped":
		return warnColor.Sprint(s)
	default:
		return s
	}
}

// Dim renders secondary detail (paths, hashes, timestamps) less prominently.
func Dim(s string) string {
	return dimColor.Sprint(s)
}

// Bool renders a pass/fail boolean as a colorized PASS/FAIL word.
func Bool(passed bool) string {
	if passed {
		return Status("PASS")
	}
	return Status("FAIL")
}
