// Package agent implements the Agent Invoker (spec.md §4.7): renders the
// prompt template, captures guard hashes around the subprocess, spawns the
// coding agent under a timeout while the PRD and state file are read-only,
// and extracts the fixed sentinel tags from its output.
//
// Grounded on the teacher's runLoopCommandWithTimeout
// (cmd/ao/rpi_loop_supervisor.go) for the timeout/exec shape, and its
// VerbosePrintf convention for progress lines.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ralphctl/ralph/internal/guard"
	"github.com/ralphctl/ralph/internal/prd"
	"github.com/ralphctl/ralph/internal/state"
)

// Invoker spawns the coding agent subprocess.
type Invoker struct {
	Command    string
	Args       []string
	PromptFlag string
	Timeout    time.Duration
}

// Outcome is everything the Gate Pipeline needs from one agent run.
type Outcome struct {
	Stdout       string
	Stderr       string
	TimedOut     bool
	ExitCode     int
	MarkPass     string // story id, empty if none requested
	Completed    bool   // saw the fixed completion sentinel
	GuardBefore  guard.Snapshot
	GuardAfter   guard.Snapshot
	GuardMismatch *guard.Mismatch
	Duration     time.Duration
}

const completionSentinel = "<promise>COMPLETE</promise>"

var (
	markPassPattern = regexp.MustCompile(`<mark_pass>([^<\n]+)</mark_pass>`)
)

// ErrMultipleMarkPass is returned when agent output contains more than one
// <mark_pass> tag (spec.md §4.7: "at most one").
var ErrMultipleMarkPass = errors.New("agent: output contains more than one <mark_pass> tag")

// Invoke protects protectedPaths for the duration of the subprocess,
// captures guard hashes, and runs the agent with the already-rendered
// prompt.
func (inv *Invoker) Invoke(ctx context.Context, workDir, prompt string, protectedPaths []string, harnessScript, workflowDir, stateDir string) (Outcome, error) {
	for _, p := range protectedPaths {
		if err := state.Protect(p); err != nil {
			return Outcome{}, err
		}
	}
	defer func() {
		for _, p := range protectedPaths {
			_ = state.Unprotect(p)
		}
	}()

	before, err := guard.Capture(harnessScript, workflowDir, stateDir)
	if err != nil {
		return Outcome{}, fmt.Errorf("agent: capture guard hashes before invocation: %w", err)
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, inv.Args...)
	if inv.PromptFlag != "" {
		args = append(args, inv.PromptFlag, prompt)
	} else {
		args = append(args, prompt)
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, inv.Command, args...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	duration := time.Since(start)

	after, err := guard.Capture(harnessScript, workflowDir, stateDir)
	if err != nil {
		return Outcome{}, fmt.Errorf("agent: capture guard hashes after invocation: %w", err)
	}

	out := Outcome{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		GuardBefore: before,
		GuardAfter:  after,
		GuardMismatch: guard.Compare(before, after),
		Duration:    duration,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		out.ExitCode = 124
		return out, nil
	}
	out.ExitCode = exitCode(runErr)

	markPass, err := ExtractMarkPass(out.Stdout)
	if err != nil {
		return out, err
	}
	out.MarkPass = markPass
	out.Completed = strings.Contains(out.Stdout, completionSentinel)
	return out, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// ExtractMarkPass returns the single story id requested by a <mark_pass>
// tag, or "" if none is present. More than one tag is an error (spec.md
// §4.7: "A tag scanner extracts at most one <mark_pass>ID</mark_pass>").
func ExtractMarkPass(output string) (string, error) {
	matches := markPassPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return "", nil
	}
	if len(matches) > 1 {
		return "", ErrMultipleMarkPass
	}
	return strings.TrimSpace(matches[0][1]), nil
}

// PromptData is the payload threaded into the rendered prompt template
// (spec.md §4.7: "the selected story payload, the last-failure hints...,
// the progress-log tail, and explicit non-negotiable rules").
type PromptData struct {
	Story            prd.Story
	LastFailureHint  string
	ProgressLogTail  string
	NonNegotiableRules []string
}

// Render builds the rendered prompt text. It is intentionally plain-text
// (no external templating dependency), matching the teacher's own
// Sprintf-built prompts in cmd/ao/rpi_loop.go rather than text/template —
// the payload is small and fixed-shape.
func Render(data PromptData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "STORY %s\n", data.Story.ID)
	fmt.Fprintf(&b, "Priority: %d  Slice: %d\n", data.Story.Priority, data.Story.Slice)
	fmt.Fprintf(&b, "Description: %s\n\n", data.Story.Description)

	if len(data.Story.Acceptance) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, a := range data.Story.Acceptance {
			fmt.Fprintf(&b, "  - %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString("Scope:\n")
	fmt.Fprintf(&b, "  touch:  %s\n", strings.Join(data.Story.Scope.Touch, ", "))
	fmt.Fprintf(&b, "  create: %s\n", strings.Join(data.Story.Scope.Create, ", "))
	fmt.Fprintf(&b, "  avoid:  %s\n\n", strings.Join(data.Story.Scope.Avoid, ", "))

	if data.LastFailureHint != "" {
		fmt.Fprintf(&b, "Last failure hint:\n%s\n\n", data.LastFailureHint)
	}
	if data.ProgressLogTail != "" {
		fmt.Fprintf(&b, "Recent progress log:\n%s\n\n", data.ProgressLogTail)
	}

	b.WriteString("Rules (non-negotiable):\n")
	for _, r := range data.NonNegotiableRules {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	b.WriteString("  - Do not edit the PRD, state, or verifier files.\n")
	b.WriteString("  - Append-only updates to the progress log, with Summary/Commands/Evidence/Next or Gotcha sections.\n")
	fmt.Fprintf(&b, "  - Request a pass-mark only with exactly one <mark_pass>%s</mark_pass> tag.\n", data.Story.ID)

	return b.String()
}

// DefaultNonNegotiableRules lists the baseline rules always appended,
// separate from per-story customization, matching spec.md §9 "Forensic
// artifacts over chat output": the prompt discourages pasting logs.
var DefaultNonNegotiableRules = []string{
	"Summarize evidence; do not paste full logs into chat output.",
	"Make the smallest change that satisfies the acceptance criteria.",
}
