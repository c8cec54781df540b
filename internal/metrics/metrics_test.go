package metrics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	sink := NewSink(path)

	if err := sink.Append(Event{IterationIndex: 1, StoryID: "S1-001", Outcome: OutcomePass, VerifyReturnCode: 0}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if err := sink.Append(Event{IterationIndex: 2, StoryID: "S1-002", Outcome: OutcomeBlock, BlockReason: "scope_violation"}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	events, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].StoryID != "S1-001" || events[0].Outcome != OutcomePass {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].BlockReason != "scope_violation" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	for _, e := range events {
		if e.Timestamp == "" {
			t.Fatal("expected timestamp to be stamped")
		}
	}
}

func TestReadAllMissingFileReturnsEmpty(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestReadAllSkipsMalformedTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	sink := NewSink(path)
	if err := sink.Append(Event{IterationIndex: 1, Outcome: OutcomePass}); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not valid json"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()

	events, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected malformed trailing line to be skipped, got %d events", len(events))
	}
}
