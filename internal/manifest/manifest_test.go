package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m := RunManifest{
		RunID:       "run-1",
		FinalStatus: StatusPass,
		CommitCount: 1,
		SkippedChecks: []SkippedCheck{{Name: "cheat", Reason: "cheat_detection_off"}},
	}
	if err := Write(path, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.RunID != "run-1" || got.FinalStatus != StatusPass || got.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if len(got.SkippedChecks) != 1 || got.SkippedChecks[0].Name != "cheat" {
		t.Fatalf("skipped checks not preserved: %+v", got.SkippedChecks)
	}
	if got.GeneratedAt == "" {
		t.Fatal("expected generated_at to be populated")
	}
}

func TestWriteOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	if err := Write(path, RunManifest{RunID: "a", FinalStatus: StatusBlocked}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := Write(path, RunManifest{RunID: "b", FinalStatus: StatusPass}); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.RunID != "b" {
		t.Fatalf("expected overwritten manifest, got %+v", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file after overwrite, got %d", len(entries))
	}
}

func TestBlockedArtifactWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blocked_scope_violation_123_abc")
	a := BlockedArtifact{
		Dir: dir,
		Item: BlockedItem{
			Reason:  "scope_violation",
			Detail:  "other/unrelated.go matches neither scope.touch nor scope.create",
			StoryID: "S1-001",
		},
		PRDSnapshot: []byte(`{"stories":[]}`),
		LogFiles: map[string][]byte{
			"verify_post.log": []byte("FAIL\n"),
		},
	}
	if err := a.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	item, err := os.ReadFile(filepath.Join(dir, "blocked_item.json"))
	if err != nil {
		t.Fatalf("read blocked_item.json: %v", err)
	}
	if len(item) == 0 {
		t.Fatal("blocked_item.json is empty")
	}
	if _, err := os.Stat(filepath.Join(dir, "prd_snapshot.json")); err != nil {
		t.Fatalf("expected prd_snapshot.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "verify_post.log")); err != nil {
		t.Fatalf("expected verify_post.log: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dependency_analysis.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no dependency_analysis.json when not provided, got err=%v", err)
	}
}

func TestBlockedArtifactWriteFailsIfDirExists(t *testing.T) {
	dir := t.TempDir()
	blockDir := filepath.Join(dir, "blocked_x")
	if err := os.Mkdir(blockDir, 0o755); err != nil {
		t.Fatalf("premkdir: %v", err)
	}
	a := BlockedArtifact{Dir: blockDir, Item: BlockedItem{Reason: "x", Detail: "y"}}
	if err := a.Write(); err == nil {
		t.Fatal("expected error when directory already exists")
	}
}
