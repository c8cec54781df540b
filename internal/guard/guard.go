// Package guard computes the tamper-detection fingerprints the Agent
// Invoker captures before launching the coding agent and compares after it
// exits (spec.md §4.7: "the harness script's own hash, the ensemble hash of
// workflow scripts, and the ensemble hash of all JSON files under the
// harness state directory"). Any mismatch blocks the iteration with a
// specific tamper code.
//
// The harness-script hash is security-sensitive (a single well-known file)
// and uses SHA-256. The two ensemble hashes cover whole directory trees
// (the state-directory one only its .json files), so they use xxhash for
// speed and are computed concurrently with
// golang.org/x/sync/errgroup — both deps pulled from the retrieved pack's
// AbdelazizMoustafa10m-Raven example (SPEC_FULL.md "DOMAIN STACK").
package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// Snapshot is the set of guard hashes captured around one agent invocation
// (spec.md §4.7 "Captures guard hashes BEFORE launch").
type Snapshot struct {
	HarnessSha     string `json:"harness_sha"`
	WorkflowScripts string `json:"workflow_scripts_ensemble"`
	StateDirJSON   string `json:"state_dir_json_ensemble"`
}

// Mismatch names which guard, if any, differs between two snapshots, and
// the spec.md §7 tamper code it maps to. Compare returns nil when there is
// no mismatch.
type Mismatch struct {
	Kind string
	Detail string
}

// Compare diffs before against after and returns the first mismatch found,
// checked in a fixed order so a single iteration reports one authoritative
// reason even if multiple things changed.
func Compare(before, after Snapshot) *Mismatch {
	if before.HarnessSha != after.HarnessSha {
		return &Mismatch{Kind: "harness_sha_mismatch", Detail: "harness script hash changed during agent execution"}
	}
	if before.WorkflowScripts != after.WorkflowScripts {
		return &Mismatch{Kind: "workflow_scripts_modified", Detail: "workflow scripts ensemble hash changed during agent execution"}
	}
	if before.StateDirJSON != after.StateDirJSON {
		return &Mismatch{Kind: "ralph_dir_modified", Detail: "harness state directory JSON ensemble hash changed during agent execution"}
	}
	return nil
}

// Capture computes a Snapshot: sha256 of harnessScriptPath, and ensemble
// hashes of workflowScriptsDir and stateDir/*.json, computed concurrently.
func Capture(harnessScriptPath, workflowScriptsDir, stateDir string) (Snapshot, error) {
	var snap Snapshot
	var g errgroup.Group

	g.Go(func() error {
		sum, err := sha256File(harnessScriptPath)
		if err != nil {
			return err
		}
		snap.HarnessSha = sum
		return nil
	})
	g.Go(func() error {
		sum, err := ensembleHash(workflowScriptsDir, nil)
		if err != nil {
			return err
		}
		snap.WorkflowScripts = sum
		return nil
	})
	g.Go(func() error {
		sum, err := ensembleHash(stateDir, jsonOnly)
		if err != nil {
			return err
		}
		snap.StateDirJSON = sum
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func jsonOnly(path string) bool {
	return filepath.Ext(path) == ".json"
}

// sha256File hashes a single file; a missing file hashes to a fixed
// "absent" sentinel so Capture never fails merely because an optional
// harness script doesn't exist in a given deployment.
func sha256File(path string) (string, error) {
	if path == "" {
		return "absent", nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent", nil
		}
		return "", fmt.Errorf("guard: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("guard: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ensembleHash walks dir (if it exists) and combines the xxhash of each
// matching file's contents, keyed by its relative path, into a single
// order-independent-input, order-dependent-output digest: paths are sorted
// before hashing so the result is stable across filesystem iteration order.
func ensembleHash(dir string, include func(path string) bool) (string, error) {
	if dir == "" {
		return "absent", nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent", nil
		}
		return "", fmt.Errorf("guard: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("guard: %s is not a directory", dir)
	}

	var paths []string
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if include != nil && !include(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("guard: walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	digest := xxhash.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("guard: read %s: %w", p, err)
		}
		rel, _ := filepath.Rel(dir, p)
		_, _ = digest.WriteString(rel)
		_, _ = digest.Write(data)
	}
	return hex.EncodeToString(uint64ToBytes(digest.Sum64())), nil
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
