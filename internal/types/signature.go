package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	goalPrefixLen = 64
	errorPrefixLen = 120
	maxSignatureFiles = 5
)

// Signature is a deterministic textual serialization of the fields a chunk
// is indexed by: goal text prefix, working directory, up to 5 open-file
// paths (sorted for determinism), and a prefix of the most recent error.
// It intentionally avoids reflective whole-state stringification so it
// stays stable across unrelated state changes (cursor moves, file content).
func Signature(state State, goal Goal) map[string]string {
	files := state.OpenFiles()
	sort.Strings(files)
	if len(files) > maxSignatureFiles {
		files = files[:maxSignatureFiles]
	}

	errPrefix := ""
	if latest, ok := state.LatestError(); ok {
		errPrefix = truncate(latest, errorPrefixLen)
	}

	return map[string]string{
		"goal":       truncate(goal.Description, goalPrefixLen),
		"working_dir": state.WorkingDir,
		"open_files": strings.Join(files, "|"),
		"error":      errPrefix,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// SignatureText renders a signature map into the canonical text that
// ChunkID hashes. Vector-store queries embed a different text (see the
// unified package's chunk store).
func SignatureText(sig map[string]string) string {
	return fmt.Sprintf("goal=%s|dir=%s|files=%s|error=%s",
		sig["goal"], sig["working_dir"], sig["open_files"], sig["error"])
}

// ChunkID deterministically hashes a signature plus operator identity into
// a stable content-addressed chunk ID, so store_chunk can insert-or-merge.
func ChunkID(sig map[string]string, operatorName string) string {
	h := sha256.Sum256([]byte(SignatureText(sig) + "|op=" + operatorName))
	return hex.EncodeToString(h[:])
}

// StateHash hashes a full state for transition from/to tracking. Unlike
// Signature, this is sensitive to file content so distinct transitions
// never collide.
func StateHash(state State) string {
	var b strings.Builder
	b.WriteString(state.WorkingDir)
	files := state.OpenFiles()
	sort.Strings(files)
	for _, f := range files {
		rec := state.Files[f]
		b.WriteString(f)
		b.WriteString(rec.Content)
		b.WriteString(rec.Language)
	}
	for _, e := range state.ErrorLog {
		b.WriteString(e)
	}
	b.WriteString(state.LastOutput)
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
