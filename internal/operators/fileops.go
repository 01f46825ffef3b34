// Package operators implements the concrete, host-side operators the rule
// engine and resolvers only ever see through the types.Operator interface:
// reading a file, listing a directory, and writing a file. These are the
// "external collaborator" the core delegates concrete action to; nothing
// here is imported by internal/rules, internal/actr, or internal/agent
// except through that interface.
package operators

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"noetic/internal/types"
)

// Factory builds filesystem-backed operators rooted at the process's
// working directory. It satisfies rules.OperatorFactory.
type Factory struct{}

// NewFactory creates a filesystem operator factory.
func NewFactory() Factory { return Factory{} }

// ReadFile returns an operator that loads path into the state's file table.
func (Factory) ReadFile(path string) types.Operator {
	return readFileOp{path: path}
}

// ListDirectory returns an operator that records dir's entries as the
// state's last output, for the exploration rules to act on.
func (Factory) ListDirectory(dir string) types.Operator {
	return listDirOp{dir: dir}
}

// WriteFile returns a destructive operator that overwrites path with
// content; the safety middleware gates it behind approval whenever approval
// is enabled, and AutoApproveSafe never applies to it, since Destructive is
// always true here.
func (Factory) WriteFile(path, content string) types.Operator {
	return writeFileOp{path: path, content: content}
}

func languageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rs":
		return "rust"
	default:
		return ""
	}
}

type readFileOp struct{ path string }

func (o readFileOp) Name() string        { return fmt.Sprintf("read_file(%s)", o.path) }
func (readFileOp) Destructive() bool     { return false }
func (readFileOp) IsApplicable(types.State, types.Goal) bool { return true }

func (o readFileOp) Execute(state types.State) types.OperatorResult {
	data, err := os.ReadFile(o.path)
	if err != nil {
		return types.OperatorResult{Success: false, NewState: state.WithError(err.Error()), HasState: true, Err: err}
	}
	next := state.Clone()
	next.Files[o.path] = types.FileRecord{
		Content:      string(data),
		Language:     languageFor(o.path),
		LastModified: time.Now(),
	}
	return types.OperatorResult{Success: true, NewState: next, HasState: true, Output: fmt.Sprintf("read %d bytes from %s", len(data), o.path)}
}

type listDirOp struct{ dir string }

func (o listDirOp) Name() string        { return fmt.Sprintf("list_directory(%s)", o.dir) }
func (listDirOp) Destructive() bool     { return false }
func (listDirOp) IsApplicable(types.State, types.Goal) bool { return true }

func (o listDirOp) Execute(state types.State) types.OperatorResult {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return types.OperatorResult{Success: false, NewState: state.WithError(err.Error()), HasState: true, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	next := state.Clone()
	next.LastOutput = strings.Join(names, "\n")
	next.HasLastOutput = true
	return types.OperatorResult{Success: true, NewState: next, HasState: true, Output: next.LastOutput}
}

type writeFileOp struct {
	path    string
	content string
}

func (o writeFileOp) Name() string        { return fmt.Sprintf("write_file(%s)", o.path) }
func (writeFileOp) Destructive() bool     { return true }
func (writeFileOp) IsApplicable(types.State, types.Goal) bool { return true }

func (o writeFileOp) Execute(state types.State) types.OperatorResult {
	if err := os.WriteFile(o.path, []byte(o.content), 0o644); err != nil {
		return types.OperatorResult{Success: false, NewState: state.WithError(err.Error()), HasState: true, Err: err}
	}
	next := state.Clone()
	next.Files[o.path] = types.FileRecord{Content: o.content, Language: languageFor(o.path), LastModified: time.Now()}
	return types.OperatorResult{Success: true, NewState: next, HasState: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(o.content), o.path)}
}
