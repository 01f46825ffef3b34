// Package types holds the foundational data structures shared across the
// decision engine: state, goal, operator, transition, chunk, and context
// node. It exists to break import cycles between the rule engine, the
// resolvers, and the orchestrator, mirroring how the wider engine keeps
// domain types in one leaf package.
package types

import "time"

// FileRecord describes a single file tracked in working memory.
type FileRecord struct {
	Content      string
	Language     string
	AST          interface{} // opaque AST handle, owned by the ast package
	LastModified time.Time
}

// State is an immutable working-memory snapshot. Operators never mutate a
// State in place; Clone produces the deep copy an operator mutates to
// produce its successor.
type State struct {
	WorkingDir     string
	Files          map[string]FileRecord
	Cursors        map[string]int // path -> line
	ErrorLog       []string       // bounded, newest last
	LastOutput     string
	HasLastOutput  bool
	RepoStatus     string
	HasRepoStatus  bool
}

// NewState returns an empty state rooted at dir.
func NewState(dir string) State {
	return State{
		WorkingDir: dir,
		Files:      make(map[string]FileRecord),
		Cursors:    make(map[string]int),
	}
}

// MaxErrorLog bounds the error log length; oldest entries are dropped.
const MaxErrorLog = 50

// Clone returns a deep copy of the state, safe for an operator to mutate
// before returning it as a successor.
func (s State) Clone() State {
	files := make(map[string]FileRecord, len(s.Files))
	for k, v := range s.Files {
		files[k] = v
	}
	cursors := make(map[string]int, len(s.Cursors))
	for k, v := range s.Cursors {
		cursors[k] = v
	}
	errs := make([]string, len(s.ErrorLog))
	copy(errs, s.ErrorLog)
	return State{
		WorkingDir:    s.WorkingDir,
		Files:         files,
		Cursors:       cursors,
		ErrorLog:      errs,
		LastOutput:    s.LastOutput,
		HasLastOutput: s.HasLastOutput,
		RepoStatus:    s.RepoStatus,
		HasRepoStatus: s.HasRepoStatus,
	}
}

// WithError returns a clone with msg appended to the error log, trimmed to
// MaxErrorLog entries (oldest dropped first).
func (s State) WithError(msg string) State {
	next := s.Clone()
	next.ErrorLog = append(next.ErrorLog, msg)
	if len(next.ErrorLog) > MaxErrorLog {
		next.ErrorLog = next.ErrorLog[len(next.ErrorLog)-MaxErrorLog:]
	}
	return next
}

// LatestError returns the most recent error log entry, if any.
func (s State) LatestError() (string, bool) {
	if len(s.ErrorLog) == 0 {
		return "", false
	}
	return s.ErrorLog[len(s.ErrorLog)-1], true
}

// OpenFiles returns the set of currently open file paths, in insertion-stable
// order is not guaranteed by this helper alone; callers that need a
// deterministic order (e.g. state signatures) must sort it themselves.
func (s State) OpenFiles() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	return paths
}
