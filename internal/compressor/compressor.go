// Package compressor builds a bounded, goal/error-prioritized summary of a
// State for the LLM, so the ACT-R resolver and evolutionary solver never
// have to hand a whole working tree to a prompt.
package compressor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// charsPerToken is the implementation-defined ratio used to turn a token
// budget into a character budget.
const charsPerToken = 4

// windowRadius is how many lines of context are kept on either side of an
// error line when no named function can be extracted instead.
const windowRadius = 10

// summaryLines is how many leading lines are kept when a file is reduced to
// a plain summary (no function/window match).
const summaryLines = 20

// FunctionExtractor is the AST utility collaborator: given source text and
// a language, return the text of a named function/method if the language
// is supported and the function exists.
type FunctionExtractor interface {
	ExtractFunction(content, language, name string) (text string, ok bool)
	SupportsLanguage(language string) bool
}

// FileExcerpt is the compressed representation of one file.
type FileExcerpt struct {
	Path      string
	Excerpt   string
	Truncated bool
	Priority  float64
}

// View is the compressed summary handed to LLM prompts.
type View struct {
	Goal        string
	LatestError string
	HasError    bool
	Files       []FileExcerpt
}

var functionNamePattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// namedFunction pulls a plausible function/method name referenced in text,
// e.g. "fix the off-by-one in sortItems()" -> "sortItems".
func namedFunction(text string) (string, bool) {
	m := functionNamePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Compress produces a deterministic View within budgetTokens. Goal text and
// the latest error are never dropped regardless of budget; file excerpts
// are added in descending priority order until the character budget (goal
// and error text included) would be exceeded. The highest-priority file is
// always included, even when its excerpt alone exceeds the budget.
func Compress(state types.State, goal types.Goal, budgetTokens int, extractor FunctionExtractor) View {
	view := View{Goal: goal.Description}
	if latest, ok := state.LatestError(); ok {
		view.LatestError = latest
		view.HasError = true
	}

	budgetChars := budgetTokens * charsPerToken
	used := len(view.Goal) + len(view.LatestError)

	type scored struct {
		path     string
		priority float64
	}
	var candidates []scored
	for path := range state.Files {
		candidates = append(candidates, scored{path: path, priority: filePriority(path, state, goal)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].path < candidates[j].path
	})

	fnName, wantFn := namedFunction(goal.Description)
	if !wantFn {
		if latest, ok := state.LatestError(); ok {
			fnName, wantFn = namedFunction(latest)
		}
	}

	for _, c := range candidates {
		rec := state.Files[c.path]
		excerpt, truncated := excerptFor(c.path, rec, state, fnName, wantFn, extractor)
		if used+len(excerpt) > budgetChars && len(view.Files) > 0 {
			logging.CompressorDebug("budget exhausted before file %s, stopping", c.path)
			break
		}
		used += len(excerpt)
		view.Files = append(view.Files, FileExcerpt{
			Path:      c.path,
			Excerpt:   excerpt,
			Truncated: truncated,
			Priority:  c.priority,
		})
	}

	logging.CompressorDebug("compressed state: %d file(s) included of %d candidate(s)", len(view.Files), len(candidates))
	return view
}

// filePriority implements base 1 + 5*mentioned-in-goal + 3*mentioned-in-error + 2*cursor-present.
func filePriority(path string, state types.State, goal types.Goal) float64 {
	p := 1.0
	if strings.Contains(goal.Description, baseName(path)) {
		p += 5
	}
	if latest, ok := state.LatestError(); ok && strings.Contains(latest, baseName(path)) {
		p += 3
	}
	if _, ok := state.Cursors[path]; ok {
		p += 2
	}
	return p
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// excerptFor picks, in order: a function extraction (if the goal/error
// names a function and the language is supported), else a window around
// the error line (+/-10 lines), else a first-N-lines summary with a
// truncation marker.
func excerptFor(path string, rec types.FileRecord, state types.State, fnName string, wantFn bool, extractor FunctionExtractor) (string, bool) {
	if wantFn && extractor != nil && extractor.SupportsLanguage(rec.Language) {
		if text, ok := extractor.ExtractFunction(rec.Content, rec.Language, fnName); ok {
			return text, false
		}
	}

	if line, ok := errorLineIn(path, state); ok {
		return windowAround(rec.Content, line, windowRadius), true
	}

	return summarize(rec.Content), true
}

// errorLineIn reports the cursor line recorded for path, used as the error
// location when no richer signal is available.
func errorLineIn(path string, state types.State) (int, bool) {
	line, ok := state.Cursors[path]
	return line, ok
}

func windowAround(content string, line, radius int) string {
	lines := strings.Split(content, "\n")
	start := line - radius
	if start < 0 {
		start = 0
	}
	end := line + radius + 1
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start >= len(lines) {
		return summarize(content)
	}
	return strings.Join(lines[start:end], "\n")
}

func summarize(content string) string {
	lines := strings.Split(content, "\n")
	n := summaryLines
	if n > len(lines) {
		n = len(lines)
	}
	out := strings.Join(lines[:n], "\n")
	if n < len(lines) {
		out += fmt.Sprintf("\n... [truncated %d line(s)]", len(lines)-n)
	}
	return out
}
