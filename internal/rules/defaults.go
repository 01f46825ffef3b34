package rules

import (
	"regexp"
	"strings"

	"noetic/internal/types"
)

// OperatorFactory is the host collaborator that knows how to build the
// concrete, out-of-scope operators (read-file, list-directory, ...) the
// default rule set proposes. The core never constructs an operator itself;
// it only asks the factory for one once a rule's condition has matched.
type OperatorFactory interface {
	ReadFile(path string) types.Operator
	ListDirectory(path string) types.Operator
}

// filenamePattern matches a bare filename with a common extension,
// used to pull a concrete path out of free-text goal/error strings.
var filenamePattern = regexp.MustCompile(`[\w./-]+\.(go|py|js|ts|rs|java|c|cpp|rb|md|json|yaml|yml|txt)\b`)

func extractFilename(text string) (string, bool) {
	m := filenamePattern.FindString(text)
	return m, m != ""
}

var inspectionKeywords = []string{"read", "inspect", "look at", "review", "examine"}
var explorationKeywords = []string{"explore", "list", "browse", "survey"}

func containsAny(haystack string, needles []string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(h, n) {
			return true
		}
	}
	return false
}

// DefaultRules returns the five nominal rules from the design, in the
// priority order documented there: error-driven open (6), file-in-goal
// open (5), inspection read (5), list-directory exploration (4),
// explore-when-empty (3). Registration order matches this list, which is
// also the tie-break order rules (b) and (c) share at priority 5.
func DefaultRules(factory OperatorFactory) []Rule {
	return []Rule{
		{
			Name:     "error_driven_file_open",
			Priority: 6,
			Condition: func(state types.State, _ types.Goal) bool {
				latest, ok := state.LatestError()
				if !ok {
					return false
				}
				_, found := extractFilename(latest)
				return found
			},
			Factory: func(state types.State, _ types.Goal) types.Operator {
				latest, _ := state.LatestError()
				path, _ := extractFilename(latest)
				return factory.ReadFile(path)
			},
		},
		{
			// Mutually exclusive with inspection_read: a goal naming a file
			// in an inspection phrasing ("read", "inspect", ...) is claimed
			// by inspection_read instead, so the two never tie on the same
			// goal. This rule covers file-naming goals with no such verb,
			// e.g. "Open config.yaml" or "Fix main.py".
			Name:     "file_in_goal_open",
			Priority: 5,
			Condition: func(_ types.State, goal types.Goal) bool {
				_, found := extractFilename(goal.Description)
				return found && !containsAny(goal.Description, inspectionKeywords)
			},
			Factory: func(_ types.State, goal types.Goal) types.Operator {
				path, _ := extractFilename(goal.Description)
				return factory.ReadFile(path)
			},
		},
		{
			Name:     "inspection_read",
			Priority: 5,
			Condition: func(_ types.State, goal types.Goal) bool {
				_, found := extractFilename(goal.Description)
				return found && containsAny(goal.Description, inspectionKeywords)
			},
			Factory: func(_ types.State, goal types.Goal) types.Operator {
				path, _ := extractFilename(goal.Description)
				return factory.ReadFile(path)
			},
		},
		{
			Name:     "list_directory_exploration",
			Priority: 4,
			Condition: func(_ types.State, goal types.Goal) bool {
				return containsAny(goal.Description, explorationKeywords)
			},
			Factory: func(state types.State, _ types.Goal) types.Operator {
				return factory.ListDirectory(state.WorkingDir)
			},
		},
		{
			Name:     "explore_when_empty",
			Priority: 3,
			Condition: func(state types.State, _ types.Goal) bool {
				return len(state.Files) == 0
			},
			Factory: func(state types.State, _ types.Goal) types.Operator {
				return factory.ListDirectory(state.WorkingDir)
			},
		},
	}
}
