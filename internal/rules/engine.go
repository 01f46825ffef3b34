// Package rules implements the symbolic rule engine: a registry of
// production rules evaluated against (state, goal) that yields prioritized
// operator proposals. Rules are host-code predicates and operator
// factories, not a general-purpose rule language, per the engine's
// explicit non-goal of inventing a rule DSL.
package rules

import (
	"fmt"
	"sort"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// Condition decides whether a rule matches (state, goal). Conditions run
// defensively: a panicking condition is treated as a non-match and logged,
// never allowed to crash the decision cycle.
type Condition func(state types.State, goal types.Goal) bool

// Factory builds the operator a matched rule proposes.
type Factory func(state types.State, goal types.Goal) types.Operator

// Rule is a named (condition, operator-factory) pair with a priority.
// Higher priority is stronger. A rule emits at most one operator per call
// and never mutates state itself.
type Rule struct {
	Name      string
	Priority  float64
	Condition Condition
	Factory   Factory
}

// Engine holds an ordered registry of rules. Registration order is the tie
// breaker for proposals sharing a priority, so Propose's output is stable.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine with no rules registered.
func NewEngine() *Engine {
	return &Engine{}
}

// Register appends a rule to the registry.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Propose evaluates every registered rule against (state, goal) and returns
// matching proposals sorted by descending priority, with registration order
// as the stable tiebreaker. Calling Propose twice on the same (state, goal)
// yields byte-identical output: rules are pure and evaluation order is
// fixed by registration.
func (e *Engine) Propose(state types.State, goal types.Goal) []types.Proposal {
	proposals := make([]types.Proposal, 0, len(e.rules))
	for i, r := range e.rules {
		if !e.safeMatch(r, state, goal) {
			continue
		}
		op := r.Factory(state, goal)
		if op == nil {
			continue
		}
		proposals = append(proposals, types.Proposal{
			Operator: op,
			Priority: r.Priority,
			Reason:   fmt.Sprintf("rule[%d]=%s", i, r.Name),
		})
	}

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].Priority > proposals[j].Priority
	})

	logging.RulesDebug("propose: %d rule(s) matched for goal %q", len(proposals), goal.Description)
	return proposals
}

// safeMatch runs a rule's condition, converting a panic into a logged
// non-match rather than letting it cross the component boundary.
func (e *Engine) safeMatch(r Rule, state types.State, goal types.Goal) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryRules).Error("rule %q condition panicked: %v (treated as non-match)", r.Name, rec)
			matched = false
		}
	}()
	return r.Condition(state, goal)
}

// InjectedPriority is the fixed priority synthetic rules derived from
// unified-memory chunk retrieval are given: strictly above every default
// rule's priority (max 6), representing proceduralized knowledge that
// should win a tie against freshly-derived proposals.
const InjectedPriority = 7

// MergeInjected combines memory-derived proposals (already carrying
// InjectedPriority) with the rule engine's own proposals, re-sorting by
// priority with injected entries first among equals — mirroring the design
// note that chunks are retrieved-before-rules each cycle.
func MergeInjected(injected, ruleProposals []types.Proposal) []types.Proposal {
	merged := make([]types.Proposal, 0, len(injected)+len(ruleProposals))
	merged = append(merged, injected...)
	merged = append(merged, ruleProposals...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	return merged
}
