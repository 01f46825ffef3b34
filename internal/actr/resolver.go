// Package actr implements the ACT-R utility resolver: it asks the LLM for a
// probability/cost estimate per candidate operator, folds in a tabu
// history penalty and Gaussian noise, and picks the operator with maximum
// utility.
package actr

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"noetic/internal/compressor"
	"noetic/internal/llm"
	"noetic/internal/logging"
	"noetic/internal/types"
)

// ActionCounts is the subset of working memory the resolver needs: how many
// times each operator name has already been tried this solve.
type ActionCounts interface {
	GetActionCount(name string) int
}

// PerOperatorEstimate is one operator's slice of the LLM's utility
// evaluation response.
type PerOperatorEstimate struct {
	OperatorName        string  `json:"operator_name"`
	ProbabilityOfSuccess float64 `json:"probability_of_success"`
	EstimatedCost        float64 `json:"estimated_cost"`
	Reasoning            string  `json:"reasoning"`
}

// UtilityEvaluation is the schema the LLM is asked to return.
type UtilityEvaluation struct {
	Estimates      []PerOperatorEstimate `json:"estimates"`
	Recommendation string                 `json:"recommendation"`
}

// Config parameterizes the utility formula: U = P*G - C - historyPenalty + noise.
type Config struct {
	GoalValue          float64
	NoiseStdDev        float64
	HistoryPenaltyMult float64
}

// Resolver ties the LLM client, a noise source, and the utility formula
// together.
type Resolver struct {
	client    *llm.Client
	cfg       Config
	rng       *rand.Rand
	extractor compressor.FunctionExtractor
}

// New creates a resolver. rng must be non-nil; pass a seeded
// rand.New(rand.NewSource(seed)) in tests for reproducibility, since the
// noise term is sampled fresh on every call.
func New(client *llm.Client, cfg Config, rng *rand.Rand, extractor compressor.FunctionExtractor) *Resolver {
	return &Resolver{client: client, cfg: cfg, rng: rng, extractor: extractor}
}

// Selection is a winning operator paired with the utility it scored.
type Selection struct {
	Operator types.Operator
	Utility  float64
}

func buildPrompt(view compressor.View, operators []types.Operator, cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", view.Goal)
	if view.HasError {
		fmt.Fprintf(&b, "Latest error: %s\n", view.LatestError)
	}
	b.WriteString("Candidate operators:\n")
	for _, op := range operators {
		fmt.Fprintf(&b, "- %s (destructive=%v)\n", op.Name(), op.Destructive())
	}
	for _, f := range view.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Path, f.Excerpt)
	}
	fmt.Fprintf(&b, "Utility formula: U = P*G - C - tabu_penalty, G=%.1f, cost scale 1-10. "+
		"Return probability_of_success in [0,1] and estimated_cost in [1,10] for each operator.\n", cfg.GoalValue)
	return b.String()
}

// Resolve asks the LLM for a utility estimate per operator, computes each
// operator's utility including the tabu history penalty and fresh
// Gaussian noise, and returns the maximizer. It returns ok=false if the LLM
// is unavailable or returns an evaluation whose operator set doesn't match
// the candidates supplied.
func (r *Resolver) Resolve(ctx context.Context, operators []types.Operator, state types.State, goal types.Goal, counts ActionCounts, budgetTokens int) (Selection, bool) {
	if len(operators) == 0 {
		return Selection{}, false
	}

	view := compressor.Compress(state, goal, budgetTokens, r.extractor)
	prompt := buildPrompt(view, operators, r.cfg)

	validate := func(ev UtilityEvaluation) error {
		if len(ev.Estimates) != len(operators) {
			return fmt.Errorf("expected %d estimates, got %d", len(operators), len(ev.Estimates))
		}
		seen := make(map[string]bool, len(ev.Estimates))
		for _, e := range ev.Estimates {
			seen[e.OperatorName] = true
		}
		for _, op := range operators {
			if !seen[op.Name()] {
				return fmt.Errorf("missing estimate for operator %q", op.Name())
			}
		}
		return nil
	}

	eval, ok := llm.StructuredQuery[UtilityEvaluation](ctx, r.client, prompt, validate)
	if !ok {
		logging.ACTR("resolver: LLM unavailable or malformed evaluation, returning no selection")
		return Selection{}, false
	}

	byName := make(map[string]PerOperatorEstimate, len(eval.Estimates))
	for _, e := range eval.Estimates {
		byName[e.OperatorName] = e
	}

	type scored struct {
		op      types.Operator
		utility float64
	}
	scores := make([]scored, 0, len(operators))
	for _, op := range operators {
		est := byName[op.Name()]
		penalty := float64(counts.GetActionCount(op.Name())) * r.cfg.HistoryPenaltyMult
		noise := r.rng.NormFloat64() * r.cfg.NoiseStdDev
		u := est.ProbabilityOfSuccess*r.cfg.GoalValue - est.EstimatedCost - penalty + noise
		scores = append(scores, scored{op: op, utility: u})
		logging.ACTRDebug("operator=%s P=%.2f C=%.2f penalty=%.2f noise=%.3f U=%.3f",
			op.Name(), est.ProbabilityOfSuccess, est.EstimatedCost, penalty, noise, u)
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].utility > scores[j].utility })
	best := scores[0]
	return Selection{Operator: best.op, Utility: best.utility}, true
}

// OperatorSuggestion is a concrete operator sketch the LLM proposes on a
// NoChange impasse; the orchestrator materializes it via the host's
// OperatorFactory.
type OperatorSuggestion struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

type generatedOperators struct {
	Suggestions []OperatorSuggestion `json:"suggestions"`
}

// GenerateOperators is the alternative entry point used on a NoChange
// impasse: ask the LLM for 1-5 concrete operator suggestions.
func (r *Resolver) GenerateOperators(ctx context.Context, state types.State, goal types.Goal, budgetTokens int) ([]OperatorSuggestion, bool) {
	view := compressor.Compress(state, goal, budgetTokens, r.extractor)
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nNo applicable operator was found. Suggest 1 to 5 concrete operators "+
		"(name and parameters) that would make progress.\n", view.Goal)
	if view.HasError {
		fmt.Fprintf(&b, "Latest error: %s\n", view.LatestError)
	}

	validate := func(g generatedOperators) error {
		if len(g.Suggestions) < 1 || len(g.Suggestions) > 5 {
			return fmt.Errorf("expected 1-5 suggestions, got %d", len(g.Suggestions))
		}
		for _, s := range g.Suggestions {
			if s.Name == "" {
				return fmt.Errorf("suggestion missing name")
			}
		}
		return nil
	}

	result, ok := llm.StructuredQuery[generatedOperators](ctx, r.client, b.String(), validate)
	if !ok {
		return nil, false
	}
	return result.Suggestions, true
}
