// Package evolution implements the evolutionary solver: the fallback path
// invoked when the meta-cognitive monitor escalates past the ACT-R
// resolver on a code-fix goal. It asks the LLM for a diverse population of
// candidate patches, scores them with the evaluator, and iterates by
// mutating the best survivor while keeping the rest of the population
// fresh.
package evolution

import (
	"context"
	"fmt"
	"strings"

	"noetic/internal/evaluator"
	"noetic/internal/llm"
	"noetic/internal/logging"
)

// Candidate is one hypothesis/patch/reasoning triple the LLM proposes.
type Candidate struct {
	Hypothesis string `json:"hypothesis"`
	CodePatch  string `json:"code_patch"`
	Reasoning  string `json:"reasoning"`
}

// Scored pairs a candidate with its fitness result.
type Scored struct {
	Candidate Candidate
	Result    evaluator.Result
}

// Config parameterizes the search. Population is clamped to [2,10] and
// Generations to [1,10] by the configuration layer before reaching here;
// the solver trusts its caller for those bounds.
type Config struct {
	Generations int
	Population  int
}

type generationResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Evolve runs the generate/score/mutate loop. testCode, if non-empty, is
// passed to the evaluator for every candidate. tabooOperators names
// operators the LLM must not trivially propose re-running (e.g. "read the
// file again"). It returns ok=false only when generation 0 failed to
// produce any candidate (LLM unavailable or malformed response).
func Evolve(ctx context.Context, client *llm.Client, errorContext, goal, originalCode, testCode string, tabooOperators []string, cfg Config) (Scored, bool) {
	population, ok := generatePopulation(ctx, client, errorContext, goal, originalCode, tabooOperators, cfg.Population)
	if !ok {
		logging.Evolution("generation 0 failed to produce candidates, no selection")
		return Scored{}, false
	}

	best := scoreAndPickBest(ctx, population, originalCode, testCode)
	if best.Result.Score == 100 {
		logging.Evolution("generation 0 short-circuit: candidate scored 100")
		return best, true
	}

	for gen := 1; gen < cfg.Generations; gen++ {
		mutated, mutateOK := mutate(ctx, client, best, errorContext, goal)
		fresh, freshOK := generatePopulation(ctx, client, errorContext, goal, originalCode, tabooOperators, cfg.Population-1)

		var nextGen []Candidate
		if mutateOK {
			nextGen = append(nextGen, mutated)
		}
		if freshOK {
			nextGen = append(nextGen, fresh...)
		}
		if len(nextGen) == 0 {
			logging.Evolution("generation %d produced no candidates, keeping prior best", gen)
			continue
		}

		candidate := scoreAndPickBest(ctx, nextGen, originalCode, testCode)
		if candidate.Result.Score > best.Result.Score {
			best = candidate
		}
		logging.EvolutionDebug("generation %d: best score so far = %d", gen, best.Result.Score)
		if best.Result.Score == 100 {
			logging.Evolution("generation %d short-circuit: candidate scored 100", gen)
			return best, true
		}
	}

	return best, true
}

// scoreAndPickBest evaluates every candidate in the generation — never
// short-circuits mid-generation — so the evaluator call count for a
// generation always equals its population size; the short-circuit on a
// 100 happens one level up, between generations.
func scoreAndPickBest(ctx context.Context, population []Candidate, originalCode, testCode string) Scored {
	best := Scored{Candidate: population[0], Result: evaluator.Evaluate(ctx, applyPatch(originalCode, population[0].CodePatch), testCode, testCode != "")}
	for _, c := range population[1:] {
		res := evaluator.Evaluate(ctx, applyPatch(originalCode, c.CodePatch), testCode, testCode != "")
		if res.Score > best.Result.Score {
			best = Scored{Candidate: c, Result: res}
		}
	}
	return best
}

// applyPatch treats code_patch as the full replacement source when it
// looks like a complete file (contains a func declaration), otherwise
// appends it to the original as a literal patch body. Concrete diff/patch
// application is an external concern (§6); this is the evaluator-facing
// approximation the solver needs to score candidates at all.
func applyPatch(originalCode, patch string) string {
	if strings.Contains(patch, "func ") {
		return patch
	}
	return originalCode + "\n" + patch
}

func generatePopulation(ctx context.Context, client *llm.Client, errorContext, goal, originalCode string, tabooOperators []string, n int) ([]Candidate, bool) {
	if n <= 0 {
		return nil, true
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nOriginal code:\n%s\nError context:\n%s\n", goal, originalCode, errorContext)
	fmt.Fprintf(&b, "Generate %d distinct candidate fixes. Each must differ in approach from the others. "+
		"Do not trivially repeat a prior action (%s).\n", n, strings.Join(tabooOperators, ", "))

	validate := func(g generationResponse) error {
		if len(g.Candidates) == 0 {
			return fmt.Errorf("expected at least one candidate")
		}
		return nil
	}
	resp, ok := llm.StructuredQuery[generationResponse](ctx, client, b.String(), validate)
	if !ok {
		return nil, false
	}
	return resp.Candidates, true
}

func mutate(ctx context.Context, client *llm.Client, current Scored, errorContext, goal string) (Candidate, bool) {
	var b strings.Builder
	failure := "unknown"
	if current.Result.HasError {
		failure = current.Result.Error
	}
	fmt.Fprintf(&b, "Goal: %s\nError context: %s\nPrevious candidate:\n%s\nIts specific failure: %s\n"+
		"Propose one mutated candidate that directly addresses that failure class.\n",
		goal, errorContext, current.Candidate.CodePatch, failure)

	return llm.StructuredQuery[Candidate](ctx, client, b.String(), nil)
}
