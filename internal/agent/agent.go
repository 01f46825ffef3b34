// Package agent implements the cognitive agent orchestrator: the decision
// cycle that ties the rule engine, impasse detector, meta-cognitive
// monitor, ACT-R resolver, evolutionary solver, unified memory, and safety
// middleware into the single public entry point, solve.
package agent

import (
	"context"
	"fmt"
	"time"

	"noetic/internal/actr"
	"noetic/internal/compressor"
	"noetic/internal/config"
	"noetic/internal/evolution"
	"noetic/internal/impasse"
	"noetic/internal/llm"
	"noetic/internal/logging"
	"noetic/internal/memory"
	"noetic/internal/monitor"
	"noetic/internal/rules"
	"noetic/internal/safety"
	"noetic/internal/types"
	"noetic/internal/unified"
)

// OperatorMaterializer turns an ACT-R-suggested operator sketch into a
// concrete operator. The agent never constructs operators itself.
type OperatorMaterializer interface {
	Materialize(suggestion actr.OperatorSuggestion) (types.Operator, bool)
}

// EvolutionSupport supplies the evolutionary solver with the original
// source to patch, any test harness to score correctness against, and a
// way to turn a winning patch back into an executable operator. A nil
// EvolutionSupport makes the evolution path unavailable regardless of
// configuration.
type EvolutionSupport interface {
	OriginalCode(state types.State, goal types.Goal) (code string, ok bool)
	TestCode(state types.State, goal types.Goal) (test string, hasTest bool)
	BuildPatchOperator(codePatch, hypothesis string) types.Operator
}

// Agent wires the decision-cycle components together.
type Agent struct {
	rules        *rules.Engine
	monitor      *monitor.Monitor
	resolver     *actr.Resolver
	unifiedMem   *unified.Memory
	safety       *safety.Middleware
	materializer OperatorMaterializer
	evoSupport   EvolutionSupport
	llmClient    *llm.Client
	extractor    compressor.FunctionExtractor

	cfg Config
}

// Config bundles the orchestrator-level knobs taken from the loaded
// configuration record plus the budget used to compress prompts.
type Config struct {
	MaxCycles          int
	BudgetTokens        int
	RetrievalTopK       int
	MinSuccessRate      float64
	EvolutionEnabled    bool
	EvolutionPopulation int
	EvolutionGenerations int
}

// ConfigFromLoaded adapts the on-disk configuration record into the
// orchestrator's Config.
func ConfigFromLoaded(c config.Config) Config {
	return Config{
		MaxCycles:            c.Cognitive.MaxCycles,
		BudgetTokens:         2000,
		RetrievalTopK:        3,
		MinSuccessRate:       0.7,
		EvolutionEnabled:     c.Evolution.Enabled,
		EvolutionPopulation:  c.Evolution.PopulationSize,
		EvolutionGenerations: c.Evolution.MaxGenerations,
	}
}

// New constructs an agent. unifiedMem may be a disabled Memory (see
// unified.New); materializer and evoSupport may be nil, disabling the
// NoChange-escalation and evolutionary paths respectively.
func New(
	ruleEngine *rules.Engine,
	mon *monitor.Monitor,
	resolver *actr.Resolver,
	unifiedMem *unified.Memory,
	safetyMW *safety.Middleware,
	materializer OperatorMaterializer,
	evoSupport EvolutionSupport,
	llmClient *llm.Client,
	extractor compressor.FunctionExtractor,
	cfg Config,
) *Agent {
	return &Agent{
		rules: ruleEngine, monitor: mon, resolver: resolver, unifiedMem: unifiedMem,
		safety: safetyMW, materializer: materializer, evoSupport: evoSupport,
		llmClient: llmClient, extractor: extractor, cfg: cfg,
	}
}

// Solve runs the decision cycle until the root goal resolves or
// cfg.MaxCycles is exhausted. It never panics across the public boundary;
// every failure path returns (false, state) with the reason recorded in
// the returned state's error log.
func (a *Agent) Solve(ctx context.Context, goalDescription string, initial types.State, verbosity int) (bool, types.State) {
	wm := memory.New(initial, goalDescription)
	rootID := wm.RootGoal().ID

	if a.unifiedMem.Enabled() {
		a.unifiedMem.PushContext(goalDescription, types.StateHash(initial), "", false)
	}

	// subgoalAttempts stands in for the depth the design's symbolic
	// subgoaling path would accumulate: each DecisionSubgoal outcome
	// retries the same goal while behaving, for pressure purposes, as if
	// one level deeper — so repeated ties or repeated no-proposal cycles
	// eventually saturate the depth term and force escalation, without the
	// orchestrator needing a concrete "resolve this impasse" operator that
	// the design names no collaborator for.
	subgoalAttempts := 0

	for cycle := 0; cycle < a.cfg.MaxCycles; cycle++ {
		select {
		case <-ctx.Done():
			a.failRoot(wm, "cancelled")
			return false, wm.CurrentState()
		default:
		}

		state := wm.CurrentState()
		goal := wm.CurrentGoal()

		proposals := a.gatherProposals(ctx, state, goal)
		imp := impasse.Classify(state, goal, proposals)

		hasLoop := wm.HasLoop()
		metrics := types.CognitiveMetrics{
			GoalDepth:         wm.Depth(goal.ID) + subgoalAttempts,
			TimeInStateMS:     a.monitor.TimeInStateMS(),
			OperatorAmbiguity: monitor.OperatorAmbiguity(imp),
		}
		pressure := a.monitor.Pressure(metrics, hasLoop)
		decision := a.monitor.Decide(pressure, imp, goal.Description, false)

		logging.AgentDebug("cycle=%d impasse=%s pressure=%.3f decision=%v", cycle, imp.Kind, pressure, decision)

		switch decision {
		case monitor.DecisionSubgoal:
			subgoalAttempts++
			continue

		case monitor.DecisionProceed:
			subgoalAttempts = 0
			if done, success := a.applyTopOperator(ctx, wm, rootID, imp, state, verbosity); done {
				return success, wm.CurrentState()
			}
			continue

		case monitor.DecisionInvokeACTR:
			subgoalAttempts = 0
			done, success, actrFailed := a.invokeACTR(ctx, wm, rootID, imp, state, goal, verbosity)
			if done {
				return success, wm.CurrentState()
			}
			if !actrFailed {
				continue
			}
			decision = a.monitor.Decide(pressure, imp, goal.Description, true)
			if decision != monitor.DecisionInvokeEvolution {
				a.failRoot(wm, "no operators available")
				return false, wm.CurrentState()
			}
			fallthrough

		case monitor.DecisionInvokeEvolution:
			subgoalAttempts = 0
			done, success := a.invokeEvolution(ctx, wm, rootID, state, goal, verbosity)
			if done {
				return success, wm.CurrentState()
			}
			continue

		case monitor.DecisionFatal:
			a.failRoot(wm, "no operators available")
			return false, wm.CurrentState()
		}
	}

	logging.Agent("max_cycles (%d) exhausted without resolving the root goal", a.cfg.MaxCycles)
	wm.RecordFailure(fmt.Sprintf("max_cycles (%d) exhausted", a.cfg.MaxCycles))
	return false, wm.CurrentState()
}

func (a *Agent) gatherProposals(ctx context.Context, state types.State, goal types.Goal) []types.Proposal {
	ruleProposals := a.rules.Propose(state, goal)
	if !a.unifiedMem.Enabled() {
		return ruleProposals
	}
	chunks := a.unifiedMem.RetrieveSimilar(ctx, state, goal, a.cfg.RetrievalTopK, a.cfg.MinSuccessRate)
	if len(chunks) == 0 || a.materializer == nil {
		return ruleProposals
	}
	injected := make([]types.Proposal, 0, len(chunks))
	for _, c := range chunks {
		op, ok := a.materializer.Materialize(actr.OperatorSuggestion{Name: c.OperatorName, Params: c.OperatorParams})
		if !ok {
			continue
		}
		injected = append(injected, types.Proposal{Operator: op, Priority: rules.InjectedPriority, Reason: fmt.Sprintf("chunk:%s", c.ID)})
	}
	return rules.MergeInjected(injected, ruleProposals)
}

// applyTopOperator executes the impasse's selected operator directly (the
// DecisionProceed path). It returns done=true once the solve's outcome is
// settled.
func (a *Agent) applyTopOperator(ctx context.Context, wm *memory.WorkingMemory, rootID string, imp impasse.Result, state types.State, verbosity int) (done bool, success bool) {
	if !imp.HasSelect {
		a.failRoot(wm, "no operators available")
		return true, false
	}
	op := imp.Selected
	result := a.safety.ExecuteWithSafety(ctx, op, state, 0, false, "rule-selected", verbosity)
	wm.RecordTransition(op, result, state)
	a.monitor.ResetTimer()
	if !result.Success {
		logging.AgentDebug("operator %s failed: %v", op.Name(), result.Err)
		return false, false
	}
	wm.SetGoalStatus(rootID, types.GoalSuccess)
	return true, true
}

// invokeACTR runs the ACT-R escalation path. actrFailed reports whether
// the resolver itself returned no selection (LLM unavailable/malformed),
// distinct from the operator it selected subsequently failing to execute.
func (a *Agent) invokeACTR(ctx context.Context, wm *memory.WorkingMemory, rootID string, imp impasse.Result, state types.State, goal types.Goal, verbosity int) (done bool, success bool, actrFailed bool) {
	if a.resolver == nil {
		return false, false, true
	}
	operators := candidateOperators(imp)
	if len(operators) == 0 {
		suggestions, ok := a.resolver.GenerateOperators(ctx, state, goal, a.cfg.BudgetTokens)
		if !ok || a.materializer == nil {
			return false, false, true
		}
		for _, s := range suggestions {
			if op, ok := a.materializer.Materialize(s); ok {
				operators = append(operators, op)
			}
		}
		if len(operators) == 0 {
			return false, false, true
		}
	}

	sel, ok := a.resolver.Resolve(ctx, operators, state, goal, wm, a.cfg.BudgetTokens)
	if !ok {
		return false, false, true
	}

	result := a.safety.ExecuteWithSafety(ctx, sel.Operator, state, sel.Utility, true, "actr-selected", verbosity)
	wm.RecordTransition(sel.Operator, result, state)
	a.monitor.ResetTimer()
	if !result.Success {
		return false, false, false
	}
	a.createChunk(ctx, sel.Operator, state, goal, sel.Utility)
	wm.SetGoalStatus(rootID, types.GoalSuccess)
	return true, true, false
}

func candidateOperators(imp impasse.Result) []types.Operator {
	switch imp.Kind {
	case impasse.Tie:
		return imp.Tied
	case impasse.OperatorNoChange, impasse.None:
		if imp.HasSelect {
			return []types.Operator{imp.Selected}
		}
	}
	return nil
}

func (a *Agent) invokeEvolution(ctx context.Context, wm *memory.WorkingMemory, rootID string, state types.State, goal types.Goal, verbosity int) (done bool, success bool) {
	if !a.cfg.EvolutionEnabled || a.evoSupport == nil {
		return false, false
	}
	originalCode, ok := a.evoSupport.OriginalCode(state, goal)
	if !ok {
		return false, false
	}
	testCode, _ := a.evoSupport.TestCode(state, goal)
	latestError, _ := state.LatestError()

	tabooNames := make([]string, 0)
	for _, t := range wm.Transitions() {
		tabooNames = append(tabooNames, t.OperatorName)
	}

	scored, ok := evolution.Evolve(ctx, a.llmClient, latestError, goal.Description, originalCode, testCode, tabooNames,
		evolution.Config{Generations: a.cfg.EvolutionGenerations, Population: a.cfg.EvolutionPopulation})
	if !ok {
		return false, false
	}

	op := a.evoSupport.BuildPatchOperator(scored.Candidate.CodePatch, scored.Candidate.Hypothesis)
	result := a.safety.ExecuteWithSafety(ctx, op, state, float64(scored.Result.Score), true, scored.Candidate.Reasoning, verbosity)
	wm.RecordTransition(op, result, state)
	a.monitor.ResetTimer()
	if !result.Success {
		return false, false
	}
	a.createChunk(ctx, op, state, goal, float64(scored.Result.Score))
	wm.SetGoalStatus(rootID, types.GoalSuccess)
	return true, true
}

func (a *Agent) createChunk(ctx context.Context, op types.Operator, state types.State, goal types.Goal, utility float64) {
	if !a.unifiedMem.Enabled() {
		return
	}
	sig := types.Signature(state, goal)
	now := time.Now()
	chunk := types.Chunk{
		ID:              types.ChunkID(sig, op.Name()),
		StateSignature:  sig,
		OperatorName:    op.Name(),
		GoalDescription: goal.Description,
		SuccessCount:    1,
		CreatedAt:       now,
		LastUsed:        now,
		Utility:         utility,
		HasUtility:      true,
	}
	latestError, _ := state.LatestError()
	a.unifiedMem.StoreChunk(ctx, chunk, latestError, state.OpenFiles())
}

func (a *Agent) failRoot(wm *memory.WorkingMemory, reason string) {
	rootID := wm.RootGoal().ID
	wm.SetGoalStatus(rootID, types.GoalFailure)
	wm.RecordFailure(reason)
	logging.Agent("solve failed: %s", reason)
}
