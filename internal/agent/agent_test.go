package agent

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"noetic/internal/actr"
	"noetic/internal/llm"
	"noetic/internal/monitor"
	"noetic/internal/rules"
	"noetic/internal/safety"
	"noetic/internal/types"
	"noetic/internal/unified"
)

type fakeOp struct {
	name        string
	applicable  bool
	destructive bool
	execResult  types.OperatorResult
}

func (f fakeOp) Name() string        { return f.name }
func (f fakeOp) Destructive() bool   { return f.destructive }
func (f fakeOp) IsApplicable(types.State, types.Goal) bool { return f.applicable }
func (f fakeOp) Execute(state types.State) types.OperatorResult {
	if f.execResult.HasState {
		return f.execResult
	}
	return types.OperatorResult{Success: true, NewState: state, HasState: true}
}

type noopMaterializer struct{}

func (noopMaterializer) Materialize(actr.OperatorSuggestion) (types.Operator, bool) { return nil, false }

func newTestAgent(ruleEngine *rules.Engine, mon *monitor.Monitor, resolver *actr.Resolver, mw *safety.Middleware) *Agent {
	return New(ruleEngine, mon, resolver, &unified.Memory{}, mw, noopMaterializer{}, nil, nil, nil,
		Config{MaxCycles: 10, BudgetTokens: 500, RetrievalTopK: 3, MinSuccessRate: 0.7})
}

// Scenario 1: a single rule-matched operator resolves the goal on cycle 0.
func TestScenarioRuleMatchedRead(t *testing.T) {
	op := fakeOp{name: "read_file(main.go)", applicable: true}
	engine := rules.NewEngine()
	engine.Register(rules.Rule{
		Name:     "match",
		Priority: 5,
		Condition: func(types.State, types.Goal) bool { return true },
		Factory:   func(types.State, types.Goal) types.Operator { return op },
	})
	mon := monitor.New(monitor.Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	mw := safety.New(safety.Config{AutoApproveSafe: true}, nil)
	a := newTestAgent(engine, mon, nil, mw)

	ok, _ := a.Solve(context.Background(), "open main.go", types.NewState("/repo"), 0)
	if !ok {
		t.Fatalf("expected the solve to succeed on the first rule-matched operator")
	}
}

// Scenario 2: no proposals ever arrive and no ACT-R resolver is wired, so
// pressure eventually saturates and the cycle terminates fatally rather
// than looping forever.
func TestScenarioNoChangeWithoutLLMIsFatal(t *testing.T) {
	engine := rules.NewEngine() // no rules registered -> always NoChange
	mon := monitor.New(monitor.Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	mw := safety.New(safety.Config{}, nil)
	a := newTestAgent(engine, mon, nil, mw)

	ok, final := a.Solve(context.Background(), "open the project", types.NewState("/repo"), 0)
	if ok {
		t.Fatalf("expected the solve to fail with no operators ever available")
	}
	latest, hasErr := final.LatestError()
	if !hasErr || latest != "no operators available" {
		t.Fatalf("expected the returned state's error log to record the fatal reason, got hasErr=%v latest=%q", hasErr, latest)
	}
}

type scriptedACTRTransport struct {
	body string
}

func (s scriptedACTRTransport) Complete(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	return s.body, nil
}
func (s scriptedACTRTransport) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

// Scenario 3: two rule-tied operators escalate to the ACT-R resolver, which
// picks a winner by utility and the solve succeeds via that path.
func TestScenarioTieEscalatesToACTR(t *testing.T) {
	a1 := fakeOp{name: "op_a", applicable: true}
	a2 := fakeOp{name: "op_b", applicable: true}
	engine := rules.NewEngine()
	engine.Register(rules.Rule{Name: "a", Priority: 5, Condition: func(types.State, types.Goal) bool { return true }, Factory: func(types.State, types.Goal) types.Operator { return a1 }})
	engine.Register(rules.Rule{Name: "b", Priority: 5, Condition: func(types.State, types.Goal) bool { return true }, Factory: func(types.State, types.Goal) types.Operator { return a2 }})

	evalBody := `{"estimates":[{"operator_name":"op_a","probability_of_success":0.9,"estimated_cost":1},` +
		`{"operator_name":"op_b","probability_of_success":0.1,"estimated_cost":5}],"recommendation":"op_a"}`
	client := llm.New("m", time.Second, 0, 0, func() llm.Transport { return scriptedACTRTransport{body: evalBody} })
	resolver := actr.New(client, actr.Config{GoalValue: 10, NoiseStdDev: 0, HistoryPenaltyMult: 2}, rand.New(rand.NewSource(1)), nil)
	mw := safety.New(safety.Config{AutoApproveSafe: true}, nil)

	// a zero time threshold saturates the time-pressure term immediately
	// (see monitor.ratio), so by the second cycle depth+time+ambiguity
	// crosses the ACT-R escalation threshold without real clock time passing
	mon := monitor.New(monitor.Thresholds{DepthThreshold: 1, TimeThresholdMS: 0}, nil)

	a := newTestAgent(engine, mon, resolver, mw)
	ok, _ := a.Solve(context.Background(), "resolve the tie", types.NewState("/repo"), 0)
	if !ok {
		t.Fatalf("expected ACT-R escalation to resolve the tie")
	}
}
