package monitor

import (
	"testing"

	"noetic/internal/impasse"
	"noetic/internal/types"
)

func TestScenarioTiePressureIsPoint15(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	result := impasse.Result{Kind: impasse.Tie, Tied: []types.Operator{nil, nil}}
	metrics := types.CognitiveMetrics{
		GoalDepth:         0,
		TimeInStateMS:     0,
		OperatorAmbiguity: OperatorAmbiguity(result),
	}
	p := m.Pressure(metrics, false)
	if diff := p - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected pressure 0.15, got %v", p)
	}
	if m.Decide(p, result, "open config", false) != DecisionSubgoal {
		t.Fatalf("expected subgoal decision below 0.7 with Tie impasse")
	}
}

func TestLoopOverridesPressureToAtLeast09(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	p := m.Pressure(types.CognitiveMetrics{}, true)
	if p < 0.9 {
		t.Fatalf("expected pressure >= 0.9 when loop detected, got %v", p)
	}
}

func TestPressureMonotonicOnLoopTransition(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	metrics := types.CognitiveMetrics{GoalDepth: 1, TimeInStateMS: 10}
	without := m.Pressure(metrics, false)
	with := m.Pressure(metrics, true)
	if with < without {
		t.Fatalf("expected pressure to be non-decreasing when loop becomes true: %v -> %v", without, with)
	}
}

func TestModerateRangeInvokesACTR(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	if m.Decide(0.75, impasse.Result{Kind: impasse.None}, "goal", false) != DecisionInvokeACTR {
		t.Fatalf("expected ACT-R invocation in [0.7, 0.9)")
	}
}

func TestHighPressureCodeFixGoalInvokesEvolution(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	if m.Decide(0.95, impasse.Result{Kind: impasse.NoChange}, "fix the bug in main.go", false) != DecisionInvokeEvolution {
		t.Fatalf("expected evolution invocation for code-fix goal at high pressure")
	}
}

func TestHighPressureNonCodeFixFallsBackToACTR(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	if m.Decide(0.95, impasse.Result{Kind: impasse.NoChange}, "reorganize the docs", false) != DecisionInvokeACTR {
		t.Fatalf("expected ACT-R fallback for a non-code-fix goal not yet attempted")
	}
}

func TestHighPressureNonCodeFixActrFailedIsFatal(t *testing.T) {
	m := New(Thresholds{DepthThreshold: 3, TimeThresholdMS: 500}, nil)
	if m.Decide(0.95, impasse.Result{Kind: impasse.NoChange}, "reorganize the docs", true) != DecisionFatal {
		t.Fatalf("expected fatal decision when ACT-R already failed and goal isn't code-fix")
	}
}

func TestDefaultCodeFixClassifierKeywords(t *testing.T) {
	cases := map[string]bool{
		"fix the off-by-one bug":  true,
		"resolve this ERROR":      true,
		"write the release notes": false,
	}
	for goal, want := range cases {
		if got := DefaultCodeFixClassifier(goal); got != want {
			t.Fatalf("classifier(%q) = %v, want %v", goal, got, want)
		}
	}
}
