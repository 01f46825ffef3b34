// Package monitor implements the meta-cognitive pressure monitor: the
// "relief valve" that decides whether an impasse can be handled
// symbolically, needs the ACT-R resolver, or is severe enough to escape to
// the evolutionary solver.
package monitor

import (
	"strings"
	"time"

	"noetic/internal/impasse"
	"noetic/internal/logging"
	"noetic/internal/types"
)

// Thresholds configure where depth- and time-pressure saturate.
type Thresholds struct {
	DepthThreshold  int
	TimeThresholdMS int64
}

// Decision is the policy outcome for a given pressure and impasse.
type Decision int

const (
	// DecisionSubgoal means the symbolic path may subgoal to resolve the
	// impasse (only offered for NoChange/Tie impasses under low pressure).
	DecisionSubgoal Decision = iota
	// DecisionProceed means apply the impasse's selected top operator.
	DecisionProceed
	// DecisionInvokeACTR means escalate to the ACT-R resolver.
	DecisionInvokeACTR
	// DecisionInvokeEvolution means escalate to the evolutionary solver.
	DecisionInvokeEvolution
	// DecisionFatal means no symbolic, ACT-R, or evolutionary path applies;
	// the caller must treat this as a fatal impasse for the cycle.
	DecisionFatal
)

// Monitor tracks the clock used for time-in-state pressure and exposes the
// policy decision for a computed pressure value.
type Monitor struct {
	thresholds  Thresholds
	enteredAt   time.Time
	now         func() time.Time
	isCodeFixGoal func(string) bool
}

// New creates a monitor with the given thresholds. isCodeFixGoal classifies
// a goal description as a code-repair goal, gating the evolutionary escape;
// callers may supply their own predicate (the design recommends exposing
// this as configurable rather than hardcoding a keyword list).
func New(thresholds Thresholds, isCodeFixGoal func(string) bool) *Monitor {
	if isCodeFixGoal == nil {
		isCodeFixGoal = DefaultCodeFixClassifier
	}
	m := &Monitor{
		thresholds:    thresholds,
		now:           time.Now,
		isCodeFixGoal: isCodeFixGoal,
	}
	m.ResetTimer()
	return m
}

// DefaultCodeFixClassifier is the keyword-based code-fix classifier named
// in the design: a goal description mentioning "fix", "bug", or "error" is
// treated as a code-repair goal eligible for the evolutionary solver.
func DefaultCodeFixClassifier(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range []string{"fix", "bug", "error"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ResetTimer restarts the time-in-state clock; the orchestrator calls this
// whenever state changes.
func (m *Monitor) ResetTimer() {
	m.enteredAt = m.now()
}

// TimeInStateMS returns milliseconds elapsed since the last ResetTimer.
func (m *Monitor) TimeInStateMS() int64 {
	return m.now().Sub(m.enteredAt).Milliseconds()
}

// OperatorAmbiguity derives the ambiguity signal from an impasse result:
// 0 for a single selection, 1-1/n for n tied top proposals, 1 for no
// proposals at all.
func OperatorAmbiguity(result impasse.Result) float64 {
	switch result.Kind {
	case impasse.NoChange:
		return 1
	case impasse.Tie:
		n := len(result.Tied)
		if n == 0 {
			return 1
		}
		return 1 - 1/float64(n)
	default:
		return 0
	}
}

// Pressure computes the scalar cognitive pressure P in [0,1]. hasLoop
// overrides the computed value, raising it to at least 0.9.
func (m *Monitor) Pressure(metrics types.CognitiveMetrics, hasLoop bool) float64 {
	depthTerm := ratio(float64(metrics.GoalDepth), float64(m.thresholds.DepthThreshold))
	timeTerm := ratio(float64(metrics.TimeInStateMS), float64(m.thresholds.TimeThresholdMS))

	p := 0.4*depthTerm + 0.3*timeTerm + 0.3*metrics.OperatorAmbiguity
	if hasLoop && p < 0.9 {
		logging.MonitorDebug("loop detected, raising pressure from %.3f to 0.9", p)
		p = 0.9
	}
	if p > 1 {
		p = 1
	}
	logging.MonitorDebug("pressure=%.3f (depth=%.3f time=%.3f ambiguity=%.3f loop=%v)",
		p, depthTerm, timeTerm, metrics.OperatorAmbiguity, hasLoop)
	return p
}

func ratio(value, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	r := value / threshold
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

// Decide applies the design's policy table: below 0.7, the symbolic path
// may subgoal for NoChange/Tie impasses or simply proceed; [0.7,0.9)
// invokes ACT-R; at or above 0.9, or when actrFailed is true, a goal
// classifiable as a code-fix goal invokes evolution. A non-code-fix goal at
// or above 0.9 invokes ACT-R while actrFailed is false; once ACT-R has
// nothing to offer, the decision is fatal for this cycle.
func (m *Monitor) Decide(pressure float64, impasseResult impasse.Result, goalDescription string, actrFailed bool) Decision {
	if pressure < 0.7 {
		if impasseResult.Kind == impasse.NoChange || impasseResult.Kind == impasse.Tie {
			return DecisionSubgoal
		}
		return DecisionProceed
	}
	if pressure < 0.9 && !actrFailed {
		return DecisionInvokeACTR
	}
	if m.isCodeFixGoal(goalDescription) {
		return DecisionInvokeEvolution
	}
	if !actrFailed {
		return DecisionInvokeACTR
	}
	return DecisionFatal
}
