// Package safety implements the safety middleware: the single choke point
// through which every operator execution passes, gating destructive or
// low-utility actions behind an approval hook and honoring dry-run mode.
package safety

import (
	"context"
	"fmt"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// Decision records how a given execution was authorized.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionAuto     Decision = "auto"
	DecisionDenied   Decision = "denied"
	DecisionDryRun   Decision = "dry_run"
)

// ApprovalHook requests human (or policy) approval for executing operator
// for the stated reasoning. It must be synchronous from the middleware's
// perspective — Execute blocks on it — but may itself suspend the calling
// goroutine indefinitely; callers that need a timeout should wrap ctx.
type ApprovalHook func(ctx context.Context, operator types.Operator, reasoning string) bool

// Config controls the middleware's gating policy.
type Config struct {
	DryRun           bool
	ApprovalEnabled  bool
	AutoApproveSafe  bool
	UtilityThreshold float64
}

// Middleware wraps operator execution with the safety decision procedure.
type Middleware struct {
	cfg     Config
	approve ApprovalHook

	approvedCount int
	autoCount     int
	deniedCount   int
	dryRunCount   int
}

// New creates a middleware. approve may be nil only if cfg never gates on
// destructiveness or utility (tests exercising dry-run-only paths).
func New(cfg Config, approve ApprovalHook) *Middleware {
	return &Middleware{cfg: cfg, approve: approve}
}

// ExecuteWithSafety runs operator against state, applying the decision
// order: dry-run short-circuit, destructive-operator approval gate,
// low-utility approval gate, auto-approve-safe fast path, then execution.
// hasUtility/utility represent the ACT-R or chunk-sourced utility estimate,
// when one exists for this selection.
func (m *Middleware) ExecuteWithSafety(ctx context.Context, operator types.Operator, state types.State, utility float64, hasUtility bool, reasoning string, verbosity int) types.OperatorResult {
	if m.cfg.DryRun {
		m.dryRunCount++
		logging.Safety("dry-run: %s (reasoning=%q)", operator.Name(), reasoning)
		return types.OperatorResult{Success: true, NewState: state, HasState: true, Output: fmt.Sprintf("[dry-run] %s", operator.Name())}
	}

	if operator.Destructive() && m.cfg.ApprovalEnabled {
		if m.requestApproval(ctx, operator, reasoning) {
			m.approvedCount++
			logging.Safety("approved destructive operator %s", operator.Name())
			return operator.Execute(state)
		}
		m.deniedCount++
		logging.Safety("denied destructive operator %s", operator.Name())
		return deniedResult(state)
	}

	if hasUtility && utility < m.cfg.UtilityThreshold {
		if m.requestApproval(ctx, operator, reasoning) {
			m.approvedCount++
			logging.Safety("approved low-utility operator %s (utility=%.3f < threshold=%.3f)", operator.Name(), utility, m.cfg.UtilityThreshold)
			return operator.Execute(state)
		}
		m.deniedCount++
		logging.Safety("denied low-utility operator %s (utility=%.3f)", operator.Name(), utility)
		return deniedResult(state)
	}

	if !operator.Destructive() && m.cfg.AutoApproveSafe {
		m.autoCount++
		logging.SafetyDebug("auto-approved non-destructive operator %s", operator.Name())
		return operator.Execute(state)
	}

	// No gate applied: execute directly (e.g. non-destructive operator
	// with auto-approve-safe off and no utility estimate supplied).
	return operator.Execute(state)
}

func (m *Middleware) requestApproval(ctx context.Context, operator types.Operator, reasoning string) bool {
	if m.approve == nil {
		return false
	}
	return m.approve(ctx, operator, reasoning)
}

func deniedResult(state types.State) types.OperatorResult {
	return types.OperatorResult{
		Success:  false,
		NewState: state,
		HasState: true,
		Err:      fmt.Errorf("denied"),
	}
}

// Counters exposes the running approval/auto/denied/dry-run tallies for
// the cycle's decision log.
type Counters struct {
	Approved int
	Auto     int
	Denied   int
	DryRun   int
}

// Counters returns the current running counts.
func (m *Middleware) Counters() Counters {
	return Counters{Approved: m.approvedCount, Auto: m.autoCount, Denied: m.deniedCount, DryRun: m.dryRunCount}
}
