// Package impasse classifies a rule engine's proposal set into the outcome
// the meta-cognitive monitor and orchestrator act on.
package impasse

import (
	"noetic/internal/logging"
	"noetic/internal/types"
)

// Kind tags the classification of a proposal set.
type Kind int

const (
	// None means a single operator was selected outright.
	None Kind = iota
	NoChange
	Tie
	Conflict
	OperatorNoChange
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case NoChange:
		return "no_change"
	case Tie:
		return "tie"
	case Conflict:
		return "conflict"
	case OperatorNoChange:
		return "operator_no_change"
	default:
		return "unknown"
	}
}

// Result is the outcome of classifying a proposal set.
type Result struct {
	Kind      Kind
	Selected  types.Operator // valid when Kind == None or OperatorNoChange
	HasSelect bool
	Tied      []types.Operator // valid when Kind == Tie or Conflict
}

// Classify implements the current default policy: empty proposals is
// NoChange; a single proposal is not an impasse; two or more proposals
// sharing the top priority is a Tie; two or more with distinct priorities
// picks the top but demotes to OperatorNoChange if it fails its own
// applicability check against the current state. Conflict is reserved for
// future incomparable-priority policies and is never emitted by this
// policy today.
func Classify(state types.State, goal types.Goal, proposals []types.Proposal) Result {
	if len(proposals) == 0 {
		logging.ImpasseDebug("no proposals -> NoChange")
		return Result{Kind: NoChange}
	}
	if len(proposals) == 1 {
		return Result{Kind: None, Selected: proposals[0].Operator, HasSelect: true}
	}

	top := proposals[0].Priority
	var tiedAtTop []types.Operator
	for _, p := range proposals {
		if p.Priority == top {
			tiedAtTop = append(tiedAtTop, p.Operator)
		}
	}
	if len(tiedAtTop) >= 2 {
		logging.ImpasseDebug("%d proposals tied at priority %.2f -> Tie", len(tiedAtTop), top)
		return Result{Kind: Tie, Tied: tiedAtTop}
	}

	winner := proposals[0].Operator
	if !winner.IsApplicable(state, goal) {
		logging.Impasse("selected operator %s inapplicable against current state -> OperatorNoChange", winner.Name())
		return Result{Kind: OperatorNoChange, Selected: winner, HasSelect: true}
	}
	return Result{Kind: None, Selected: winner, HasSelect: true}
}
