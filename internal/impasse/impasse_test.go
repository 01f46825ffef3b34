package impasse

import (
	"testing"

	"noetic/internal/types"
)

type testOp struct {
	name       string
	applicable bool
}

func (o testOp) Name() string                              { return o.name }
func (o testOp) Destructive() bool                          { return false }
func (o testOp) IsApplicable(types.State, types.Goal) bool { return o.applicable }
func (o testOp) Execute(s types.State) types.OperatorResult {
	return types.OperatorResult{Success: true, NewState: s, HasState: true}
}

func TestEmptyProposalsIsNoChange(t *testing.T) {
	r := Classify(types.NewState("/p"), types.Goal{}, nil)
	if r.Kind != NoChange {
		t.Fatalf("expected NoChange, got %s", r.Kind)
	}
}

func TestSingleProposalIsNoImpasse(t *testing.T) {
	op := testOp{name: "x", applicable: true}
	r := Classify(types.NewState("/p"), types.Goal{}, []types.Proposal{{Operator: op, Priority: 5}})
	if r.Kind != None || r.Selected.Name() != "x" {
		t.Fatalf("expected None with selected=x, got %+v", r)
	}
}

func TestTiedTopPriorityIsTie(t *testing.T) {
	a := testOp{name: "a", applicable: true}
	b := testOp{name: "b", applicable: true}
	r := Classify(types.NewState("/p"), types.Goal{}, []types.Proposal{
		{Operator: a, Priority: 5}, {Operator: b, Priority: 5},
	})
	if r.Kind != Tie || len(r.Tied) != 2 {
		t.Fatalf("expected Tie with 2 operators, got %+v", r)
	}
}

func TestDistinctPrioritiesPicksTop(t *testing.T) {
	top := testOp{name: "top", applicable: true}
	low := testOp{name: "low", applicable: true}
	r := Classify(types.NewState("/p"), types.Goal{}, []types.Proposal{
		{Operator: top, Priority: 6}, {Operator: low, Priority: 3},
	})
	if r.Kind != None || r.Selected.Name() != "top" {
		t.Fatalf("expected top operator selected, got %+v", r)
	}
}

func TestInapplicableTopBecomesOperatorNoChange(t *testing.T) {
	top := testOp{name: "top", applicable: false}
	low := testOp{name: "low", applicable: true}
	r := Classify(types.NewState("/p"), types.Goal{}, []types.Proposal{
		{Operator: top, Priority: 6}, {Operator: low, Priority: 3},
	})
	if r.Kind != OperatorNoChange || r.Selected.Name() != "top" {
		t.Fatalf("expected OperatorNoChange carrying top, got %+v", r)
	}
}
