package rules

import (
	"testing"

	"noetic/internal/types"
)

type fakeOp struct {
	name string
}

func (f fakeOp) Name() string                              { return f.name }
func (f fakeOp) Destructive() bool                          { return false }
func (f fakeOp) IsApplicable(types.State, types.Goal) bool { return true }
func (f fakeOp) Execute(s types.State) types.OperatorResult {
	return types.OperatorResult{Success: true, NewState: s, HasState: true}
}

type fakeFactory struct{}

func (fakeFactory) ReadFile(path string) types.Operator {
	return fakeOp{name: "read_file(" + path + ")"}
}
func (fakeFactory) ListDirectory(path string) types.Operator {
	return fakeOp{name: "list_directory(" + path + ")"}
}

func TestScenarioRuleMatchedRead(t *testing.T) {
	eng := NewEngine()
	for _, r := range DefaultRules(fakeFactory{}) {
		eng.Register(r)
	}

	state := types.NewState("/p")
	goal := types.Goal{Description: "Read main.py"}

	// inspection_read (priority 5) proposes the read; explore_when_empty
	// (priority 3) also fires because no files are open, but ranks below it,
	// so the read is the single top proposal and there is no tie.
	proposals := eng.Propose(state, goal)
	if len(proposals) != 2 {
		t.Fatalf("expected exactly two proposals, got %d: %+v", len(proposals), proposals)
	}
	if proposals[0].Operator.Name() != "read_file(main.py)" {
		t.Fatalf("expected read_file(main.py), got %s", proposals[0].Operator.Name())
	}
	if proposals[1].Operator.Name() != "list_directory(/p)" || proposals[1].Priority >= proposals[0].Priority {
		t.Fatalf("expected lower-priority list_directory(/p) second, got %+v", proposals[1])
	}
}

func TestExploreWhenNoFilesOpen(t *testing.T) {
	eng := NewEngine()
	for _, r := range DefaultRules(fakeFactory{}) {
		eng.Register(r)
	}
	proposals := eng.Propose(types.NewState("/p"), types.Goal{Description: "do something vague"})
	found := false
	for _, p := range proposals {
		if p.Operator.Name() == "list_directory(/p)" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected explore-when-empty rule to fire, got %+v", proposals)
	}
}

func TestProposeIsIdempotent(t *testing.T) {
	eng := NewEngine()
	for _, r := range DefaultRules(fakeFactory{}) {
		eng.Register(r)
	}
	state := types.NewState("/p")
	goal := types.Goal{Description: "Read main.py"}
	a := eng.Propose(state, goal)
	b := eng.Propose(state, goal)
	if len(a) != len(b) || (len(a) > 0 && a[0].Operator.Name() != b[0].Operator.Name()) {
		t.Fatalf("expected byte-identical proposals across calls")
	}
}

func TestPanickingConditionTreatedAsNonMatch(t *testing.T) {
	eng := NewEngine()
	eng.Register(Rule{
		Name:     "panics",
		Priority: 99,
		Condition: func(types.State, types.Goal) bool {
			panic("boom")
		},
		Factory: func(types.State, types.Goal) types.Operator { return fakeOp{name: "never"} },
	})
	proposals := eng.Propose(types.NewState("/p"), types.Goal{})
	if len(proposals) != 0 {
		t.Fatalf("expected panicking rule to be treated as non-match")
	}
}

func TestTieAtSamePriorityRegistrationOrderStable(t *testing.T) {
	eng := NewEngine()
	eng.Register(Rule{Name: "a", Priority: 5, Condition: func(types.State, types.Goal) bool { return true }, Factory: func(types.State, types.Goal) types.Operator { return fakeOp{name: "op_a"} }})
	eng.Register(Rule{Name: "b", Priority: 5, Condition: func(types.State, types.Goal) bool { return true }, Factory: func(types.State, types.Goal) types.Operator { return fakeOp{name: "op_b"} }})

	proposals := eng.Propose(types.NewState("/p"), types.Goal{Description: "Open config."})
	if len(proposals) != 2 || proposals[0].Operator.Name() != "op_a" || proposals[1].Operator.Name() != "op_b" {
		t.Fatalf("expected registration-order tiebreak, got %+v", proposals)
	}
}

func TestMergeInjectedOutranksDefaultPriority(t *testing.T) {
	injected := []types.Proposal{{Operator: fakeOp{name: "chunked_op"}, Priority: InjectedPriority}}
	ruleProposals := []types.Proposal{{Operator: fakeOp{name: "rule_op"}, Priority: 6}}
	merged := MergeInjected(injected, ruleProposals)
	if merged[0].Operator.Name() != "chunked_op" {
		t.Fatalf("expected injected proposal to rank first, got %+v", merged)
	}
}
