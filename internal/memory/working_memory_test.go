package memory

import (
	"errors"
	"testing"

	"noetic/internal/types"
)

type stubOperator struct {
	name        string
	destructive bool
	applicable  bool
	result      types.OperatorResult
}

func (s stubOperator) Name() string                                { return s.name }
func (s stubOperator) Destructive() bool                           { return s.destructive }
func (s stubOperator) IsApplicable(types.State, types.Goal) bool   { return s.applicable }
func (s stubOperator) Execute(types.State) types.OperatorResult    { return s.result }

func TestPushPopRestoresCurrentGoal(t *testing.T) {
	wm := New(types.NewState("/p"), "root goal")
	root := wm.CurrentGoal()

	sub := wm.PushGoal("sub goal", root.ID, true, 1)
	if wm.CurrentGoal().ID != sub.ID {
		t.Fatalf("expected current goal to be sub goal after push")
	}

	restored, popped := wm.PopGoal(types.GoalSuccess)
	if !popped {
		t.Fatalf("expected pop to succeed")
	}
	if restored.ID != root.ID {
		t.Fatalf("expected pop to restore root goal, got %s", restored.ID)
	}
}

func TestRootGoalIsNeverPopped(t *testing.T) {
	wm := New(types.NewState("/p"), "root goal")
	root := wm.CurrentGoal()
	_, popped := wm.PopGoal(types.GoalFailure)
	if popped {
		t.Fatalf("root goal must never be popped")
	}
	if wm.CurrentGoal().ID != root.ID {
		t.Fatalf("root goal must remain current")
	}
}

func TestActionCountIncrementsMonotonically(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	op := stubOperator{name: "read_file(a.go)", result: types.OperatorResult{Success: true, NewState: types.NewState("/p"), HasState: true}}
	for i := 1; i <= 5; i++ {
		wm.RecordTransition(op, op.result, wm.CurrentState())
		if wm.GetActionCount(op.name) != i {
			t.Fatalf("expected action count %d, got %d", i, wm.GetActionCount(op.name))
		}
	}
}

func TestHasLoopDetectsRepeatedFailures(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	op := stubOperator{name: "run_code()", result: types.OperatorResult{Success: false, Err: errors.New("boom")}}
	for i := 0; i < defaultLoopWindow; i++ {
		wm.RecordTransition(op, op.result, wm.CurrentState())
	}
	if !wm.HasLoop() {
		t.Fatalf("expected loop to be detected after %d identical failures", defaultLoopWindow)
	}
}

func TestRecordTransitionKeepsErrorAnnotatedStateOnFailure(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	failed := types.NewState("/p").WithError("boom")
	op := stubOperator{name: "write_file(a.go)", result: types.OperatorResult{Success: false, NewState: failed, HasState: true, Err: errors.New("boom")}}

	wm.RecordTransition(op, op.result, wm.CurrentState())

	latest, ok := wm.CurrentState().LatestError()
	if !ok || latest != "boom" {
		t.Fatalf("expected the failed operator's error-annotated state to become the current snapshot, got ok=%v latest=%q", ok, latest)
	}
}

func TestHasLoopFalseOnMixedOutcomes(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	failOp := stubOperator{name: "run_code()", result: types.OperatorResult{Success: false, Err: errors.New("boom")}}
	okOp := stubOperator{name: "run_code()", result: types.OperatorResult{Success: true, NewState: types.NewState("/p"), HasState: true}}
	wm.RecordTransition(failOp, failOp.result, wm.CurrentState())
	wm.RecordTransition(okOp, okOp.result, wm.CurrentState())
	wm.RecordTransition(failOp, failOp.result, wm.CurrentState())
	if wm.HasLoop() {
		t.Fatalf("expected no loop when a success breaks the run")
	}
}

func TestRollbackNeverPassesInitialState(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	op := stubOperator{result: types.OperatorResult{Success: true, NewState: types.NewState("/q"), HasState: true}}
	wm.RecordTransition(op, op.result, wm.CurrentState())
	wm.Rollback(100)
	if wm.CurrentState().WorkingDir != "/p" {
		t.Fatalf("expected rollback to clamp at initial state, got %s", wm.CurrentState().WorkingDir)
	}
}

func TestRollbackPreservesActionCounts(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	op := stubOperator{name: "read_file(a.go)", result: types.OperatorResult{Success: true, NewState: types.NewState("/p"), HasState: true}}
	wm.RecordTransition(op, op.result, wm.CurrentState())
	wm.Rollback(1)
	if wm.GetActionCount(op.name) != 1 {
		t.Fatalf("expected action count to survive rollback, got %d", wm.GetActionCount(op.name))
	}
}

func TestTransitionsHaveDistinctTimestamps(t *testing.T) {
	wm := New(types.NewState("/p"), "goal")
	op := stubOperator{name: "x", result: types.OperatorResult{Success: true, NewState: types.NewState("/p"), HasState: true}}
	for i := 0; i < 10; i++ {
		wm.RecordTransition(op, op.result, wm.CurrentState())
	}
	ts := wm.Transitions()
	for i := 1; i < len(ts); i++ {
		if !ts[i].Timestamp.After(ts[i-1].Timestamp) {
			t.Fatalf("transition timestamps must be strictly increasing")
		}
	}
}
