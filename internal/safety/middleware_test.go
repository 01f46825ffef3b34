package safety

import (
	"context"
	"testing"

	"noetic/internal/types"
)

type fakeOp struct {
	name        string
	destructive bool
	executed    bool
}

func (f *fakeOp) Name() string                             { return f.name }
func (f *fakeOp) Destructive() bool                         { return f.destructive }
func (f *fakeOp) IsApplicable(types.State, types.Goal) bool { return true }
func (f *fakeOp) Execute(s types.State) types.OperatorResult {
	f.executed = true
	return types.OperatorResult{Success: true, NewState: s, HasState: true}
}

func TestDestructiveWriteDeniedByApprovalHook(t *testing.T) {
	op := &fakeOp{name: "write_file(config.json)", destructive: true}
	reject := func(ctx context.Context, operator types.Operator, reasoning string) bool { return false }
	mw := New(Config{ApprovalEnabled: true, UtilityThreshold: 3.0}, reject)

	res := mw.ExecuteWithSafety(context.Background(), op, types.NewState("/p"), 2.5, true, "low confidence", 0)
	if res.Success {
		t.Fatalf("expected denied result, got success")
	}
	if res.Err == nil || res.Err.Error() != "denied" {
		t.Fatalf("expected err=\"denied\", got %v", res.Err)
	}
	if op.executed {
		t.Fatalf("expected operator not to execute when denied")
	}
	if mw.Counters().Denied != 1 {
		t.Fatalf("expected denied counter = 1, got %+v", mw.Counters())
	}
}

func TestLowUtilityDeniedByApprovalHook(t *testing.T) {
	op := &fakeOp{name: "write_file(config.json)", destructive: false}
	reject := func(ctx context.Context, operator types.Operator, reasoning string) bool { return false }
	mw := New(Config{ApprovalEnabled: true, UtilityThreshold: 3.0}, reject)

	res := mw.ExecuteWithSafety(context.Background(), op, types.NewState("/p"), 2.5, true, "low confidence", 0)
	if res.Success || res.Err.Error() != "denied" {
		t.Fatalf("expected denied result for utility below threshold, got %+v", res)
	}
	if op.executed {
		t.Fatalf("expected operator not to execute when denied")
	}
}

func TestDryRunNeverExecutes(t *testing.T) {
	op := &fakeOp{name: "write_file(x)", destructive: true}
	mw := New(Config{DryRun: true}, nil)

	res := mw.ExecuteWithSafety(context.Background(), op, types.NewState("/p"), 0, false, "", 0)
	if !res.Success {
		t.Fatalf("expected dry-run to report success")
	}
	if op.executed {
		t.Fatalf("expected dry-run not to execute the operator")
	}
	if mw.Counters().DryRun != 1 {
		t.Fatalf("expected dry_run counter = 1, got %+v", mw.Counters())
	}
}

func TestAutoApproveSafeExecutesNonDestructiveDirectly(t *testing.T) {
	op := &fakeOp{name: "read_file(x)", destructive: false}
	mw := New(Config{AutoApproveSafe: true}, nil)

	res := mw.ExecuteWithSafety(context.Background(), op, types.NewState("/p"), 0, false, "", 0)
	if !res.Success || !op.executed {
		t.Fatalf("expected auto-approved execution, got %+v executed=%v", res, op.executed)
	}
	if mw.Counters().Auto != 1 {
		t.Fatalf("expected auto counter = 1, got %+v", mw.Counters())
	}
}

func TestApprovalGrantedExecutesDestructiveOperator(t *testing.T) {
	op := &fakeOp{name: "write_file(config.json)", destructive: true}
	accept := func(ctx context.Context, operator types.Operator, reasoning string) bool { return true }
	mw := New(Config{ApprovalEnabled: true}, accept)

	res := mw.ExecuteWithSafety(context.Background(), op, types.NewState("/p"), 0, false, "confident", 0)
	if !res.Success || !op.executed {
		t.Fatalf("expected approved execution, got %+v executed=%v", res, op.executed)
	}
	if mw.Counters().Approved != 1 {
		t.Fatalf("expected approved counter = 1, got %+v", mw.Counters())
	}
}
