// Package memory implements the working-memory component of the decision
// engine: the goal stack (an arena of context-tree nodes addressed by
// stable IDs, per the arena pattern recommended for cyclic goal
// structures), the transition ring, and the tabu action-count table.
package memory

import (
	"fmt"
	"strings"
	"time"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// defaultLoopWindow is L in has_loop's "last L transitions" rule.
const defaultLoopWindow = 3

// defaultRingSize bounds the transition history kept in memory.
const defaultRingSize = 500

// WorkingMemory holds one solve invocation's mutable state: the goal arena,
// a snapshot history (for rollback), the transition ring, and the
// action-count table. It is owned by a single agent and never shared
// across concurrent solves.
type WorkingMemory struct {
	goals       map[string]types.Goal
	goalOrder   []string // push order, for stable iteration/debugging
	stack       []string // IDs, top is current goal
	nextGoalID  int

	snapshots []types.State // index-aligned with a logical "step" counter
	initial   types.State

	transitions []types.Transition
	ringSize    int
	loopWindow  int

	actionCounts map[string]int
}

// New creates working memory seeded with root as the initial state and
// goalDescription as the root goal, pushed onto the stack.
func New(root types.State, goalDescription string) *WorkingMemory {
	wm := &WorkingMemory{
		goals:        make(map[string]types.Goal),
		snapshots:    []types.State{root},
		initial:      root,
		ringSize:     defaultRingSize,
		loopWindow:   defaultLoopWindow,
		actionCounts: make(map[string]int),
	}
	wm.PushGoal(goalDescription, "", false, 0)
	logging.Memory("working memory initialized, root goal=%q dir=%s", goalDescription, root.WorkingDir)
	return wm
}

func (wm *WorkingMemory) allocGoalID() string {
	wm.nextGoalID++
	return fmt.Sprintf("goal-%d", wm.nextGoalID)
}

// PushGoal creates a new goal, pushes it onto the stack, and records it as a
// sub-goal of parentID if provided. The invariant that the goal stack is
// non-empty while running is established here and never violated by Pop,
// which refuses to pop the root.
func (wm *WorkingMemory) PushGoal(description, parentID string, hasParent bool, priority float64) types.Goal {
	id := wm.allocGoalID()
	g := types.Goal{
		ID:          id,
		Description: description,
		ParentID:    parentID,
		HasParent:   hasParent,
		Status:      types.GoalActive,
		Priority:    priority,
	}
	wm.goals[id] = g
	wm.goalOrder = append(wm.goalOrder, id)
	wm.stack = append(wm.stack, id)

	if hasParent {
		parent := wm.goals[parentID]
		parent.SubGoalIDs = append(parent.SubGoalIDs, id)
		wm.goals[parentID] = parent
	}

	logging.MemoryDebug("pushed goal %s %q (depth=%d)", id, description, wm.Depth(id))
	return g
}

// PopGoal marks the current goal with status and pops it, unless it is the
// root, which is never popped. Returns the goal that is now current, and
// whether a pop actually happened.
func (wm *WorkingMemory) PopGoal(status types.GoalStatus) (types.Goal, bool) {
	if len(wm.stack) <= 1 {
		logging.MemoryDebug("refusing to pop root goal")
		return wm.CurrentGoal(), false
	}
	top := wm.stack[len(wm.stack)-1]
	g := wm.goals[top]
	g.Status = status
	wm.goals[top] = g
	wm.stack = wm.stack[:len(wm.stack)-1]
	logging.MemoryDebug("popped goal %s with status %s", top, status)
	return wm.CurrentGoal(), true
}

// CurrentGoal returns the top of the goal stack.
func (wm *WorkingMemory) CurrentGoal() types.Goal {
	if len(wm.stack) == 0 {
		return types.Goal{}
	}
	return wm.goals[wm.stack[len(wm.stack)-1]]
}

// RootGoal returns the bottom of the goal stack.
func (wm *WorkingMemory) RootGoal() types.Goal {
	if len(wm.stack) == 0 {
		return types.Goal{}
	}
	return wm.goals[wm.stack[0]]
}

// SetGoalStatus updates a goal's status in place (used when the root itself
// is marked success/failure without being popped).
func (wm *WorkingMemory) SetGoalStatus(id string, status types.GoalStatus) {
	g, ok := wm.goals[id]
	if !ok {
		return
	}
	g.Status = status
	wm.goals[id] = g
}

// Depth returns a goal's distance to root.
func (wm *WorkingMemory) Depth(id string) int {
	return types.Depth(id, func(s string) (types.Goal, bool) {
		g, ok := wm.goals[s]
		return g, ok
	})
}

// CurrentState returns the most recent state snapshot.
func (wm *WorkingMemory) CurrentState() types.State {
	return wm.snapshots[len(wm.snapshots)-1]
}

// RecordFailure appends reason to the current state's error log without an
// operator transition, for terminal paths (cancellation, exhausted cycles,
// no operators available) that fail the solve outside RecordTransition.
func (wm *WorkingMemory) RecordFailure(reason string) {
	wm.snapshots = append(wm.snapshots, wm.CurrentState().WithError(reason))
}

// RecordTransition appends a transition derived from executing op against
// the pre-execution state, updates the action-count table, and appends the
// resulting state as the current snapshot. On failure, operators still
// return an error-annotated state (see State.WithError) that must become
// the new snapshot so the failure reaches State.ErrorLog; only when an
// operator reports no state at all does the pre-execution state carry
// forward unchanged.
func (wm *WorkingMemory) RecordTransition(op types.Operator, result types.OperatorResult, from types.State) types.Transition {
	to := from
	if result.HasState {
		to = result.NewState
	}

	t := types.Transition{
		OperatorName: op.Name(),
		Success:      result.Success,
		Timestamp:    wm.nextTimestamp(),
		FromHash:     types.StateHash(from),
		ToHash:       types.StateHash(to),
	}
	if result.Err != nil {
		t.Err = result.Err.Error()
		t.HasErr = true
	}

	wm.transitions = append(wm.transitions, t)
	if len(wm.transitions) > wm.ringSize {
		wm.transitions = wm.transitions[len(wm.transitions)-wm.ringSize:]
	}

	wm.actionCounts[op.Name()]++
	wm.snapshots = append(wm.snapshots, to)

	logging.MemoryDebug("recorded transition op=%s success=%v", op.Name(), result.Success)
	return t
}

// nextTimestamp guarantees every transition in a solve gets a distinct,
// monotonically increasing timestamp even under a fast clock.
func (wm *WorkingMemory) nextTimestamp() time.Time {
	now := time.Now()
	if len(wm.transitions) == 0 {
		return now
	}
	last := wm.transitions[len(wm.transitions)-1].Timestamp
	if !now.After(last) {
		return last.Add(time.Nanosecond)
	}
	return now
}

// Rollback reverts to the snapshot k steps back from current, never past
// the initial state. It does not touch action_counts or the transition
// log: tabu memory must survive rollback so it can still break loops.
func (wm *WorkingMemory) Rollback(k int) types.State {
	target := len(wm.snapshots) - 1 - k
	if target < 0 {
		target = 0
	}
	wm.snapshots = wm.snapshots[:target+1]
	logging.Memory("rolled back %d step(s), now at snapshot index %d", k, target)
	return wm.CurrentState()
}

// HasLoop is true when the last L transitions share the same operator name
// and all failed.
func (wm *WorkingMemory) HasLoop() bool {
	n := len(wm.transitions)
	if n < defaultLoopWindow {
		return false
	}
	window := wm.transitions[n-defaultLoopWindow:]
	name := window[0].OperatorName
	for _, t := range window {
		if t.OperatorName != name || t.Success {
			return false
		}
	}
	return true
}

// GetActionCount returns how many times operator name has been applied in
// this solve. Never decremented.
func (wm *WorkingMemory) GetActionCount(name string) int {
	return wm.actionCounts[name]
}

// GetTrace renders the transition log as human-readable text, newest last.
func (wm *WorkingMemory) GetTrace() string {
	var b strings.Builder
	for _, t := range wm.transitions {
		status := "ok"
		if !t.Success {
			status = "fail"
		}
		fmt.Fprintf(&b, "%s %s [%s]", t.Timestamp.Format(time.RFC3339Nano), t.OperatorName, status)
		if t.HasErr {
			fmt.Fprintf(&b, " err=%s", t.Err)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Transitions returns a copy of the recorded transitions in order.
func (wm *WorkingMemory) Transitions() []types.Transition {
	out := make([]types.Transition, len(wm.transitions))
	copy(out, wm.transitions)
	return out
}

// GoalByID looks up a goal in the arena regardless of stack membership.
func (wm *WorkingMemory) GoalByID(id string) (types.Goal, bool) {
	g, ok := wm.goals[id]
	return g, ok
}
