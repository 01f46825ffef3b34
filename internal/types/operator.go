package types

// OperatorResult is what an Operator's execution produces.
type OperatorResult struct {
	Success  bool
	NewState State
	HasState bool
	Output   string
	Err      error
}

// Operator is a discrete action with an applicability predicate and an
// execution capability. Concrete operators (read-file, list-directory,
// write-file, apply-fix, run-code) live outside the core; the engine only
// ever holds this interface, per the host-operator contract.
type Operator interface {
	// Name is a stable string including parameters in its textual form,
	// e.g. "read_file(main.py)". Used as the tabu/action-count key.
	Name() string
	// Destructive reports whether the safety middleware must gate this
	// operator's execution behind approval.
	Destructive() bool
	// IsApplicable reports whether the operator can run against state in
	// pursuit of goal.
	IsApplicable(state State, goal Goal) bool
	// Execute runs the operator, producing a successor state or a failure.
	Execute(state State) OperatorResult
}

// Proposal pairs an operator with the priority and reason a rule (or
// injected chunk) assigned it.
type Proposal struct {
	Operator Operator
	Priority float64
	Reason   string
}
