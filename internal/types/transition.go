package types

import "time"

// Transition is a single recorded step of a decision cycle: which operator
// ran, whether it succeeded, and a hash of the state before and after.
type Transition struct {
	OperatorName string
	Success      bool
	Err          string
	HasErr       bool
	Timestamp    time.Time
	FromHash     string
	ToHash       string
}

// CognitiveMetrics are the signals describing a decision cycle's cognitive
// load. The monitor's pressure value is computed from GoalDepth,
// TimeInStateMS and OperatorAmbiguity; ImpasseCount is not part of it.
type CognitiveMetrics struct {
	GoalDepth         int
	TimeInStateMS     int64
	ImpasseCount      int
	OperatorAmbiguity float64 // in [0,1]
}
