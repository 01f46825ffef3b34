package types

import (
	"math"
	"time"
)

// Chunk is a cached (state-signature, operator) success record. Chunks are
// created only from ACT-R or evolutionary selections that then succeeded;
// they are the engine's cheap reflex cache.
type Chunk struct {
	ID              string // deterministic content hash
	StateSignature  map[string]string
	OperatorName    string
	OperatorParams  map[string]string
	GoalDescription string
	SuccessCount    int
	FailureCount    int
	CreatedAt       time.Time
	LastUsed        time.Time
	Utility         float64
	HasUtility      bool
}

// SuccessRate returns SuccessCount / (SuccessCount + FailureCount). Callers
// must only invoke this on chunks satisfying the invariant
// SuccessCount+FailureCount >= 1.
func (c Chunk) SuccessRate() float64 {
	total := c.SuccessCount + c.FailureCount
	if total == 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(total)
}

// Activation is the freshness-weighted reuse score:
// ln(success_count+1) - decayRate * hours_since_last_use.
func (c Chunk) Activation(now time.Time, decayRate float64) float64 {
	hours := now.Sub(c.LastUsed).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Log(float64(c.SuccessCount+1)) - decayRate*hours
}

// ContextNode is a persisted goal frame: the operational-memory analogue of
// a Goal, addressable across solve invocations.
type ContextNode struct {
	ID                   string
	ParentID             string
	HasParent            bool
	GoalDescription      string
	StateSnapshot        string // serialized/compressed snapshot, not a live State
	Status               GoalStatus
	CreatedAt            time.Time
	Depth                int
	ResolutionOperator   string
	HasResolutionOp      bool
	ResolutionReasoning  string
	HasResolutionReason  bool
}
