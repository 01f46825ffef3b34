package unified

import (
	"context"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// Memory is the facade the agent holds: a chunk store and an operational
// (goal-stack) memory. Construction failure of either backing store is
// non-fatal — per the design, the agent disables learning and continues
// without persistence rather than failing the solve.
type Memory struct {
	chunks       *ChunkStore
	operational  *OperationalMemory
	enabled      bool
}

// New constructs a unified memory backed by a SQLite chunk store at
// chunkStorePath ("" for in-memory) and an in-process fact-graph
// operational memory. If either fails to construct, New returns a Memory
// with enabled=false: all retrievals return empty and all store calls are
// no-ops, and the failure is logged once here rather than propagated.
func New(chunkStorePath string, embedder Embedder) *Memory {
	chunks, err := NewChunkStore(chunkStorePath, embedder)
	if err != nil {
		logging.Get(logging.CategoryUnified).Warn("unified memory disabled: chunk store construction failed: %v", err)
		return &Memory{enabled: false}
	}
	operational, err := newOperationalMemory()
	if err != nil {
		logging.Get(logging.CategoryUnified).Warn("unified memory disabled: operational memory construction failed: %v", err)
		chunks.Close()
		return &Memory{enabled: false}
	}
	logging.Unified("unified memory enabled (chunk store=%q)", chunkStorePath)
	return &Memory{chunks: chunks, operational: operational, enabled: true}
}

// Enabled reports whether learning/persistence is active for this process.
func (m *Memory) Enabled() bool { return m.enabled }

// StoreChunk is a no-op when memory is disabled.
func (m *Memory) StoreChunk(ctx context.Context, chunk types.Chunk, latestError string, openFiles []string) {
	if !m.enabled {
		return
	}
	if err := m.chunks.StoreChunk(ctx, chunk, latestError, openFiles); err != nil {
		logging.Get(logging.CategoryUnified).Warn("store_chunk failed: %v", err)
	}
}

// RetrieveSimilar returns nil when memory is disabled.
func (m *Memory) RetrieveSimilar(ctx context.Context, state types.State, goal types.Goal, topK int, minSuccessRate float64) []types.Chunk {
	if !m.enabled {
		return nil
	}
	chunks, err := m.chunks.RetrieveSimilar(ctx, state, goal, topK, minSuccessRate)
	if err != nil {
		logging.Get(logging.CategoryUnified).Warn("retrieve_similar failed: %v", err)
		return nil
	}
	return chunks
}

// UpdateSuccess is a no-op when memory is disabled.
func (m *Memory) UpdateSuccess(ctx context.Context, chunkID string, succeeded bool) {
	if !m.enabled {
		return
	}
	if err := m.chunks.UpdateSuccess(ctx, chunkID, succeeded); err != nil {
		logging.Get(logging.CategoryUnified).Warn("update_success failed: %v", err)
	}
}

// PushContext returns "" when memory is disabled.
func (m *Memory) PushContext(goal string, stateSnapshot string, parentID string, hasParent bool) string {
	if !m.enabled {
		return ""
	}
	return m.operational.PushContext(goal, stateSnapshot, parentID, hasParent)
}

// PopContext is a no-op when memory is disabled.
func (m *Memory) PopContext(status types.GoalStatus, resolutionOperator string, hasResolutionOperator bool) (string, bool) {
	if !m.enabled {
		return "", false
	}
	return m.operational.PopContext(status, resolutionOperator, hasResolutionOperator)
}

// GetActiveContext returns ok=false when memory is disabled.
func (m *Memory) GetActiveContext() (types.ContextNode, bool) {
	if !m.enabled {
		return types.ContextNode{}, false
	}
	return m.operational.GetActiveContext()
}

// GetContextChain returns nil when memory is disabled.
func (m *Memory) GetContextChain() []types.ContextNode {
	if !m.enabled {
		return nil
	}
	return m.operational.GetContextChain()
}

// RetrieveRelevantHistory returns nil when memory is disabled.
func (m *Memory) RetrieveRelevantHistory(query string, maxResults int) []string {
	if !m.enabled {
		return nil
	}
	return m.operational.RetrieveRelevantHistory(query, maxResults)
}

// Close releases backing resources. Safe to call when disabled.
func (m *Memory) Close() error {
	if !m.enabled {
		return nil
	}
	return m.chunks.Close()
}
