package unified

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// ChunkStore persists chunks in SQLite, embedding each chunk's canonical
// text so retrieve_similar can rank by cosine similarity. Vectors are
// stored as JSON float32 arrays rather than via the sqlite-vec extension:
// chunk volume per solve is small (low hundreds at most) so a brute-force
// scan is simpler than wiring the cgo vector index for this access
// pattern, and keeps the store a single pure-Go dependency.
type ChunkStore struct {
	db       *sql.DB
	embedder Embedder

	mu sync.Mutex
}

// NewChunkStore opens (or creates) the chunk table at path. path == ""
// opens an in-memory store that does not survive process restarts.
func NewChunkStore(path string, embedder Embedder) (*ChunkStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unified: open chunk store: %w", err)
	}
	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unified: create chunk schema: %w", err)
	}
	return &ChunkStore{db: db, embedder: embedder}, nil
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	goal_description TEXT,
	operator_name TEXT,
	operator_params TEXT,
	state_signature TEXT,
	success_count INTEGER,
	failure_count INTEGER,
	created_at INTEGER,
	last_used INTEGER,
	embedding TEXT
);
`

// embeddingText builds the canonical text embedded for similarity search,
// per the documented format: "Goal: ... | Operator: ... | Error: ... | Files: ...".
func embeddingText(goalDescription, operatorName, latestError string, openFiles []string) string {
	return fmt.Sprintf("Goal: %s | Operator: %s | Error: %s | Files: %v",
		goalDescription, operatorName, latestError, openFiles)
}

// StoreChunk inserts or merges chunk by its deterministic ID.
func (s *ChunkStore) StoreChunk(ctx context.Context, chunk types.Chunk, latestError string, openFiles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := embeddingText(chunk.GoalDescription, chunk.OperatorName, latestError, openFiles)
	var embedding []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			logging.Get(logging.CategoryUnified).Warn("store_chunk: embedding failed, storing without vector: %v", err)
		} else {
			embedding = vec
		}
	}
	embJSON, _ := json.Marshal(embedding)
	paramsJSON, _ := json.Marshal(chunk.OperatorParams)
	sigJSON, _ := json.Marshal(chunk.StateSignature)

	existing, found, err := s.getByID(chunk.ID)
	if err != nil {
		return err
	}
	if found {
		chunk.SuccessCount += existing.SuccessCount
		chunk.FailureCount += existing.FailureCount
		if existing.CreatedAt.Before(chunk.CreatedAt) {
			chunk.CreatedAt = existing.CreatedAt
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, goal_description, operator_name, operator_params, state_signature,
			success_count, failure_count, created_at, last_used, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			last_used = excluded.last_used,
			embedding = excluded.embedding
	`, chunk.ID, chunk.GoalDescription, chunk.OperatorName, string(paramsJSON), string(sigJSON),
		chunk.SuccessCount, chunk.FailureCount, chunk.CreatedAt.Unix(), chunk.LastUsed.Unix(), string(embJSON))
	return err
}

func (s *ChunkStore) getByID(id string) (types.Chunk, bool, error) {
	row := s.db.QueryRow(`SELECT id, goal_description, operator_name, operator_params, state_signature,
		success_count, failure_count, created_at, last_used FROM chunks WHERE id = ?`, id)
	var c types.Chunk
	var paramsJSON, sigJSON string
	var createdAt, lastUsed int64
	err := row.Scan(&c.ID, &c.GoalDescription, &c.OperatorName, &paramsJSON, &sigJSON,
		&c.SuccessCount, &c.FailureCount, &createdAt, &lastUsed)
	if err == sql.ErrNoRows {
		return types.Chunk{}, false, nil
	}
	if err != nil {
		return types.Chunk{}, false, err
	}
	json.Unmarshal([]byte(paramsJSON), &c.OperatorParams)
	json.Unmarshal([]byte(sigJSON), &c.StateSignature)
	c.CreatedAt = time.Unix(createdAt, 0)
	c.LastUsed = time.Unix(lastUsed, 0)
	return c, true, nil
}

// RetrieveSimilar vector-searches for chunks near (state, goal)'s
// embedding text, filters by minSuccessRate, and orders by descending
// activation among the topK most similar.
func (s *ChunkStore) RetrieveSimilar(ctx context.Context, state types.State, goal types.Goal, topK int, minSuccessRate float64) ([]types.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder == nil {
		return nil, nil
	}
	latestError, _ := state.LatestError()
	query := embeddingText(goal.Description, "", latestError, state.OpenFiles())
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logging.Get(logging.CategoryUnified).Warn("retrieve_similar: embedding failed: %v", err)
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, goal_description, operator_name, operator_params, state_signature,
		success_count, failure_count, created_at, last_used, embedding FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		chunk      types.Chunk
		similarity float64
	}
	var candidates []scored
	now := time.Now()
	for rows.Next() {
		var c types.Chunk
		var paramsJSON, sigJSON, embJSON string
		var createdAt, lastUsed int64
		if err := rows.Scan(&c.ID, &c.GoalDescription, &c.OperatorName, &paramsJSON, &sigJSON,
			&c.SuccessCount, &c.FailureCount, &createdAt, &lastUsed, &embJSON); err != nil {
			continue
		}
		if c.SuccessRate() < minSuccessRate {
			continue
		}
		json.Unmarshal([]byte(paramsJSON), &c.OperatorParams)
		json.Unmarshal([]byte(sigJSON), &c.StateSignature)
		c.CreatedAt = time.Unix(createdAt, 0)
		c.LastUsed = time.Unix(lastUsed, 0)

		var vec []float32
		json.Unmarshal([]byte(embJSON), &vec)
		sim := CosineSimilarity(queryVec, vec)
		candidates = append(candidates, scored{chunk: c, similarity: sim})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].chunk.Activation(now, activationDecayRate) > candidates[j].chunk.Activation(now, activationDecayRate)
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].chunk.Activation(now, activationDecayRate) > candidates[j].chunk.Activation(now, activationDecayRate)
	})

	out := make([]types.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}

// activationDecayRate matches the invariant: activation = ln(success+1) -
// decayRate*hours_since_last_use.
const activationDecayRate = 0.5

// UpdateSuccess increments the chunk's success or failure counter and
// touches last_used.
func (s *ChunkStore) UpdateSuccess(ctx context.Context, chunkID string, succeeded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := "failure_count"
	if succeeded {
		col = "success_count"
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE chunks SET %s = %s + 1, last_used = ? WHERE id = ?", col, col),
		time.Now().Unix(), chunkID)
	return err
}

// Close releases the underlying database handle.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}
