package unified

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"noetic/internal/types"
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// OperationalMemory persists the goal stack as context nodes, queryable as
// a chain via the fact graph's derived ancestor relation.
type OperationalMemory struct {
	mu       sync.Mutex
	graph    *factGraph
	nodes    map[string]types.ContextNode // full node bodies, keyed by ID; the graph only holds edges
	activeID string
	hasActive bool
	seq      int
}

func newOperationalMemory() (*OperationalMemory, error) {
	g, err := newFactGraph()
	if err != nil {
		return nil, err
	}
	return &OperationalMemory{graph: g, nodes: make(map[string]types.ContextNode)}, nil
}

func (m *OperationalMemory) nextID() string {
	m.seq++
	return fmt.Sprintf("ctx-%d-%d", time.Now().UnixNano(), m.seq)
}

// PushContext creates a new context node for goal, optionally parented
// under parentID, and returns its ID.
func (m *OperationalMemory) PushContext(goal string, stateSnapshot string, parentID string, hasParent bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID()
	depth := 0
	if hasParent {
		if p, ok := m.nodes[parentID]; ok {
			depth = p.Depth + 1
		}
	}
	node := types.ContextNode{
		ID:              id,
		ParentID:        parentID,
		HasParent:       hasParent,
		GoalDescription: goal,
		StateSnapshot:   stateSnapshot,
		Status:          types.GoalActive,
		CreatedAt:       time.Now(),
		Depth:           depth,
	}
	m.nodes[id] = node
	if hasParent {
		if err := m.graph.assert(types.Fact{Predicate: "context_parent", Args: []interface{}{asName(id), asName(parentID)}}); err != nil {
			logFactGraphFailure("assert context_parent", err)
		}
	}
	m.activeID = id
	m.hasActive = true
	return id
}

// asName turns an arbitrary ID into a Mangle name constant by prefixing a
// slash, since context IDs are not guaranteed to start with one.
func asName(id string) string { return "/" + id }

// PopContext seals the active context with status and an optional
// resolution operator, and returns the parent's ID (if any).
func (m *OperationalMemory) PopContext(status types.GoalStatus, resolutionOperator string, hasResolutionOperator bool) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive {
		return "", false
	}
	node := m.nodes[m.activeID]
	node.Status = status
	node.ResolutionOperator = resolutionOperator
	node.HasResolutionOp = hasResolutionOperator
	m.nodes[m.activeID] = node

	if node.HasParent {
		m.activeID = node.ParentID
		m.hasActive = true
		return node.ParentID, true
	}
	m.hasActive = false
	m.activeID = ""
	return "", false
}

// GetActiveContext returns the currently active context node, if any.
func (m *OperationalMemory) GetActiveContext() (types.ContextNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive {
		return types.ContextNode{}, false
	}
	return m.nodes[m.activeID], true
}

// GetContextChain returns the active context's ancestor chain, root first,
// derived from the fact graph's context_ancestor relation.
func (m *OperationalMemory) GetContextChain() []types.ContextNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasActive {
		return nil
	}
	rows, err := m.graph.query("context_ancestor", 2)
	if err != nil {
		logFactGraphFailure("query context_ancestor", err)
		return []types.ContextNode{m.nodes[m.activeID]}
	}

	ancestors := make([]types.ContextNode, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			continue
		}
		if nameString(row[0]) != m.activeID {
			continue
		}
		if n, ok := m.nodes[nameString(row[1])]; ok {
			ancestors = append(ancestors, n)
		}
	}
	sort.SliceStable(ancestors, func(i, j int) bool { return ancestors[i].Depth < ancestors[j].Depth })
	return append(ancestors, m.nodes[m.activeID])
}

// RetrieveRelevantHistory returns up to maxResults sealed context nodes
// whose goal description mentions query, newest first, formatted as plain
// text summaries for injection into ACT-R/evolution prompts.
func (m *OperationalMemory) RetrieveRelevantHistory(query string, maxResults int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	type candidate struct {
		node types.ContextNode
	}
	var matches []candidate
	for _, n := range m.nodes {
		if n.Status == types.GoalActive {
			continue
		}
		if query == "" || containsFold(n.GoalDescription, query) {
			matches = append(matches, candidate{node: n})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].node.CreatedAt.After(matches[j].node.CreatedAt) })
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	out := make([]string, len(matches))
	for i, c := range matches {
		op := "none"
		if c.node.HasResolutionOp {
			op = c.node.ResolutionOperator
		}
		out[i] = fmt.Sprintf("goal=%q status=%s resolved_by=%s", c.node.GoalDescription, c.node.Status, op)
	}
	return out
}
