// Package unified implements the unified memory: a chunk store for
// reflex-cached (state, operator) successes, and an operational memory that
// persists the goal stack as a Mangle fact store so the context chain can
// be queried declaratively (parent/child/ancestor) instead of by pointer
// chasing.
package unified

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"noetic/internal/logging"
	"noetic/internal/types"
)

// contextSchema declares the context-chain predicates and the derived
// ancestor rule used by GetContextChain. Facts are asserted at runtime via
// factGraph.assert; this program only fixes the schema and the recursive rule.
const contextSchema = `
Decl context_parent(Child, Parent).
Decl context_ancestor(Descendant, Ancestor).

context_ancestor(C, P) :- context_parent(C, P).
context_ancestor(C, A) :- context_parent(C, P), context_ancestor(P, A).
`

// factGraph wraps a Mangle fact store for the context chain. It is
// re-evaluated to fixed point on every mutation, so the cost of an assert
// grows with the number of parent edges already stored; nothing bounds
// that number.
type factGraph struct {
	mu          sync.Mutex
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
}

func newFactGraph() (*factGraph, error) {
	unit, err := parse.Unit(strings.NewReader(contextSchema))
	if err != nil {
		return nil, fmt.Errorf("unified: parse context schema: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("unified: analyze context schema: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := mengine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("unified: initial eval: %w", err)
	}
	return &factGraph{store: store, programInfo: info}, nil
}

func (g *factGraph) assert(f types.Fact) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	atom, err := f.ToAtom()
	if err != nil {
		return err
	}
	g.store.Add(atom)
	_, err = mengine.EvalProgramWithStats(g.programInfo, g.store)
	return err
}

func (g *factGraph) query(predicate string, arity int) ([][]ast.BaseTerm, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pred := ast.PredicateSym{Symbol: predicate, Arity: arity}
	query := ast.NewQuery(pred)

	var rows [][]ast.BaseTerm
	err := g.store.GetFacts(query, func(a ast.Atom) error {
		row := make([]ast.BaseTerm, len(a.Args))
		copy(row, a.Args)
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func nameString(t ast.BaseTerm) string {
	c, ok := t.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", t)
	}
	s := c.String()
	return strings.TrimPrefix(s, "/")
}

func logFactGraphFailure(op string, err error) {
	logging.Get(logging.CategoryUnified).Warn("unified: fact graph %s failed: %v", op, err)
}
