package operators

import (
	"fmt"

	"noetic/internal/actr"
	"noetic/internal/types"
)

// Materializer turns an ACT-R or chunk-retrieval operator suggestion into a
// concrete filesystem operator. Only the three names the factory knows how
// to build are supported; any other suggestion is rejected rather than
// guessed at.
type Materializer struct {
	factory Factory
}

// NewMaterializer creates a materializer backed by the filesystem factory.
func NewMaterializer(factory Factory) Materializer {
	return Materializer{factory: factory}
}

// Materialize implements agent.OperatorMaterializer.
func (m Materializer) Materialize(s actr.OperatorSuggestion) (types.Operator, bool) {
	switch s.Name {
	case "read_file":
		path, ok := s.Params["path"]
		if !ok {
			return nil, false
		}
		return m.factory.ReadFile(path), true
	case "list_directory":
		dir, ok := s.Params["dir"]
		if !ok {
			dir = "."
		}
		return m.factory.ListDirectory(dir), true
	case "write_file":
		path, ok := s.Params["path"]
		if !ok {
			return nil, false
		}
		return m.factory.WriteFile(path, s.Params["content"]), true
	default:
		return nil, false
	}
}

// EvolutionSupport sources the original/test code for the evolutionary
// solver from the target (and optional test) file it was constructed with,
// read from the state's open files, and turns the winning patch into a
// write_file operator against that same target file. The goal is not
// consulted.
type EvolutionSupport struct {
	factory      Factory
	targetPath   string
	testPath     string
	hasTestPath  bool
}

// NewEvolutionSupport creates evolution support scoped to targetPath, with
// an optional sibling test file at testPath.
func NewEvolutionSupport(factory Factory, targetPath, testPath string) EvolutionSupport {
	return EvolutionSupport{factory: factory, targetPath: targetPath, testPath: testPath, hasTestPath: testPath != ""}
}

// OriginalCode implements agent.EvolutionSupport.
func (e EvolutionSupport) OriginalCode(state types.State, _ types.Goal) (string, bool) {
	rec, ok := state.Files[e.targetPath]
	if !ok {
		return "", false
	}
	return rec.Content, true
}

// TestCode implements agent.EvolutionSupport.
func (e EvolutionSupport) TestCode(state types.State, _ types.Goal) (string, bool) {
	if !e.hasTestPath {
		return "", false
	}
	rec, ok := state.Files[e.testPath]
	if !ok {
		return "", false
	}
	return rec.Content, true
}

// BuildPatchOperator implements agent.EvolutionSupport.
func (e EvolutionSupport) BuildPatchOperator(codePatch, hypothesis string) types.Operator {
	return namedWriteOp{inner: e.factory.WriteFile(e.targetPath, codePatch).(writeFileOp), hypothesis: hypothesis}
}

// namedWriteOp wraps writeFileOp to fold the evolutionary hypothesis into
// its name, so the transition log and tabu table see distinct candidate
// attempts rather than one repeated write_file(...) name.
type namedWriteOp struct {
	inner      writeFileOp
	hypothesis string
}

func (o namedWriteOp) Name() string    { return fmt.Sprintf("%s [%s]", o.inner.Name(), o.hypothesis) }
func (o namedWriteOp) Destructive() bool { return o.inner.Destructive() }
func (o namedWriteOp) IsApplicable(s types.State, g types.Goal) bool { return o.inner.IsApplicable(s, g) }
func (o namedWriteOp) Execute(s types.State) types.OperatorResult    { return o.inner.Execute(s) }
