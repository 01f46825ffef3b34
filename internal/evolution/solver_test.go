package evolution

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"noetic/internal/llm"
)

type scriptedTransport struct {
	responses []string
	calls     int32
}

func (s *scriptedTransport) Complete(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i >= len(s.responses) {
		return `{"candidates":[]}`, nil
	}
	return s.responses[i], nil
}
func (s *scriptedTransport) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func TestEvolutionConvergesOnGeneration0(t *testing.T) {
	population := generationResponse{Candidates: []Candidate{
		{Hypothesis: "off-by-one in bound", CodePatch: `func Solve() (string, error) { return "wrong", nil }`},
		{Hypothesis: "fix comparison operator", CodePatch: `func Solve() (string, error) { return "ok", nil }`},
		{Hypothesis: "rewrite loop entirely", CodePatch: `func Solve() (string, error) { s := []int{}; _ = s[1]; return "x", nil }`},
	}}
	body, err := json.Marshal(population)
	if err != nil {
		t.Fatal(err)
	}
	transport := &scriptedTransport{responses: []string{string(body)}}
	client := llm.New("m", time.Second, 0, 0, func() llm.Transport { return transport })

	testCode := `func RunTests() string {
		out, err := Solve()
		if err != nil || out != "ok" {
			return "failed"
		}
		return "All tests passed"
	}`

	best, ok := Evolve(context.Background(), client, "sort is off by one", "fix the sort",
		`func Solve() (string, error) { return "wrong", nil }`, testCode, nil, Config{Generations: 5, Population: 3})
	if !ok {
		t.Fatalf("expected a selection")
	}
	if best.Result.Score != 100 {
		t.Fatalf("expected generation 0 to find the 100-scoring candidate, got score=%d", best.Result.Score)
	}
	if transport.calls != 1 {
		t.Fatalf("expected exactly 1 LLM generation call, got %d", transport.calls)
	}
}

func TestEvolutionReturnsFalseWhenGeneration0Fails(t *testing.T) {
	transport := &scriptedTransport{responses: []string{`not json`}}
	client := llm.New("m", time.Millisecond, 0, 0, func() llm.Transport { return transport })

	_, ok := Evolve(context.Background(), client, "err", "goal", "code", "", nil, Config{Generations: 3, Population: 3})
	if ok {
		t.Fatalf("expected no selection when generation 0 fails")
	}
}
