package compressor

import (
	"strings"
	"testing"

	"noetic/internal/types"
)

type fakeExtractor struct{ fn map[string]string }

func (f fakeExtractor) ExtractFunction(content, language, name string) (string, bool) {
	v, ok := f.fn[name]
	return v, ok
}
func (f fakeExtractor) SupportsLanguage(language string) bool { return language == "go" }

func TestCompressIsLosslessForGoalAndError(t *testing.T) {
	state := types.NewState("/p").WithError("panic in sortItems")
	goal := types.Goal{Description: "fix sortItems"}
	view := Compress(state, goal, 1000, nil)
	if view.Goal != goal.Description {
		t.Fatalf("goal not preserved")
	}
	if !view.HasError || view.LatestError != "panic in sortItems" {
		t.Fatalf("error not preserved")
	}
}

func TestCompressIsDeterministic(t *testing.T) {
	state := types.NewState("/p")
	state.Files["a.go"] = types.FileRecord{Content: "package a\nfunc A() {}\n", Language: "go"}
	state.Files["b.go"] = types.FileRecord{Content: "package b\nfunc B() {}\n", Language: "go"}
	goal := types.Goal{Description: "read a.go"}

	v1 := Compress(state, goal, 1000, nil)
	v2 := Compress(state, goal, 1000, nil)
	if len(v1.Files) != len(v2.Files) {
		t.Fatalf("non-deterministic file count")
	}
	for i := range v1.Files {
		if v1.Files[i].Path != v2.Files[i].Path || v1.Files[i].Excerpt != v2.Files[i].Excerpt {
			t.Fatalf("non-deterministic excerpt at index %d", i)
		}
	}
}

func TestFileMentionedInGoalRanksFirst(t *testing.T) {
	state := types.NewState("/p")
	state.Files["zzz.go"] = types.FileRecord{Content: "package z\n"}
	state.Files["main.go"] = types.FileRecord{Content: "package m\n"}
	goal := types.Goal{Description: "read main.go please"}

	view := Compress(state, goal, 1000, nil)
	if view.Files[0].Path != "main.go" {
		t.Fatalf("expected main.go to rank first, got %+v", view.Files)
	}
}

func TestFunctionExtractionUsedWhenSupported(t *testing.T) {
	state := types.NewState("/p")
	state.Files["a.go"] = types.FileRecord{Content: "package a\nfunc sortItems() {}\n", Language: "go"}
	goal := types.Goal{Description: "fix sortItems()"}
	extractor := fakeExtractor{fn: map[string]string{"sortItems": "func sortItems() { /* fixed */ }"}}

	view := Compress(state, goal, 1000, extractor)
	if len(view.Files) != 1 || !strings.Contains(view.Files[0].Excerpt, "fixed") {
		t.Fatalf("expected function extraction excerpt, got %+v", view.Files)
	}
	if view.Files[0].Truncated {
		t.Fatalf("function extraction should not be marked truncated")
	}
}

func TestBudgetNeverDropsFirstFile(t *testing.T) {
	state := types.NewState("/p")
	state.Files["a.go"] = types.FileRecord{Content: strings.Repeat("x", 10000)}
	view := Compress(state, types.Goal{Description: "goal"}, 1, nil)
	if len(view.Files) != 1 {
		t.Fatalf("expected at least one file even under a tiny budget, got %d", len(view.Files))
	}
}
