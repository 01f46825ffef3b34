// Command noetic runs one decision-engine solve against a goal description
// and a working directory, wiring every internal collaborator together.
// The CLI itself is out of scope of the engine's design: this is the
// thinnest possible host, not a user-facing product.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"noetic/internal/actr"
	"noetic/internal/agent"
	"noetic/internal/ast"
	"noetic/internal/config"
	"noetic/internal/llm"
	"noetic/internal/logging"
	"noetic/internal/monitor"
	"noetic/internal/operators"
	"noetic/internal/rules"
	"noetic/internal/safety"
	"noetic/internal/types"
	"noetic/internal/unified"
)

func main() {
	var (
		goalDescription = flag.String("goal", "", "natural-language description of the goal to resolve")
		workDir         = flag.String("dir", ".", "working directory the solve starts in")
		configPath      = flag.String("config", "", "path to a YAML configuration override")
		chunkStorePath  = flag.String("chunk-store", "", "path to the chunk store SQLite file (empty = in-memory)")
		approveAll      = flag.Bool("approve-all", false, "auto-approve every gated operator instead of prompting on stdin")
		verbosity       = flag.Int("v", 0, "trace verbosity passed through to the safety middleware")
	)
	flag.Parse()

	if *goalDescription == "" {
		fmt.Fprintln(os.Stderr, "noetic: -goal is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "noetic: loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(logging.Config{DebugMode: cfg.Logging.DebugMode, Dir: cfg.Logging.Dir, Categories: cfg.Logging.Categories})

	factory := operators.NewFactory()
	ruleEngine := rules.NewEngine()
	for _, r := range rules.DefaultRules(factory) {
		ruleEngine.Register(r)
	}

	mon := monitor.New(monitor.Thresholds{
		DepthThreshold:  cfg.Cognitive.DepthThreshold,
		TimeThresholdMS: int64(cfg.Cognitive.TimeThresholdMS),
	}, nil)

	llmClient := llm.New(cfg.LLM.Model, cfg.LLM.Timeout, cfg.LLM.MaxRetries, cfg.LLM.Temperature,
		func() llm.Transport { return llm.NewOllamaTransport(cfg.LLM.Host) })

	extractor := ast.NewParser()
	resolver := actr.New(llmClient, actr.Config{
		GoalValue:          cfg.ACTR.GoalValue,
		NoiseStdDev:        cfg.ACTR.NoiseStdDev,
		HistoryPenaltyMult: cfg.ACTR.HistoryPenaltyMult,
	}, rand.New(rand.NewSource(time.Now().UnixNano())), extractor)

	embedder := unified.NewOllamaEmbedder(cfg.LLM.Host, "nomic-embed-text")
	mem := unified.New(*chunkStorePath, embedder)
	defer mem.Close()

	approve := safety.ApprovalHook(func(ctx context.Context, op types.Operator, reasoning string) bool {
		if *approveAll {
			return true
		}
		fmt.Fprintf(os.Stderr, "approve %s (%s)? [y/N] ", op.Name(), reasoning)
		var resp string
		fmt.Scanln(&resp)
		return resp == "y" || resp == "Y"
	})
	mw := safety.New(safety.Config{
		ApprovalEnabled:  true,
		AutoApproveSafe:  true,
		UtilityThreshold: 0,
	}, approve)

	materializer := operators.NewMaterializer(factory)
	evoSupport := operators.NewEvolutionSupport(factory, filepath.Join(*workDir, "main.go"), "")

	a := agent.New(ruleEngine, mon, resolver, mem, mw, materializer, evoSupport, llmClient, extractor,
		agent.ConfigFromLoaded(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ok, final := a.Solve(ctx, *goalDescription, types.NewState(*workDir), *verbosity)
	if !ok {
		fmt.Fprintln(os.Stderr, "noetic: goal not resolved")
		if latest, has := final.LatestError(); has {
			fmt.Fprintf(os.Stderr, "last error: %s\n", latest)
		}
		os.Exit(1)
	}
	fmt.Println("noetic: goal resolved")
}
