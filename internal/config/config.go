// Package config loads the immutable configuration record that parameterizes
// the decision engine: LLM transport settings, ACT-R constants, cognitive
// monitor thresholds, and evolutionary-solver bounds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the single immutable record loaded at startup. Recognized
// options mirror the engine's external configuration surface; it is passed
// by value into constructors rather than read as global state.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	ACTR      ACTRConfig      `yaml:"actr"`
	Cognitive CognitiveConfig `yaml:"cognitive"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the transport used by the LLM client wrapper.
type LLMConfig struct {
	Model      string        `yaml:"model"`
	Host       string        `yaml:"host"`
	Temperature float64      `yaml:"temperature"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ACTRConfig configures the utility formula used by the ACT-R resolver.
type ACTRConfig struct {
	GoalValue          float64 `yaml:"goal_value"`
	NoiseStdDev        float64 `yaml:"noise_stddev"`
	HistoryPenaltyMult float64 `yaml:"history_penalty_multiplier"`
}

// CognitiveConfig configures the meta-cognitive pressure monitor.
type CognitiveConfig struct {
	DepthThreshold   int `yaml:"depth_threshold"`
	TimeThresholdMS  int `yaml:"time_threshold_ms"`
	MaxCycles        int `yaml:"max_cycles"`
}

// EvolutionConfig configures the evolutionary solver.
type EvolutionConfig struct {
	Enabled        bool `yaml:"enabled"`
	PopulationSize int  `yaml:"population_size"`
	MaxGenerations int  `yaml:"max_generations"`
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the configuration the engine boots with absent an
// on-disk override. Values reflect the defaults named in the design: depth
// threshold 3, time threshold 500ms, ACT-R G=10, sigma=0.5, tabu
// multiplier=2, population/generations clamped to [2,10]/[1,10].
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:       "qwen2.5-coder",
			Host:        "http://localhost:11434",
			Temperature: 0.2,
			MaxRetries:  2,
			Timeout:     5 * time.Second,
		},
		ACTR: ACTRConfig{
			GoalValue:          10,
			NoiseStdDev:        0.5,
			HistoryPenaltyMult: 2,
		},
		Cognitive: CognitiveConfig{
			DepthThreshold:  3,
			TimeThresholdMS: 500,
			MaxCycles:       50,
		},
		Evolution: EvolutionConfig{
			Enabled:        true,
			PopulationSize: 5,
			MaxGenerations: 5,
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Dir:       ".decision-engine/logs",
		},
	}
}

// Load reads a YAML configuration file, starting from Default() and
// overlaying any fields present in the file, then applies environment
// overrides and clamps bounded fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.applyEnvOverrides()
				return cfg.normalized(), nil
			}
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg.normalized(), nil
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("DECISION_ENGINE_LLM_HOST"); host != "" {
		c.LLM.Host = host
	}
	if model := os.Getenv("DECISION_ENGINE_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// normalized returns a copy with bounded fields clamped to their documented
// ranges, irrespective of what a config file or environment supplied.
func (c Config) normalized() Config {
	if c.Evolution.PopulationSize < 2 {
		c.Evolution.PopulationSize = 2
	}
	if c.Evolution.PopulationSize > 10 {
		c.Evolution.PopulationSize = 10
	}
	if c.Evolution.MaxGenerations < 1 {
		c.Evolution.MaxGenerations = 1
	}
	if c.Evolution.MaxGenerations > 10 {
		c.Evolution.MaxGenerations = 10
	}
	if c.Cognitive.MaxCycles <= 0 {
		c.Cognitive.MaxCycles = 50
	}
	return c
}
