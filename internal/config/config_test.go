package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsWellFormed(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.Cognitive.DepthThreshold)
	assert.Equal(t, 500, cfg.Cognitive.TimeThresholdMS)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10.0, cfg.ACTR.GoalValue)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.Model, cfg.LLM.Model)
}

func TestEvolutionBoundsAreClamped(t *testing.T) {
	cfg := Config{Evolution: EvolutionConfig{PopulationSize: 999, MaxGenerations: 0}}
	cfg = cfg.normalized()
	assert.Equal(t, 10, cfg.Evolution.PopulationSize)
	assert.Equal(t, 1, cfg.Evolution.MaxGenerations)
}

func TestEnvOverrideLLMHost(t *testing.T) {
	t.Setenv("DECISION_ENGINE_LLM_HOST", "http://example.internal:9090")
	cfg := Default()
	cfg.applyEnvOverrides()
	assert.Equal(t, "http://example.internal:9090", cfg.LLM.Host)
}
