package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.Streaming.UnloadRadius, cfg.Streaming.LoadRadius)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs:
  workers: 2
streaming:
  load_radius: 2
  unload_radius: 5
  seed: 42
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 2, cfg.Streaming.LoadRadius)
	assert.Equal(t, 5, cfg.Streaming.UnloadRadius)
	assert.EqualValues(t, 42, cfg.Streaming.Seed)
	// Untouched fields keep their defaults
	assert.Equal(t, Default().Jobs.QueueCapacity, cfg.Jobs.QueueCapacity)
	assert.Equal(t, Default().Streaming.SectorBudget, cfg.Streaming.SectorBudget)
}

func TestLoadRejectsInvertedRadii(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
streaming:
  load_radius: 6
  unload_radius: 3
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unload_radius")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsZeroTick(t *testing.T) {
	cfg := Default()
	cfg.Simulation.TickHz = 0
	assert.Error(t, cfg.Validate())
}
