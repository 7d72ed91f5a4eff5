package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4096.0, cfg.MaxMemoryMB)
	assert.Equal(t, 4, cfg.MaxConcurrentTasks)
	assert.Equal(t, 50, cfg.MinSamplesForML)
	assert.Equal(t, 1.2, cfg.ConservativeMultiplier)
	assert.Equal(t, 30*time.Second, cfg.RebalanceInterval)
	assert.Equal(t, 1.5, cfg.MaxPriorityWeight())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burrow.yaml")
	content := `
maxMemoryMB: 2048
maxConcurrentTasks: 2
rebalanceInterval: 10s
priorityWeights:
  security: 2.0
storage:
  backend: bolt
  dataDir: /tmp/burrow
log:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2048.0, cfg.MaxMemoryMB)
	assert.Equal(t, 2, cfg.MaxConcurrentTasks)
	assert.Equal(t, 10*time.Second, cfg.RebalanceInterval)
	assert.Equal(t, 2.0, cfg.PriorityWeights[types.TaskTypeSecurity])
	assert.Equal(t, 1.0, cfg.PriorityWeights[types.TaskTypeImplementation], "unlisted weights keep defaults")
	assert.Equal(t, "bolt", cfg.Storage.Backend)
	assert.True(t, cfg.Log.JSON)

	// Untouched keys keep defaults
	assert.Equal(t, 500000.0, cfg.TokenBudgetPerHour)
	assert.True(t, cfg.RejectOnOverload)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxMemoryMB: [1, 2"), 0600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conservativeMultiplier: 0.5\n"), 0600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero memory", func(c *Config) { c.MaxMemoryMB = 0 }},
		{"no workers", func(c *Config) { c.MaxConcurrentTasks = 0 }},
		{"multiplier below one", func(c *Config) { c.ConservativeMultiplier = 0.9 }},
		{"negative weight", func(c *Config) { c.PriorityWeights[types.TaskTypeFix] = -1 }},
		{"unknown type weight", func(c *Config) { c.PriorityWeights["deploy"] = 1 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"file backend without dir", func(c *Config) { c.Storage = StorageConfig{Backend: "file"} }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"memory threshold above one", func(c *Config) { c.MemoryHealthThreshold = 1.5 }},
		{"negative ttl", func(c *Config) { c.ReservationTTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
