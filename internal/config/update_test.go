package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateDedupThreshold(t *testing.T) {
	path := writeConfig(t, `# service config
server:
  port: "9000"
dedup:
  threshold: 0.87 # cosine
  cache_dir: ./cache
`)

	require.NoError(t, UpdateDedupThreshold(path, 0.9))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Dedup.Threshold)
	assert.Equal(t, "./cache", cfg.Dedup.CacheDir)
	assert.Equal(t, "9000", cfg.Server.Port)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# service config")
}

func TestUpdateDedupThresholdAddsSection(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")

	require.NoError(t, UpdateDedupThreshold(path, 0.75))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.Dedup.Threshold)
}

func TestUpdateDedupThresholdRejectsOutOfRange(t *testing.T) {
	path := writeConfig(t, "dedup:\n  threshold: 0.8\n")

	assert.Error(t, UpdateDedupThreshold(path, 0))
	assert.Error(t, UpdateDedupThreshold(path, 1.2))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Dedup.Threshold)
}
