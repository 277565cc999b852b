package app

import (
	"errors"
	"path/filepath"
	"testing"

	"scenario-service/internal/config"
	"scenario-service/internal/embedding"
	"scenario-service/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Generation.Providers = []llm.ProviderConfig{{Type: llm.ProviderGroq, APIKey: "gen-key"}}
	cfg.Validation.Providers = []llm.ProviderConfig{{Type: llm.ProviderCerebras, APIKey: "judge-key"}}
	cfg.Validation.Seed = 42
	cfg.Embedding = embedding.Config{Provider: "ollama", Endpoint: "http://127.0.0.1:1"}
	cfg.Dedup.CacheDir = filepath.Join(dir, "cache")
	cfg.Dataset.Path = filepath.Join(dir, "dataset.csv")
	cfg.Dataset.BackupPath = filepath.Join(dir, "backup.csv")
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Generator)
	assert.NotNil(t, a.Validator)
	assert.NotNil(t, a.Deduplicator)
	assert.NotNil(t, a.Dataset)
	require.NotNil(t, a.Pipeline)

	assert.Equal(t, 75, a.Pipeline.Config().BatchSize)
	assert.Equal(t, 20.0, a.Validator.Config().SamplePercentage)
	assert.Equal(t, 0.87, a.Deduplicator.Threshold())
	assert.Equal(t, "ollama:all-minilm", a.Deduplicator.CacheInfo().Encoder)

	info := a.ProvidersInfo()
	assert.Contains(t, info, "generation")
	assert.Contains(t, info, "validation")

	assert.NoError(t, a.Close())
}

func TestNewFailsWithoutProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.Validation.Providers = nil

	_, err := New(cfg, zap.NewNop())
	assert.True(t, errors.Is(err, llm.ErrNoProviders))
}

func TestNewFailsOnUnknownEncoder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "word2vec"

	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
}
