// Package app builds the component graph shared by the server and the CLI.
package app

import (
	"fmt"
	"math/rand"

	"scenario-service/internal/config"
	"scenario-service/internal/dataset"
	"scenario-service/internal/dedup"
	"scenario-service/internal/embedding"
	"scenario-service/internal/generation"
	"scenario-service/internal/llm"
	"scenario-service/internal/pipeline"
	"scenario-service/internal/validation"

	"go.uber.org/zap"
)

// App holds the wired pipeline components.
type App struct {
	Generator    *generation.Generator
	Validator    *validation.Validator
	Deduplicator *dedup.Deduplicator
	Dataset      *dataset.Store
	Pipeline     *pipeline.Pipeline

	genClient   *llm.MultiProviderClient
	judgeClient *llm.MultiProviderClient
	closers     []func() error
	logger      *zap.Logger
}

// closer is implemented by encoders that hold a client.
type closer interface {
	Close() error
}

// New builds every component from cfg. A provider configuration that yields
// no usable LLM or encoder is fatal.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	genClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.Generation.Providers,
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("generation providers: %w", err)
	}
	a.genClient = genClient
	a.closers = append(a.closers, genClient.Close)

	judgeClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.Validation.Providers,
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("validation providers: %w", err)
	}
	a.judgeClient = judgeClient
	a.closers = append(a.closers, judgeClient.Close)

	encoder, err := embedding.NewEncoder(cfg.Embedding, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding encoder: %w", err)
	}
	if c, ok := encoder.(closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	cacheStore, err := dedup.NewFileStore(cfg.Dedup.CacheDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Deduplicator = dedup.New(encoder, cacheStore, dedup.Options{
		Threshold:   cfg.Dedup.Threshold,
		WithinBatch: cfg.Dedup.WithinBatch,
	}, logger)

	a.Dataset = dataset.NewStore(cfg.Dataset.Path, cfg.Dataset.BackupPath, logger)

	a.Generator, err = generation.NewGenerator(genClient, generation.Config{
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rng *rand.Rand
	if cfg.Validation.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Validation.Seed))
	}
	a.Validator, err = validation.NewValidator(judgeClient, validation.Config{
		SamplePercentage:    cfg.Validation.SamplePercentage,
		EscalationThreshold: cfg.Validation.EscalationThreshold,
		FailureThreshold:    cfg.Validation.FailureThreshold,
		Temperature:         cfg.Validation.Temperature,
		MaxTokens:           cfg.Validation.MaxTokens,
	}, rng, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Pipeline = pipeline.New(a.Generator, a.Validator, a.Deduplicator, a.Dataset, pipeline.Config{
		BatchSize:         cfg.Generation.BatchSize,
		MaxRetries:        cfg.Generation.MaxRetries,
		BalancePrinciples: cfg.Generation.BalancePrinciples,
	}, logger)

	return a, nil
}

// ProvidersInfo describes the generation and judge providers.
func (a *App) ProvidersInfo() map[string]interface{} {
	info := map[string]interface{}{}
	if a.genClient != nil {
		info["generation"] = a.genClient.GetProvidersInfo()
	}
	if a.judgeClient != nil {
		info["validation"] = a.judgeClient.GetProvidersInfo()
	}
	return info
}

// Close releases provider and encoder clients.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to close client", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.closers = nil
	return firstErr
}
