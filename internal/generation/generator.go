// Package generation asks an LLM for new scenario batches.
package generation

import (
	"context"
	"errors"

	"scenario-service/internal/models"

	"go.uber.org/zap"
)

// Completer is the LLM call used for generation.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
}

// Config holds generation parameters.
type Config struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Request describes one batch.
type Request struct {
	BatchSize       int
	Context         string
	FocusPrinciples []string
	FocusCategories []string
}

// Generator produces scenario batches.
type Generator struct {
	client Completer
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a generator. A nil client is a configuration fault.
func NewGenerator(client Completer, cfg Config, logger *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("generator requires an LLM client")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 16000
	}
	return &Generator{client: client, cfg: cfg, logger: logger}, nil
}

// GenerateBatch returns the parsed scenarios, or an empty slice when the LLM
// call fails.
func (g *Generator) GenerateBatch(ctx context.Context, req Request) []models.Scenario {
	g.logger.Info("Generating scenarios", zap.Int("batch_size", req.BatchSize))

	text, err := g.client.Complete(ctx, models.CompletionRequest{
		System:      SystemPrompt(req.Context, req.FocusPrinciples, req.FocusCategories),
		User:        UserPrompt(req.BatchSize),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		g.logger.Error("Error generating scenarios", zap.Error(err))
		return []models.Scenario{}
	}

	scenarios := ParseScenarios(text, g.logger)
	g.logger.Info("Generated scenarios",
		zap.Int("requested", req.BatchSize),
		zap.Int("parsed", len(scenarios)))
	return scenarios
}
