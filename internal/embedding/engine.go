// Package embedding turns scenario text into vectors and compares them.
package embedding

import (
	"context"
	"fmt"
	"math"

	"scenario-service/internal/gemini"

	"go.uber.org/zap"
)

// Encoder generates vector embeddings for text. One vector per input, same order.
type Encoder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Config selects and configures the embedding backend
type Config struct {
	Provider string `yaml:"provider"` // "gemini" or "ollama"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// NewEncoder creates an encoder based on configuration
func NewEncoder(cfg Config, logger *zap.Logger) (Encoder, error) {
	switch cfg.Provider {
	case "gemini", "":
		e, err := gemini.NewEmbedder(gemini.EmbedderConfig{
			APIKey:    cfg.APIKey,
			ModelName: cfg.Model,
		}, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "ollama":
		return NewOllamaEncoder(cfg.Endpoint, cfg.Model, logger), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'gemini' or 'ollama')", cfg.Provider)
	}
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}

	if aMag == 0 || bMag == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// Similarities scores candidate against every vector in existing.
// The result is parallel to existing.
func Similarities(candidate []float32, existing [][]float32) ([]float64, error) {
	scores := make([]float64, len(existing))
	for i, vec := range existing {
		s, err := CosineSimilarity(candidate, vec)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// Best returns the index and value of the highest score, or -1 when empty.
func Best(scores []float64) (int, float64) {
	best, bestScore := -1, math.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestScore
}
