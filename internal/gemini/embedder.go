package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxEmbedBatch is the largest request the batch embedding endpoint accepts.
const maxEmbedBatch = 100

// Embedder produces sentence embeddings through the Gemini embedding API
type Embedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	modelName string
	logger    *zap.Logger
}

// EmbedderConfig configures the embedding client
type EmbedderConfig struct {
	APIKey    string
	ModelName string // Default: "text-embedding-004"
}

// NewEmbedder creates a Gemini embedding client
func NewEmbedder(cfg EmbedderConfig, logger *zap.Logger) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "text-embedding-004"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	em := client.EmbeddingModel(cfg.ModelName)
	em.TaskType = genai.TaskTypeSemanticSimilarity

	logger.Info("Gemini embedder initialized", zap.String("model", cfg.ModelName))

	return &Embedder{
		client:    client,
		model:     em,
		modelName: cfg.ModelName,
		logger:    logger,
	}, nil
}

// EmbedBatch embeds texts in order, splitting into API-sized batches
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch := e.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		resp, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding error: %w", err)
		}

		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}

		for _, emb := range resp.Embeddings {
			vectors = append(vectors, emb.Values)
		}
	}

	e.logger.Debug("Embedded texts", zap.Int("count", len(texts)))
	return vectors, nil
}

// Name identifies the embedding model
func (e *Embedder) Name() string {
	return "gemini/" + e.modelName
}

// Close releases the underlying client
func (e *Embedder) Close() error {
	return e.client.Close()
}
