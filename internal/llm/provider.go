package llm

import (
	"context"
	"errors"
	"time"

	"scenario-service/internal/models"
)

// ErrNoProviders is returned when no backend could be initialized
var ErrNoProviders = errors.New("no providers could be initialized")

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderCerebras   ProviderType = "cerebras"
	ProviderGroq       ProviderType = "groq"
	ProviderAnthropic  ProviderType = "anthropic"
)

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is any chat-completion backend
type Provider interface {
	Complete(ctx context.Context, req models.CompletionRequest) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}
