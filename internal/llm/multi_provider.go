package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"scenario-service/internal/anthropic"
	"scenario-service/internal/gemini"
	"scenario-service/internal/models"
	"scenario-service/internal/openaicompat"
	"scenario-service/internal/openrouter"

	"go.uber.org/zap"
)

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	names        []string
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewProvider builds a single provider from its configuration
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Timeout:    cfg.Timeout,
		}, logger)
	case ProviderCerebras, ProviderGroq:
		return openaicompat.NewClient(openaicompat.Config{
			Name:       string(cfg.Type),
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Timeout:    cfg.Timeout,
		}, logger)
	case ProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// NewMultiProviderClient creates a new multi-provider client.
// Providers that fail to initialize are skipped; if none remain the
// client refuses to start.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required: %w", ErrNoProviders)
	}

	providers := make([]Provider, 0, len(cfg.Providers))
	limits := make([]int, 0, len(cfg.Providers))

	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		providers = append(providers, provider)
		limits = append(limits, providerCfg.RequestsPerMinute)

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", providerCfg.RequestsPerMinute),
			zap.Int("index", i))
	}

	return NewMultiProviderClientFrom(providers, limits, cfg.MaxFailures, logger)
}

// NewMultiProviderClientFrom wraps already-built providers. limits holds the
// requests-per-minute of each provider; missing or zero entries use the default.
func NewMultiProviderClientFrom(providers []Provider, limits []int, maxFailures int, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	if maxFailures == 0 {
		maxFailures = 3
	}

	wrapped := make([]*RateLimitedProvider, len(providers))
	names := make([]string, len(providers))
	for i, p := range providers {
		limit := 0
		if i < len(limits) {
			limit = limits[i]
		}
		wrapped[i] = NewRateLimitedProvider(p, limit, logger)
		names[i] = providerName(p)
	}

	return &MultiProviderClient{
		providers:    wrapped,
		names:        names,
		currentIndex: 0,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}, nil
}

func providerName(p Provider) string {
	if name, ok := p.GetModelInfo()["provider"].(string); ok {
		return name
	}
	return "unknown"
}

// AvailableProviders lists the names of initialized providers in failover order
func (c *MultiProviderClient) AvailableProviders() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// getCurrentProvider returns the current provider and its index
func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

// switchToNextProvider switches to the next available provider
func (c *MultiProviderClient) switchToNextProvider() {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldIndex := c.currentIndex
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", oldIndex),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure records a failure and reports whether to switch
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++

	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}

	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Complete tries the current provider first and falls back through the
// rest in order. The current provider only changes after it reaches the
// failure limit or reports a rate limit.
func (c *MultiProviderClient) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	_, start := c.getCurrentProvider()
	var lastErr error

	for offset := 0; offset < len(c.providers); offset++ {
		providerIndex := (start + offset) % len(c.providers)
		provider := c.providers[providerIndex]

		c.logger.Debug("Attempting completion",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", offset+1))

		result, err := provider.Complete(ctx, req)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}

		lastErr = err
		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		shouldSwitch := c.recordFailure(providerIndex)
		if providerIndex == start && len(c.providers) > 1 && (shouldSwitch || isRateLimitError(err)) {
			c.switchToNextProvider()
		}
	}

	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

// isRateLimitError checks if error is a rate limit error
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var lastErr error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.GetModelInfo()

	c.mu.RLock()
	defer c.mu.RUnlock()
	info["is_current"] = true
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	info["failure_count"] = c.failureCount[index]
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = (i == c.currentIndex)
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
