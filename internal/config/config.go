package config

import (
	"fmt"
	"os"

	"scenario-service/internal/embedding"
	"scenario-service/internal/llm"
	"scenario-service/internal/middleware"
	"scenario-service/internal/notify"
	"scenario-service/internal/repository"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Generation struct {
		Providers         []llm.ProviderConfig `yaml:"providers"`
		Temperature       float64              `yaml:"temperature"`
		MaxTokens         int                  `yaml:"max_tokens"`
		BatchSize         int                  `yaml:"batch_size"`
		MaxRetries        int                  `yaml:"max_retries"`
		BalancePrinciples bool                 `yaml:"balance_principles"`
	} `yaml:"generation"`

	Validation struct {
		// Judge providers; the generation providers are reused when empty
		Providers           []llm.ProviderConfig `yaml:"providers"`
		SamplePercentage    float64              `yaml:"sample_percentage"`
		EscalationThreshold float64              `yaml:"escalation_threshold"`
		FailureThreshold    float64              `yaml:"failure_threshold"`
		Temperature         float64              `yaml:"temperature"`
		MaxTokens           int                  `yaml:"max_tokens"`
		Seed                int64                `yaml:"seed"` // 0 seeds from the clock
	} `yaml:"validation"`

	Embedding embedding.Config `yaml:"embedding"`

	Dedup struct {
		Threshold   float64 `yaml:"threshold"`
		CacheDir    string  `yaml:"cache_dir"`
		WithinBatch bool    `yaml:"within_batch"`
	} `yaml:"dedup"`

	Dataset struct {
		Path       string `yaml:"path"`
		BackupPath string `yaml:"backup_path"`
	} `yaml:"dataset"`

	Database repository.Config `yaml:"database"`

	Auth middleware.AuthConfig `yaml:"auth"`

	Notify notify.Config `yaml:"notify"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Expand environment variables in secrets
	expandKeys(config.Generation.Providers)
	expandKeys(config.Validation.Providers)
	config.Embedding.APIKey = os.ExpandEnv(config.Embedding.APIKey)
	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Notify.TelegramToken = os.ExpandEnv(config.Notify.TelegramToken)

	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8003"
	}

	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = 0.8
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 16000
	}
	if c.Generation.BatchSize == 0 {
		c.Generation.BatchSize = 75
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = 3
	}

	if len(c.Validation.Providers) == 0 {
		c.Validation.Providers = append([]llm.ProviderConfig(nil), c.Generation.Providers...)
	}
	if c.Validation.SamplePercentage == 0 {
		c.Validation.SamplePercentage = 20
	}
	if c.Validation.EscalationThreshold == 0 {
		c.Validation.EscalationThreshold = 30
	}
	if c.Validation.FailureThreshold == 0 {
		c.Validation.FailureThreshold = 50
	}
	if c.Validation.Temperature == 0 {
		c.Validation.Temperature = 0.3
	}
	if c.Validation.MaxTokens == 0 {
		c.Validation.MaxTokens = 1500
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}

	if c.Dedup.Threshold == 0 {
		c.Dedup.Threshold = 0.87
	}
	if c.Dedup.CacheDir == "" {
		c.Dedup.CacheDir = "./data/embeddings_cache"
	}

	if c.Dataset.Path == "" {
		c.Dataset.Path = "./data/humane_bench.csv"
	}
	if c.Dataset.BackupPath == "" {
		c.Dataset.BackupPath = c.Dataset.Path + ".bak"
	}

	if c.Database.Type == "" {
		c.Database.Type = repository.TypeSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/jobs.db"
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}
}

func expandKeys(providers []llm.ProviderConfig) {
	for i := range providers {
		providers[i].APIKey = os.ExpandEnv(providers[i].APIKey)
	}
}
