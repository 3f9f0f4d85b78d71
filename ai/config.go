package ai

import (
	"github.com/pkg/errors"

	"github.com/hrygo/athena/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Realtime  RealtimeConfig
	Enabled   bool
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 4096
	Temperature float32 // default: 0.7
	Timeout     int     // request timeout in seconds (default: 120)
}

// RealtimeConfig represents the real-time lookup provider configuration.
type RealtimeConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Enabled bool
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled: p.IsAIEnabled(),
	}

	if !cfg.Enabled {
		return cfg
	}

	cfg.Embedding = EmbeddingConfig{
		Provider:   p.EmbeddingProvider,
		Model:      p.EmbeddingModel,
		APIKey:     p.EmbeddingAPIKey,
		BaseURL:    p.EmbeddingBaseURL,
		Dimensions: p.EmbeddingDimensions,
	}

	cfg.LLM = LLMConfig{
		Provider:    p.LLMProvider,
		Model:       p.LLMModel,
		APIKey:      p.LLMAPIKey,
		BaseURL:     p.LLMBaseURL,
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     p.LLMTimeout,
	}

	cfg.Realtime = RealtimeConfig{
		Enabled: p.IsRealtimeEnabled(),
		Model:   p.RealtimeModel,
		APIKey:  p.RealtimeAPIKey,
		BaseURL: p.RealtimeBaseURL,
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.LLM.Model == "" {
		return errors.New("llm model is required")
	}
	if c.Realtime.Enabled && c.Realtime.Model == "" {
		return errors.New("realtime model is required when realtime is enabled")
	}

	return nil
}
