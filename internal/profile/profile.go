package profile

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	// All providers (anthropic-compatible gateways, deepseek, openai, ollama) use the same config
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, ollama
	LLMAPIKey   string // Unified LLM API key
	LLMBaseURL  string // Unified LLM base URL (optional, has default per provider)
	LLMModel    string // Model name: gpt-4o, deepseek-chat, etc.
	LLMTimeout  int    // LLM request timeout in seconds (default: 120)

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Real-time lookup configuration (x.ai compatible)
	RealtimeAPIKey  string
	RealtimeBaseURL string
	RealtimeModel   string

	// Retrieval tunables
	RetrievalTopK       int
	SessionHistoryLimit int
	VectorSearchK       int
	KeywordSearchK      int
	MMRDiversity        float64
	RecencyBoostDays    int

	// Other configurations
	Mode        string
	DSN         string
	Driver      string
	Version     string
	InstanceURL string
	Addr        string
	Data        string
	Port        int
}

// Provider default configurations for LLM.
// Used when ATHENA_AI_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

// IsRealtimeEnabled returns true if the real-time lookup provider is configured.
func (p *Profile) IsRealtimeEnabled() bool {
	return p.RealtimeAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// Unified LLM configuration
	p.LLMProvider = getEnvOrDefault("ATHENA_AI_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("ATHENA_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("ATHENA_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("ATHENA_AI_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("ATHENA_AI_LLM_TIMEOUT_SECONDS", 120)

	// Apply provider defaults if not explicitly set
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	} else {
		slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
		p.LLMProvider = "openai"
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = llmProviderDefaults["openai"].BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = llmProviderDefaults["openai"].Model
		}
	}

	// Embedding configuration
	p.EmbeddingProvider = getEnvOrDefault("ATHENA_AI_EMBEDDING_PROVIDER", p.LLMProvider)
	p.EmbeddingModel = getEnvOrDefault("ATHENA_AI_EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5")
	p.EmbeddingAPIKey = getEnvOrDefault("ATHENA_AI_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("ATHENA_AI_EMBEDDING_BASE_URL", p.LLMBaseURL)
	p.EmbeddingDimensions = getEnvOrDefaultInt("ATHENA_AI_EMBEDDING_DIMENSIONS", 384)

	// Real-time lookup configuration
	p.RealtimeAPIKey = getEnvOrDefault("ATHENA_REALTIME_API_KEY", "")
	p.RealtimeBaseURL = getEnvOrDefault("ATHENA_REALTIME_BASE_URL", "https://api.x.ai/v1")
	p.RealtimeModel = getEnvOrDefault("ATHENA_REALTIME_MODEL", "grok-3")

	// Retrieval tunables
	p.RetrievalTopK = getEnvOrDefaultInt("ATHENA_RETRIEVAL_TOP_K", 6)
	p.SessionHistoryLimit = getEnvOrDefaultInt("ATHENA_SESSION_HISTORY_LIMIT", 10)
	p.VectorSearchK = getEnvOrDefaultInt("ATHENA_VECTOR_SEARCH_K", 15)
	p.KeywordSearchK = getEnvOrDefaultInt("ATHENA_KEYWORD_SEARCH_K", 10)
	p.MMRDiversity = getEnvOrDefaultFloat("ATHENA_MMR_DIVERSITY", 0.3)
	p.RecencyBoostDays = getEnvOrDefaultInt("ATHENA_RECENCY_BOOST_DAYS", 7)
}

// Validate validates the profile configuration.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: conversation memory requires postgres (pgvector + full-text search)", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("dsn is required, set --dsn or ATHENA_DSN")
	}

	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port: %d", p.Port)
	}

	if p.MMRDiversity < 0 || p.MMRDiversity > 1 {
		return errors.Errorf("mmr diversity must be in [0,1], got %f", p.MMRDiversity)
	}
	if p.RetrievalTopK <= 0 {
		return errors.Errorf("retrieval top_k must be positive, got %d", p.RetrievalTopK)
	}

	return nil
}

func (p *Profile) String() string {
	return fmt.Sprintf("mode=%s addr=%s port=%d driver=%s", p.Mode, p.Addr, p.Port, p.Driver)
}
