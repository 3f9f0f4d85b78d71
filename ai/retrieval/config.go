package retrieval

import "github.com/hrygo/athena/internal/profile"

// Config holds the retrieval tunables. The zero value is not usable; start
// from DefaultConfig or NewConfigFromProfile.
type Config struct {
	// TopK is the final number of documents returned.
	TopK int

	// SessionHistoryLimit is the number of recent turns of the active
	// session that are excluded from retrieval (they are already in the
	// caller's context window).
	SessionHistoryLimit int

	// VectorSearchK is the candidate limit for the vector generator.
	VectorSearchK int

	// KeywordSearchK is the candidate limit for the keyword generator.
	KeywordSearchK int

	// MMRDiversity trades relevance against redundancy in [0,1]:
	// 0 is pure relevance ranking, 1 maximizes anti-redundancy.
	MMRDiversity float64

	// RecencyBoostDays is the age within which the strongest recency boost
	// applies.
	RecencyBoostDays int
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		TopK:                6,
		SessionHistoryLimit: 10,
		VectorSearchK:       15,
		KeywordSearchK:      10,
		MMRDiversity:        0.3,
		RecencyBoostDays:    7,
	}
}

// NewConfigFromProfile builds retrieval configuration from the profile.
func NewConfigFromProfile(p *profile.Profile) Config {
	cfg := Config{
		TopK:                p.RetrievalTopK,
		SessionHistoryLimit: p.SessionHistoryLimit,
		VectorSearchK:       p.VectorSearchK,
		KeywordSearchK:      p.KeywordSearchK,
		MMRDiversity:        p.MMRDiversity,
		RecencyBoostDays:    p.RecencyBoostDays,
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	defaults := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = defaults.TopK
	}
	if c.SessionHistoryLimit <= 0 {
		c.SessionHistoryLimit = defaults.SessionHistoryLimit
	}
	if c.VectorSearchK <= 0 {
		c.VectorSearchK = defaults.VectorSearchK
	}
	if c.KeywordSearchK <= 0 {
		c.KeywordSearchK = defaults.KeywordSearchK
	}
	if c.MMRDiversity < 0 || c.MMRDiversity > 1 {
		c.MMRDiversity = defaults.MMRDiversity
	}
	if c.RecencyBoostDays <= 0 {
		c.RecencyBoostDays = defaults.RecencyBoostDays
	}
}
