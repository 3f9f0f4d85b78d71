// Package realtime routes queries that need live market data to an
// OpenAI-compatible provider with web access. Routing is strict: a query
// flagged as real-time must be answered with live data or not at all.
package realtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/athena/ai"
)

// costPerMillionTokens is the provider's blended price used for the
// per-query cost estimate surfaced to the user.
const costPerMillionTokens = 5.00

// realtimeKeywords trigger live-data routing on substring match.
var realtimeKeywords = []string{
	"current price",
	"stock price",
	"price of",
	"trading at",
	"market cap",
	"earnings today",
	"dividend yield",
	"ticker",
	"latest price",
	"right now",
	"today's price",
}

// RequiresRealTime reports whether the query asks for live data. The match
// is a strict keyword check: no model call, no fuzziness.
func RequiresRealTime(query string) bool {
	lowered := strings.ToLower(query)
	for _, keyword := range realtimeKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// Result is the outcome of live-data routing for one query.
type Result struct {
	RequiresLive  bool
	Answer        string
	TotalTokens   int
	EstimatedCost float64
}

// Client queries the live-data provider.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewClient creates a realtime Client from the provider configuration.
func NewClient(cfg *ai.RealtimeConfig) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("realtime model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: 500,
	}, nil
}

// Query fetches a live-data answer for the prompt.
func (c *Client) Query(ctx context.Context, prompt string) (*Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are providing real-time market data. Be concise and factual. Include dates when giving prices.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, errors.Wrap(err, "realtime query failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty realtime response")
	}

	result := &Result{
		RequiresLive:  true,
		Answer:        resp.Choices[0].Message.Content,
		TotalTokens:   resp.Usage.TotalTokens,
		EstimatedCost: EstimateCost(resp.Usage.TotalTokens),
	}
	slog.InfoContext(ctx, "realtime query answered",
		slog.Int("total_tokens", result.TotalTokens))
	return result, nil
}

// EstimateCost converts a token count to an approximate dollar cost.
func EstimateCost(tokens int) float64 {
	return float64(tokens) / 1_000_000 * costPerMillionTokens
}

// Router decides per query whether live data is required and fetches it.
// A nil Router routes nothing, for deployments without a live provider.
type Router struct {
	client *Client
}

// NewRouter creates a Router. client may be nil when realtime is disabled.
func NewRouter(client *Client) *Router {
	return &Router{client: client}
}

// Route applies the enforced routing policy. For a non-realtime query it
// returns a Result with RequiresLive false. For a realtime query it must
// produce live data; if the provider fails the error is returned so the
// caller blocks the response instead of answering from stale memory.
func (r *Router) Route(ctx context.Context, query string) (*Result, error) {
	if r == nil || r.client == nil || !RequiresRealTime(query) {
		return &Result{RequiresLive: false}, nil
	}

	slog.InfoContext(ctx, "real-time query detected, routing to live provider")
	result, err := r.client.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "real-time data unavailable")
	}
	return result, nil
}
