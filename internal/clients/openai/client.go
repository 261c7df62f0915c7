// package openai produces a narrative analysis of compliance evidence via a
// chat completion. The narrative is purely additive: it never feeds back into
// verdicts or metrics, and a failure here leaves the evidence untouched.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grcops/pr-compliance/internal/cache"
	"github.com/grcops/pr-compliance/internal/domain"
	ai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are an expert security and compliance analyst specializing in code review processes.
Your task is to analyze evidence from GitHub PR reviews and provide specific, actionable recommendations.

Focus on:
1. Identifying critical issues that need immediate attention
2. Recognizing patterns that indicate process improvements
3. Suggesting concrete, implementable solutions
4. Providing specific metrics and targets

Format your response in clear sections:
- Critical Issues
- Process Insights
- Recommended Actions
- Metrics & Targets

Be specific and practical in your recommendations. Use markdown formatting for better readability.`

type Client struct {
	api         *ai.Client
	cache       *cache.Cache
	log         *slog.Logger
	model       string
	temperature float32
	maxTokens   int
	ttl         time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint, used by tests.
func WithBaseURL(apiKey, baseURL string) Option {
	return func(c *Client) {
		cfg := ai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		c.api = ai.NewClientWithConfig(cfg)
	}
}

func NewClient(apiKey, model string, temperature float32, maxTokens int, analysisCache *cache.Cache, log *slog.Logger, analysisTTL time.Duration, opts ...Option) *Client {
	c := &Client{
		api:         ai.NewClient(apiKey),
		cache:       analysisCache,
		log:         log,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		ttl:         analysisTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Analyze turns the metrics and evidence history into a free-text insight
// report. Identical metrics inside the TTL window reuse the cached report
// instead of paying for another completion.
func (c *Client) Analyze(ctx context.Context, metrics domain.ComplianceMetrics, history []domain.Evidence) (string, error) {
	const op = "internal.clients.openai.Analyze"

	metricsJSON, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal metrics: %w", op, err)
	}

	key := cache.Key("pr_analysis", c.model, string(metricsJSON))

	var cached string
	if err := c.cache.Get(key, &cached); err == nil {
		c.log.Info("using cached narrative analysis")
		return cached, nil
	}

	c.log.Info("requesting narrative analysis",
		slog.String("model", c.model),
		slog.Int("history_len", len(history)),
	)

	resp, err := c.api.CreateChatCompletion(ctx, ai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []ai.ChatCompletionMessage{
			{Role: ai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: ai.ChatMessageRoleUser, Content: buildPrompt(metricsJSON, history)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion failed: %w", op, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: chat completion returned no choices", op)
	}

	analysis := resp.Choices[0].Message.Content

	c.cache.Set(key, analysis, c.ttl)

	return analysis, nil
}

// buildPrompt assembles the user message: the current metrics plus a compact
// view of prior evidence so the model can reason about the trend.
func buildPrompt(metricsJSON []byte, history []domain.Evidence) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following pull request review compliance evidence.\n\n")
	sb.WriteString("Current metrics:\n```json\n")
	sb.Write(metricsJSON)
	sb.WriteString("\n```\n")

	if len(history) > 0 {
		sb.WriteString("\nPrior evidence (oldest first):\n")

		for _, evidence := range history {
			fmt.Fprintf(&sb, "- %s: status=%s rate=%.2f total=%d\n",
				evidence.CreatedAt.Format("2006-01-02"),
				evidence.Status,
				evidence.Metrics.ComplianceRate,
				evidence.Metrics.Total,
			)
		}
	}

	return sb.String()
}
