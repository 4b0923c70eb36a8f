package oracle

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/marcus/taskpilot/internal/logging"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient calls Gemini through the genai SDK.
type GeminiClient struct {
	models    contentGenerator
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewGeminiClient creates a Gemini client using the Gemini API backend.
func NewGeminiClient(ctx context.Context, apiKey, model string, maxTokens int, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, unavailable("gemini API key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, unavailableErr("create gemini client", err)
	}
	return newGeminiClient(client.Models, model, maxTokens, timeout), nil
}

func newGeminiClient(models contentGenerator, model string, maxTokens int, timeout time.Duration) *GeminiClient {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{models: models, model: model, maxTokens: maxTokens, timeout: timeout}
}

// WithMaxTokens returns a copy of c using n output tokens.
func (c *GeminiClient) WithMaxTokens(n int) Oracle {
	cp := *c
	cp.maxTokens = n
	return &cp
}

// Complete generates a single-turn completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(c.maxTokens),
	})
	if err != nil {
		return "", unavailableErr("gemini", err)
	}
	if resp == nil {
		return "", unavailable("gemini returned no response")
	}

	text := strings.TrimSpace(resp.Text())
	logging.Component("oracle").DebugCtx("gemini completion", logging.Fields{
		"model":        c.model,
		"prompt_len":   len(prompt),
		"response_len": len(text),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return text, nil
}
