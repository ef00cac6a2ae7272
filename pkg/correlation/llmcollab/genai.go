// Package llmcollab implements the optional LLM collaborator consulted by
// the Correlation Engine (spec.md §4.6): given a correlation group whose
// severity is high enough to warrant it, the collaborator returns a
// structured true-positive/confidence verdict, or a non-fatal error if the
// backend is unreachable or returns something unparsable.
package llmcollab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/llmclient"
)

const (
	// defaultModel is the lightweight text-generation model used for
	// correlation verdicts; verdicts are short and latency-sensitive, so
	// this deliberately is not the heaviest available model.
	defaultModel = "gemini-2.5-flash"

	// defaultTimeout bounds a single verdict call; an earlier deadline
	// already on the caller's context still takes precedence.
	defaultTimeout = 30 * time.Second

	maxOutputTokens = 1024
)

// GeminiConfig configures a GenAIClient.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultGeminiConfig returns sane defaults with apiKey filled in.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:  apiKey,
		Model:   defaultModel,
		Timeout: defaultTimeout,
	}
}

// GenAIClient implements llmclient.Client against the Gemini API via
// google.golang.org/genai.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ llmclient.Client = (*GenAIClient)(nil)

// NewGenAIClient creates a Gemini-backed llmclient.Client.
func NewGenAIClient(ctx context.Context, cfg GeminiConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llmcollab: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llmcollab: create genai client: %w", err)
	}

	return &GenAIClient{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete implements llmclient.Client.
func (c *GenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "", prompt)
}

// CompleteWithSystem implements llmclient.Client.
func (c *GenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt)
}

func (c *GenAIClient) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	log := logging.For(logging.CategoryCorrelation)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: maxOutputTokens,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	start := time.Now()
	result, err := c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
	latency := time.Since(start)
	if err != nil {
		log.Warn("llm collaborator call failed", zap.Error(err), zap.Duration("latency", latency))
		return "", fmt.Errorf("llmcollab: generate: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("llmcollab: empty response")
	}
	return text, nil
}
