// Package llmclient defines the minimal LLM request/response contract shared
// by the AI-assisted adapter (pkg/adapter) and the Correlation Engine's LLM
// collaborator (pkg/correlation/llmcollab). Both are callers, not owners, of
// a Client; the concrete Gemini-backed implementation lives in
// pkg/correlation/llmcollab/genai.go.
package llmclient

import "context"

// Client is the narrow interface every LLM backend implements.
type Client interface {
	// Complete sends prompt with no system preamble and returns the raw
	// text response.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends prompt with an explicit system preamble.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
