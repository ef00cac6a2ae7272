package llmcollab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/auditcore/auditcore/pkg/llmclient"
)

// Request is the structured prompt payload sent to the collaborator
// (spec.md §6: "LLM collaborator").
type Request struct {
	SourceSnippet   string
	DetectingTools  []string
	Weakness        string
	RemediationHint string
}

// Verdict is the collaborator's structured response (spec.md §4.6, §6).
type Verdict struct {
	IsTruePositive    bool    `json:"is_true_positive"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	SuggestedPriority int     `json:"suggested_priority"`
}

// Collaborator is what the Correlation Engine calls to obtain a Verdict for
// one correlation group. It is implemented by Agent below, which adapts any
// llmclient.Client into this narrower, domain-shaped contract.
type Collaborator interface {
	Assess(ctx context.Context, req Request) (Verdict, error)
}

// Agent adapts a generic llmclient.Client into a Collaborator by rendering
// the structured request as a prompt and parsing the structured response
// back out of the model's free-form text.
type Agent struct {
	Client llmclient.Client
}

var _ Collaborator = (*Agent)(nil)

const systemPrompt = `You are a smart-contract security triage assistant. You are given one
candidate vulnerability finding, already deduplicated across multiple static/dynamic analyzers.
Respond with ONLY a single JSON object, no prose outside it, matching exactly this shape:
{"is_true_positive": bool, "confidence": number between 0 and 1, "reasoning": string, "suggested_priority": integer 1-5}`

// Assess implements Collaborator.
func (a *Agent) Assess(ctx context.Context, req Request) (Verdict, error) {
	prompt := renderPrompt(req)

	raw, err := a.Client.CompleteWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return Verdict{}, fmt.Errorf("llmcollab: assess: %w", err)
	}

	return parseVerdict(raw)
}

func renderPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "weakness: %s\n", req.Weakness)
	fmt.Fprintf(&b, "detected_by: %s\n", strings.Join(req.DetectingTools, ", "))
	fmt.Fprintf(&b, "default_remediation: %s\n", req.RemediationHint)
	b.WriteString("source_snippet:\n")
	b.WriteString(req.SourceSnippet)
	return b.String()
}

// parseVerdict extracts the JSON object from raw, tolerating the common case
// of a model wrapping it in a markdown code fence despite instructions not to.
func parseVerdict(raw string) (Verdict, error) {
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return Verdict{}, fmt.Errorf("llmcollab: no JSON object found in response")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return Verdict{}, fmt.Errorf("llmcollab: malformed verdict JSON: %w", err)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return Verdict{}, fmt.Errorf("llmcollab: confidence %v out of range [0,1]", v.Confidence)
	}
	if v.SuggestedPriority < 1 || v.SuggestedPriority > 5 {
		return Verdict{}, fmt.Errorf("llmcollab: suggested_priority %d out of range [1,5]", v.SuggestedPriority)
	}
	return v, nil
}

func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
