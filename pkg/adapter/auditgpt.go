package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/llmclient"
)

// aiSystemPrompt instructs the model to behave like a focused static
// reviewer rather than a general assistant, and fixes the output shape the
// adapter's parser expects.
const aiSystemPrompt = `You are a smart-contract security reviewer. Read the given source file and
report only concrete, specific weaknesses you can point to a line for. Respond with ONLY a JSON
array, no prose outside it, where each element has exactly this shape:
{"rule": string, "message": string, "severity": "CRITICAL"|"HIGH"|"MEDIUM"|"LOW"|"INFORMATIONAL",
 "line": integer or null, "function": string or null}`

// aiFinding is one element of the model's JSON array response.
type aiFinding struct {
	Rule     string  `json:"rule"`
	Message  string  `json:"message"`
	Severity string  `json:"severity"`
	Line     *int    `json:"line"`
	Function *string `json:"function"`
}

// llmAdapter is the AI-assisted analyzer category (spec.md §3: category
// "ai"). Unlike processAdapter, it never shells out to a child process: its
// "execution" is a network RPC to an llmclient.Client, so ProbeAvailability
// and Analyze are implemented directly rather than shared with the
// child-process skeleton in base.go.
type llmAdapter struct {
	metadata finding.ToolMetadata
	client   llmclient.Client
}

// NewAuditGPT returns the AI-assisted adapter backed by client. client may be
// nil, in which case the adapter reports itself NOT_INSTALLED — the same
// graceful-degradation behavior a missing binary gets from processAdapter.
func NewAuditGPT(client llmclient.Client) Adapter {
	return &llmAdapter{
		metadata: finding.ToolMetadata{
			Name:          "auditgpt",
			Version:       "1.0",
			Category:      finding.CategoryAI,
			Capabilities:  []string{"detects-reentrancy", "detects-access-control", "explains-rationale"},
			Optional:      true,
			RemoteService: true,
		},
		client: client,
	}
}

func (a *llmAdapter) Metadata() finding.ToolMetadata { return a.metadata }

func (a *llmAdapter) ProbeAvailability(ctx context.Context) finding.ToolStatus {
	if a.client == nil {
		return finding.StatusNotInstalled
	}
	return finding.StatusAvailable
}

func (a *llmAdapter) Analyze(ctx context.Context, input finding.ContractInput, opts Options, deadline time.Time) finding.RawFindingEnvelope {
	log := logging.For(logging.CategoryAdapter)
	start := time.Now()

	if a.client == nil {
		return finding.RawFindingEnvelope{
			Tool:     a.metadata.Name,
			Status:   finding.EnvelopeUnavailable,
			Duration: time.Since(start),
			Err:      fmt.Errorf("auditgpt: no llm client configured"),
		}
	}

	source, err := os.ReadFile(input.Path)
	if err != nil {
		return finding.RawFindingEnvelope{
			Tool:     a.metadata.Name,
			Status:   finding.EnvelopeCrash,
			Duration: time.Since(start),
			Err:      fmt.Errorf("auditgpt: read source: %w", err),
		}
	}

	analyzeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	raw, err := a.client.CompleteWithSystem(analyzeCtx, aiSystemPrompt, string(source))
	dur := time.Since(start)

	if err != nil {
		if analyzeCtx.Err() != nil {
			log.Warn("auditgpt adapter timed out", zap.String("tool", a.metadata.Name))
			return finding.RawFindingEnvelope{Tool: a.metadata.Name, Status: finding.EnvelopeTimeout, Duration: dur, Err: analyzeCtx.Err()}
		}
		log.Error("auditgpt adapter call failed", zap.Error(err))
		return finding.RawFindingEnvelope{Tool: a.metadata.Name, Status: finding.EnvelopeCrash, Duration: dur, Err: err}
	}

	records, perr := a.Parse([]byte(raw))
	if perr != nil {
		log.Warn("auditgpt output unparsable", zap.Error(perr))
		return finding.RawFindingEnvelope{Tool: a.metadata.Name, Status: finding.EnvelopeInvalidOutput, Duration: dur, Err: perr}
	}

	return finding.RawFindingEnvelope{
		Tool:     a.metadata.Name,
		Status:   finding.EnvelopeSuccess,
		Duration: dur,
		Records:  records,
	}
}

func (a *llmAdapter) Parse(raw []byte) ([]finding.RawRecord, error) {
	text := strings.TrimSpace(string(raw))
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return nil, fmt.Errorf("auditgpt: no JSON array found in response")
	}

	var items []aiFinding
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("auditgpt: malformed response: %w", err)
	}

	records := make([]finding.RawRecord, 0, len(items))
	for _, it := range items {
		if it.Rule == "" {
			continue
		}
		rec := finding.RawRecord{
			NativeRuleID: it.Rule,
			Message:      it.Message,
			Severity:     it.Severity,
			Line:         it.Line,
		}
		if it.Function != nil {
			rec.Function = *it.Function
		}
		records = append(records, rec)
	}
	return records, nil
}
