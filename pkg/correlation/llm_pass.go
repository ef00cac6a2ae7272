package correlation

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/correlation/llmcollab"
	"github.com/auditcore/auditcore/pkg/finding"
)

// defaultSuppressThreshold and defaultParallelismCap match spec.md §4.6's
// stated defaults ("a configured threshold (default 0.85)", "a
// configurable cap (default 4)").
const (
	defaultSuppressThreshold = 0.85
	defaultParallelismCap    = 4
)

// LLMOptions configures the optional confidence pass of spec.md §4.6.
type LLMOptions struct {
	Enabled bool
	// ParallelismCap bounds concurrent collaborator calls. Zero uses the default of 4.
	ParallelismCap int
	// Budget caps the total number of collaborator calls in one pass. Zero means unbounded.
	Budget int
	// SuppressThreshold is the minimum returned confidence required to
	// suppress a group whose verdict says is_true_positive=false. Zero uses the default of 0.85.
	SuppressThreshold float64
	// MinSeverityForCall is the minimum group severity that triggers a
	// collaborator call; spec.md §4.6 fixes this at HIGH.
	MinSeverityForCall finding.Severity
	// SourceSnippet renders the bounded source window around a finding's
	// location for the collaborator prompt.
	SourceSnippet func(finding.Location) string
}

// Decision records one LLM collaborator call, verbatim. ApplyLLM returns
// every Decision to its caller; the Audit Result itself keeps only the
// LLMAssessment attached to findings that survive the pass, so decisions for
// suppressed findings and for failed calls are not part of it.
type Decision struct {
	FindingID string
	Verdict   *llmcollab.Verdict // nil when the call failed
	Err       error
	Suppressed bool
}

// ApplyLLM runs the optional LLM confidence pass over findings (already
// correlated representatives) and returns the adjusted finding set (with
// suppressed findings removed) plus the full decision log. Collaborator
// failures are non-fatal: the finding passes through unchanged and the
// failure is recorded (spec.md §4.6, §7).
func (e *Engine) ApplyLLM(ctx context.Context, findings []finding.NormalizedFinding, collab llmcollab.Collaborator, opts LLMOptions) ([]finding.NormalizedFinding, []Decision) {
	log := logging.For(logging.CategoryCorrelation)

	if !opts.Enabled || collab == nil {
		return findings, nil
	}

	minSeverity := opts.MinSeverityForCall
	if minSeverity == "" {
		minSeverity = finding.SeverityHigh
	}
	threshold := opts.SuppressThreshold
	if threshold <= 0 {
		threshold = defaultSuppressThreshold
	}
	parallelism := opts.ParallelismCap
	if parallelism < 1 {
		parallelism = defaultParallelismCap
	}

	eligible := make([]int, 0)
	for i, f := range findings {
		if f.Severity.Rank() >= minSeverity.Rank() {
			eligible = append(eligible, i)
		}
	}
	if opts.Budget > 0 && len(eligible) > opts.Budget {
		log.Info("llm budget exceeded, truncating eligible findings",
			zap.Int("eligible", len(eligible)), zap.Int("budget", opts.Budget))
		eligible = eligible[:opts.Budget]
	}

	verdicts := make(map[int]*llmcollab.Verdict, len(eligible))
	decisionsByIdx := make(map[int]Decision, len(eligible))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)

	for _, idx := range eligible {
		idx := idx
		f := findings[idx]

		eg.Go(func() error {
			req := llmcollab.Request{
				DetectingTools:  toolNames(f.DetectedBy),
				Weakness:        string(f.Weakness),
				RemediationHint: f.Remediation,
			}
			if opts.SourceSnippet != nil {
				req.SourceSnippet = opts.SourceSnippet(f.Location)
			}

			verdict, err := collab.Assess(egCtx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("llm collaborator call failed, passing finding through unchanged",
					zap.String("finding", f.ID), zap.Error(err))
				decisionsByIdx[idx] = Decision{FindingID: f.ID, Err: err}
				return nil
			}
			verdicts[idx] = &verdict
			decisionsByIdx[idx] = Decision{FindingID: f.ID, Verdict: &verdict}
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]finding.NormalizedFinding, 0, len(findings))
	decisions := make([]Decision, 0, len(decisionsByIdx))
	for i, f := range findings {
		d, called := decisionsByIdx[i]
		if !called {
			out = append(out, f)
			continue
		}

		v := verdicts[i]
		if v == nil {
			out = append(out, f)
			decisions = append(decisions, d)
			continue
		}

		if v.Confidence > f.Confidence {
			f.Confidence = v.Confidence
		}
		f.LLM = &finding.LLMAssessment{
			IsTruePositive:    v.IsTruePositive,
			Confidence:        v.Confidence,
			Reasoning:         v.Reasoning,
			SuggestedPriority: v.SuggestedPriority,
		}

		if !v.IsTruePositive && v.Confidence >= threshold {
			d.Suppressed = true
			decisions = append(decisions, d)
			continue
		}

		decisions = append(decisions, d)
		out = append(out, f)
	}

	return out, decisions
}

func toolNames(sources []finding.DetectionSource) []string {
	names := make([]string, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if _, ok := seen[s.Tool]; ok {
			continue
		}
		seen[s.Tool] = struct{}{}
		names = append(names, s.Tool)
	}
	return names
}
