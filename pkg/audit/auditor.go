package audit

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/config"
	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/auditerr"
	"github.com/auditcore/auditcore/pkg/contractsource"
	"github.com/auditcore/auditcore/pkg/correlation"
	"github.com/auditcore/auditcore/pkg/correlation/llmcollab"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/normalizer"
	"github.com/auditcore/auditcore/pkg/orchestrator"
	"github.com/auditcore/auditcore/pkg/registry"
	"github.com/auditcore/auditcore/pkg/taxonomy"
)

// Auditor is the process-wide core API of spec.md §6: the one object a
// front end (CLI, service handler, test harness) needs to list tools, probe
// one, and run a complete audit. It owns no I/O beyond what its
// collaborators already do and performs none itself (spec.md §4.8: "No
// further I/O").
type Auditor struct {
	registry     *registry.Registry
	orch         *orchestrator.Orchestrator
	normalizer   *normalizer.Normalizer
	correlation  *correlation.Engine
	collaborator llmcollab.Collaborator
	opts         *config.Options
}

// New wires an Auditor from already-constructed collaborators. reg and
// tables are required; opts may be nil to take config.Default(); collab may
// be nil to disable the LLM confidence pass regardless of opts.LLM.Enabled.
func New(reg *registry.Registry, tables *taxonomy.Tables, collab llmcollab.Collaborator, opts *config.Options) *Auditor {
	if opts == nil {
		opts = config.Default()
	}
	return &Auditor{
		registry:     reg,
		orch:         orchestrator.New(reg, opts.Orchestrator.ParallelismCap),
		normalizer:   normalizer.New(tables),
		correlation:  correlation.New(),
		collaborator: collab,
		opts:         opts,
	}
}

// ListTools implements spec.md §6's list_tools(): the static metadata of
// every registered adapter, independent of live availability.
func (a *Auditor) ListTools() []finding.ToolMetadata {
	adapters := a.registry.List()
	out := make([]finding.ToolMetadata, 0, len(adapters))
	for _, ad := range adapters {
		out = append(out, ad.Metadata())
	}
	return out
}

// ProbeTool implements spec.md §6's probe_tool(name): a live availability
// check for one named adapter. Returns an Input error if name is not
// registered.
func (a *Auditor) ProbeTool(ctx context.Context, name string) (finding.ToolStatus, error) {
	ad := a.registry.Get(name)
	if ad == nil {
		return "", auditerr.Input(fmt.Errorf("audit: unknown tool %q", name))
	}
	return ad.ProbeAvailability(ctx), nil
}

// RunOptions carries the caller-facing knobs of spec.md §5, translated into
// the orchestrator's and correlation engine's own option shapes.
type RunOptions struct {
	GlobalTimeout  time.Duration
	PerToolTimeout time.Duration
	ParallelismCap int
	ToolOptions    map[string]adapter.Options
	CustomNames    []string
	Cancel         <-chan struct{}
	LLMEnabled     *bool // nil defers to the Auditor's configured default
}

// RunAudit implements spec.md §4.8/§6's run_audit: probe, execute, normalize,
// correlate, optionally consult the LLM collaborator, and assemble one
// immutable Audit Result.
func (a *Auditor) RunAudit(ctx context.Context, input finding.ContractInput, mode Mode, opts RunOptions) (Result, error) {
	log := logging.For(logging.CategoryAudit)
	start := time.Now()
	auditID := uuid.NewString()

	if input.LanguageVersion == "" && input.Path != "" {
		if src, err := contractsource.ScanFile(input.Path); err == nil {
			input.LanguageVersion = src.LanguageVersion
		}
	}

	runOpts := orchestrator.RunOptions{
		GlobalTimeout:  opts.GlobalTimeout,
		PerToolTimeout: opts.PerToolTimeout,
		ParallelismCap: opts.ParallelismCap,
		ToolOptions:    opts.ToolOptions,
		CustomNames:    opts.CustomNames,
		Cancel:         opts.Cancel,
	}
	if runOpts.PerToolTimeout == 0 {
		runOpts.PerToolTimeout = a.opts.Orchestrator.PerToolTimeout
	}
	if runOpts.GlobalTimeout == 0 {
		runOpts.GlobalTimeout = a.opts.Orchestrator.GlobalTimeout
	}

	orchResult, err := a.orch.RunAudit(ctx, input, orchestrator.Mode(mode), runOpts)
	if err != nil {
		return Result{}, err
	}

	perTool := make([]ToolOutcome, 0, len(orchResult.Outcomes))
	for _, o := range orchResult.Outcomes {
		errStr := ""
		if o.Err != nil {
			errStr = o.Err.Error()
		}
		perTool = append(perTool, ToolOutcome{
			Tool: o.Tool, Status: o.Status, Duration: o.Duration,
			RawCount: o.RawCount, Error: errStr,
		})
	}

	normalized, stats := a.normalizer.Normalize(orchResult.Envelopes, input.ProjectRoot)
	log.Info("normalization complete",
		zap.Int("normalized", stats.Normalized),
		zap.Int("unmapped_rule", stats.UnmappedRule),
		zap.Int("dropped", stats.Dropped))

	correlated := a.correlation.Correlate(normalized)

	llmEnabled := a.opts.LLM.Enabled
	if opts.LLMEnabled != nil {
		llmEnabled = *opts.LLMEnabled
	}
	if llmEnabled && a.collaborator != nil {
		llmOpts := correlation.LLMOptions{
			Enabled:            true,
			ParallelismCap:     a.opts.LLM.ParallelismCap,
			Budget:             a.opts.LLM.Budget,
			SuppressThreshold:  a.opts.LLM.SuppressThreshold,
			MinSeverityForCall: finding.Severity(a.opts.LLM.MinSeverityForCall),
			SourceSnippet:      a.sourceSnippet,
		}
		var decisions []correlation.Decision
		correlated, decisions = a.correlation.ApplyLLM(ctx, correlated, a.collaborator, llmOpts)
		log.Info("llm confidence pass complete", zap.Int("decisions", len(decisions)))
	}

	return Assemble(auditID, input, mode, start, perTool, correlated, orchResult.Cancelled), nil
}

// sourceSnippet renders a bounded window of source around loc for the LLM
// collaborator prompt (spec.md §4.6): the source lines of the function that
// encloses loc. Best-effort: an unreadable file, a location without a line,
// or a line outside every function yields an empty snippet rather than
// failing the call.
func (a *Auditor) sourceSnippet(loc finding.Location) string {
	if loc.File == "" {
		return ""
	}
	f, err := contractsource.ScanFile(loc.File)
	if err != nil {
		return ""
	}
	if loc.Line == nil {
		return ""
	}
	fn, ok := f.FunctionAt(*loc.Line)
	if !ok {
		return ""
	}
	data, err := os.ReadFile(loc.File)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	end := fn.EndLine
	if end > len(lines) {
		end = len(lines)
	}
	if fn.StartLine < 1 || fn.StartLine > end {
		return ""
	}
	return strings.Join(lines[fn.StartLine-1:end], "\n")
}
