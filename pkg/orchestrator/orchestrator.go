// Package orchestrator implements the Orchestrator (spec.md §4.3): plan
// construction (availability probing, deterministic category ordering,
// per-adapter deadline computation) and bounded-parallelism concurrent
// execution with a global deadline and cooperative cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/adapter"
	"github.com/auditcore/auditcore/pkg/auditerr"
	"github.com/auditcore/auditcore/pkg/finding"
	"github.com/auditcore/auditcore/pkg/registry"
)

// Mode selects which adapters participate in a run (spec.md §4.3).
type Mode string

const (
	ModeQuick    Mode = "QUICK"
	ModeStandard Mode = "STANDARD"
	ModeFull     Mode = "FULL"
	ModeCustom   Mode = "CUSTOM"
)

// categoryOrder fixes the deterministic plan ordering from spec.md §4.3
// step 2: "static/linter first (cheap), then dynamic/fuzzing/symbolic, then
// formal, then AI/ML."
var categoryOrder = map[finding.ToolCategory]int{
	finding.CategoryStatic:   0,
	finding.CategoryLinter:   0,
	finding.CategoryDynamic:  1,
	finding.CategorySymbolic: 1,
	finding.CategoryFormal:   2,
	finding.CategoryAI:       3,
	finding.CategoryML:       3,
}

// categoryDefaultTimeout is the "tool-specific-default" input to the
// min() in spec.md §4.3 step 3. The spec does not fix these figures (only
// the combination rule); these reflect the relative cost of each analysis
// technique and are a deliberate, documented Open Question resolution.
var categoryDefaultTimeout = map[finding.ToolCategory]time.Duration{
	finding.CategoryStatic:   60 * time.Second,
	finding.CategoryLinter:   30 * time.Second,
	finding.CategoryDynamic:  5 * time.Minute,
	finding.CategorySymbolic: 10 * time.Minute,
	finding.CategoryFormal:   15 * time.Minute,
	finding.CategoryAI:       2 * time.Minute,
	finding.CategoryML:       2 * time.Minute,
}

// RunOptions carries the per-run knobs spec.md §4.3/§5 describe.
type RunOptions struct {
	// GlobalTimeout bounds the whole audit. Zero means no whole-audit deadline.
	GlobalTimeout time.Duration
	// PerToolTimeout is the caller-supplied cap fed into each adapter's
	// effective-deadline computation. Zero means "no caller cap."
	PerToolTimeout time.Duration
	// ParallelismCap bounds concurrent adapter execution. Zero means
	// "use the orchestrator's configured default."
	ParallelismCap int
	// ToolOptions are passed through to each adapter, keyed by tool name.
	ToolOptions map[string]adapter.Options
	// CustomNames selects the adapter set for ModeCustom.
	CustomNames []string
	// Cancel is the cooperative cancellation flag of spec.md §5: the
	// Orchestrator checks it before scheduling each adapter.
	Cancel <-chan struct{}
}

// Outcome is one adapter's contribution to the per-tool summary the Audit
// Report Assembler packages (spec.md §3 "Audit Result").
type Outcome struct {
	Tool     string
	Status   finding.EnvelopeStatus
	Duration time.Duration
	RawCount int
	Err      error
}

// Result is what RunAudit hands to the Normalizer/Assembler: the raw
// envelopes plus a per-tool outcome summary, batched (order irrelevant,
// spec.md §4.3 "Aggregation").
type Result struct {
	Outcomes  []Outcome
	Envelopes []finding.RawFindingEnvelope
	Cancelled bool
}

// Orchestrator runs audits against a fixed Registry.
type Orchestrator struct {
	registry           *registry.Registry
	defaultParallelism int
}

// New returns an Orchestrator over reg. defaultParallelism is used when a
// RunOptions leaves ParallelismCap at zero; callers typically pass
// config.Options.Orchestrator.ParallelismCap (spec.md §4.3: "default: number
// of logical CPUs, minimum 2").
func New(reg *registry.Registry, defaultParallelism int) *Orchestrator {
	if defaultParallelism < 1 {
		defaultParallelism = runtime.NumCPU()
		if defaultParallelism < 2 {
			defaultParallelism = 2
		}
	}
	return &Orchestrator{registry: reg, defaultParallelism: defaultParallelism}
}

// RunAudit implements spec.md §4.3's public operation.
func (o *Orchestrator) RunAudit(ctx context.Context, input finding.ContractInput, mode Mode, opts RunOptions) (Result, error) {
	log := logging.For(logging.CategoryOrchestrator)

	candidates, err := o.selectCandidates(mode, opts.CustomNames)
	if err != nil {
		return Result{}, err
	}
	if len(candidates) == 0 {
		return Result{}, auditerr.Inputf("no adapters selected for mode %s", mode)
	}

	globalDeadline := time.Time{}
	if opts.GlobalTimeout > 0 {
		globalDeadline = time.Now().Add(opts.GlobalTimeout)
	}

	plan, err := o.buildPlan(ctx, candidates, opts, globalDeadline)
	if err != nil {
		return Result{}, err
	}
	if len(plan) == 0 {
		return Result{}, auditerr.Inputf("no adapters available for mode %s after availability probing", mode)
	}

	select {
	case <-opts.Cancel:
		log.Info("audit cancelled before execution began")
		return Result{Cancelled: true}, nil
	default:
	}

	return o.execute(ctx, input, plan, opts)
}

func (o *Orchestrator) selectCandidates(mode Mode, customNames []string) ([]adapter.Adapter, error) {
	switch mode {
	case ModeQuick:
		return o.registry.ByCategory(finding.CategoryStatic), nil
	case ModeStandard:
		return o.registry.Select(func(m finding.ToolMetadata) bool {
			return m.Category == finding.CategoryStatic || m.Category == finding.CategoryLinter
		}), nil
	case ModeFull:
		return o.registry.List(), nil
	case ModeCustom:
		return o.registry.ByNames(customNames), nil
	default:
		return nil, auditerr.Inputf("unknown audit mode %q", mode)
	}
}

// planEntry is one scheduled adapter with its computed effective deadline.
type planEntry struct {
	adapter  adapter.Adapter
	deadline time.Time
}

// buildPlan implements spec.md §4.3 steps 1-3.
func (o *Orchestrator) buildPlan(ctx context.Context, candidates []adapter.Adapter, opts RunOptions, globalDeadline time.Time) ([]planEntry, error) {
	log := logging.For(logging.CategoryOrchestrator)

	statuses := probeAll(ctx, candidates)

	available := make([]adapter.Adapter, 0, len(candidates))
	for _, a := range candidates {
		meta := a.Metadata()
		status := statuses[meta.Name]
		if status == finding.StatusAvailable {
			available = append(available, a)
			continue
		}
		if meta.Optional {
			log.Warn("optional adapter unavailable, dropping from plan",
				zap.String("tool", meta.Name), zap.String("status", string(status)))
			continue
		}
		return nil, auditerr.Unavailable(meta.Name, fmt.Errorf("status %s", status))
	}

	sort.SliceStable(available, func(i, j int) bool {
		mi, mj := available[i].Metadata(), available[j].Metadata()
		ci, cj := categoryOrder[mi.Category], categoryOrder[mj.Category]
		if ci != cj {
			return ci < cj
		}
		return mi.Name < mj.Name
	})

	plan := make([]planEntry, 0, len(available))
	for _, a := range available {
		plan = append(plan, planEntry{
			adapter:  a,
			deadline: effectiveDeadline(a.Metadata().Category, opts.PerToolTimeout, globalDeadline),
		})
	}
	return plan, nil
}

// effectiveDeadline implements spec.md §4.3 step 3:
// min(tool-specific-default, options.per-tool-timeout, remaining-global-budget).
func effectiveDeadline(category finding.ToolCategory, perToolTimeout time.Duration, globalDeadline time.Time) time.Time {
	deadline := time.Now().Add(categoryDefaultTimeout[category])

	if perToolTimeout > 0 {
		if candidate := time.Now().Add(perToolTimeout); candidate.Before(deadline) {
			deadline = candidate
		}
	}
	if !globalDeadline.IsZero() && globalDeadline.Before(deadline) {
		deadline = globalDeadline
	}
	return deadline
}

func probeAll(ctx context.Context, candidates []adapter.Adapter) map[string]finding.ToolStatus {
	statuses := make(map[string]finding.ToolStatus, len(candidates))
	var mu sync.Mutex

	var wg sync.WaitGroup
	for _, a := range candidates {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := a.ProbeAvailability(ctx)
			mu.Lock()
			statuses[a.Metadata().Name] = status
			mu.Unlock()
		}()
	}
	wg.Wait()
	return statuses
}

// execute runs plan with bounded parallelism (spec.md §4.3 "Execution
// policy"). Adapters run concurrently up to the configured cap via
// errgroup.SetLimit; an adapter that completes frees its slot immediately
// because errgroup dispatches the next queued Go call as soon as a running
// one returns.
//
// opts.Cancel is linked into execCtx, the parent of every adapter's egCtx:
// closing it cancels execCtx, which cancels egCtx, which cancels the
// context.WithDeadline each running adapter derives its process context
// from (pkg/adapter.RunProcess), so an already-dispatched adapter is
// SIGTERM'd immediately rather than left to run out its full category
// deadline. This is spec.md §5's "as part of the timer tick that drives
// deadlines" half of the cancellation contract; the per-entry check before
// eg.Go below is the "before scheduling each adapter" half.
func (o *Orchestrator) execute(ctx context.Context, input finding.ContractInput, plan []planEntry, opts RunOptions) (Result, error) {
	log := logging.For(logging.CategoryOrchestrator)

	parallelism := opts.ParallelismCap
	if parallelism < 1 {
		parallelism = o.defaultParallelism
	}

	execCtx, cancelExec := context.WithCancel(ctx)
	defer cancelExec()

	eg, egCtx := errgroup.WithContext(execCtx)
	eg.SetLimit(parallelism)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(plan))
	envelopes := make([]finding.RawFindingEnvelope, 0, len(plan))
	cancelled := false

	if opts.Cancel != nil {
		go func() {
			select {
			case <-opts.Cancel:
				mu.Lock()
				cancelled = true
				mu.Unlock()
				log.Info("cancellation received, tearing down in-flight adapters")
				cancelExec()
			case <-execCtx.Done():
			}
		}()
	}

	for _, entry := range plan {
		entry := entry

		mu.Lock()
		isCancelled := cancelled
		mu.Unlock()
		if isCancelled {
			// Cooperative cancellation still dispatches every
			// not-yet-started adapter, with its deadline reduced to "now"
			// (spec.md §5).
			entry.deadline = time.Now()
		}

		eg.Go(func() error {
			toolName := entry.adapter.Metadata().Name
			toolOpts := opts.ToolOptions[toolName]

			env := entry.adapter.Analyze(egCtx, input, toolOpts, entry.deadline)

			mu.Lock()
			envelopes = append(envelopes, env)
			outcomes = append(outcomes, Outcome{
				Tool:     toolName,
				Status:   env.Status,
				Duration: env.Duration,
				RawCount: len(env.Records),
				Err:      env.Err,
			})
			mu.Unlock()

			log.Debug("adapter finished", zap.String("tool", toolName), zap.String("status", string(env.Status)))
			return nil
		})
	}

	_ = eg.Wait()

	return Result{Outcomes: outcomes, Envelopes: envelopes, Cancelled: cancelled}, nil
}
