package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/finding"
)

// argvBuilder produces the argv for one analyzer invocation.
type argvBuilder func(input finding.ContractInput, opts Options) []string

// recordParser decodes a tool's native output blob into raw records, or
// returns an error when the blob isn't recognizable as that tool's format.
type recordParser func(raw []byte) ([]finding.RawRecord, error)

// processAdapter is the shared skeleton used by every concrete adapter in
// this package: probe via exec.LookPath, run via RunProcess, parse via a
// tool-specific decoder. Each concrete adapter is a thin metadata + argv +
// parser wrapper around this, in the spirit of the teacher's per-provider
// LLM clients sharing one HTTP request shape.
type processAdapter struct {
	metadata    finding.ToolMetadata
	binary      string
	defaultArgs []string
	buildArgv   argvBuilder
	parseFn     recordParser
}

func (a *processAdapter) Metadata() finding.ToolMetadata { return a.metadata }

func (a *processAdapter) ProbeAvailability(ctx context.Context) finding.ToolStatus {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	path, err := exec.LookPath(a.binary)
	if err != nil {
		return finding.StatusNotInstalled
	}

	cmd := exec.CommandContext(probeCtx, path, "--version")
	if err := cmd.Run(); err != nil {
		if probeCtx.Err() != nil {
			return finding.StatusUnavailable
		}
		// Many analyzers exit non-zero on --version but still prove they
		// exist and are executable; only a hard exec failure (binary
		// missing, not executable) counts as NOT_INSTALLED.
		if _, ok := err.(*exec.ExitError); ok {
			return finding.StatusAvailable
		}
		return finding.StatusNotInstalled
	}
	return finding.StatusAvailable
}

func (a *processAdapter) Analyze(ctx context.Context, input finding.ContractInput, opts Options, deadline time.Time) finding.RawFindingEnvelope {
	log := logging.For(logging.CategoryAdapter)
	start := time.Now()

	path, err := exec.LookPath(a.binary)
	if err != nil {
		return finding.RawFindingEnvelope{
			Tool:     a.metadata.Name,
			Status:   finding.EnvelopeUnavailable,
			Duration: time.Since(start),
			Err:      err,
		}
	}

	argv := append([]string{path}, a.defaultArgs...)
	argv = append(argv, a.buildArgv(input, opts)...)

	grace := killGrace
	env := MinimalEnv(flagsAsEnv(a.metadata.Name, opts.Flags))

	res := RunProcess(ctx, argv, opts.WorkingDir, env, grace, deadline)

	envelope := finding.RawFindingEnvelope{
		Tool:     a.metadata.Name,
		Duration: res.Duration,
		ExitCode: res.ExitCode,
	}
	if opts.CaptureStderr {
		envelope.StderrExcerpt = truncate(string(res.Stderr), 4096)
	}

	switch {
	case res.TimedOut:
		envelope.Status = finding.EnvelopeTimeout
		envelope.Err = res.Err
		// Keep whatever records the partial stdout still yields.
		if records, perr := a.parseFn(res.Stdout); perr == nil {
			envelope.Records = records
		}
		log.Warn("adapter timed out", zap.String("tool", a.metadata.Name))
		return envelope
	case res.Err != nil && res.ExitCode < 0:
		envelope.Status = finding.EnvelopeCrash
		envelope.Err = res.Err
		log.Error("adapter crashed", zap.String("tool", a.metadata.Name), zap.Error(res.Err))
		return envelope
	}

	records, err := a.parseFn(res.Stdout)
	if err != nil {
		envelope.Status = finding.EnvelopeInvalidOutput
		envelope.Err = err
		log.Warn("adapter output unparsable", zap.String("tool", a.metadata.Name), zap.Error(err))
		return envelope
	}

	envelope.Status = finding.EnvelopeSuccess
	envelope.Records = records
	return envelope
}

func (a *processAdapter) Parse(raw []byte) ([]finding.RawRecord, error) {
	return a.parseFn(raw)
}

func flagsAsEnv(toolName string, flags map[string]string) map[string]string {
	if flags == nil {
		return nil
	}
	out := make(map[string]string, len(flags))
	for k, v := range flags {
		out[fmt.Sprintf("AUDITCORE_%s_%s", toolName, k)] = v
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}

// decodeJSON is a small helper shared by every JSON-emitting adapter's parser:
// malformed JSON becomes a parse error, which the caller turns into
// INVALID_OUTPUT rather than a panic.
func decodeJSON[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("empty output")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}

func intPtr(v int) *int { return &v }
