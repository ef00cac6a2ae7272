// Package adapter defines the uniform contract every external analyzer is
// wrapped behind (spec.md §4.1), plus a shared child-process execution
// helper and a handful of concrete adapters for representative analyzer
// categories (static, symbolic, dynamic/fuzzing, formal, linter, AI).
package adapter

import (
	"context"
	"time"

	"github.com/auditcore/auditcore/pkg/finding"
)

// Options carries the per-invocation options enumerated in spec.md §4.1.
type Options struct {
	TimeoutSeconds int
	Verbosity      string
	// Flags are opaque to the core; keyed by tool name by convention when a
	// caller supplies a single shared Options value across adapters.
	Flags         map[string]string
	WorkingDir    string
	CaptureStderr bool
}

// Adapter is the uniform wrapper around one external analyzer (spec.md §4.1).
//
// Every method here is required to report failures through its return value
// (Status/error fields), never through a panic or an unrecovered exception
// crossing the boundary — see the "Failure semantics" paragraph of §4.1.
type Adapter interface {
	// Metadata is pure and never fails.
	Metadata() finding.ToolMetadata

	// ProbeAvailability is safe to call repeatedly and bounded to a short
	// internal timeout (<= 2s). A failure to reach the tool is reported as
	// NOT_INSTALLED, not as an error.
	ProbeAvailability(ctx context.Context) finding.ToolStatus

	// Analyze runs the adapter's tool against input and returns a raw
	// envelope. It must honor deadline: if it elapses, in-flight child
	// processes are terminated and the envelope reports TIMEOUT with any
	// partial output, within deadline plus a fixed grace (<= 5s).
	Analyze(ctx context.Context, input finding.ContractInput, opts Options, deadline time.Time) finding.RawFindingEnvelope

	// Parse is deterministic. Malformed output yields no records and a
	// non-nil error; Analyze reports that as INVALID_OUTPUT in the envelope.
	Parse(raw []byte) ([]finding.RawRecord, error)
}

// probeTimeout bounds every adapter's availability probe per spec.md §4.1.
const probeTimeout = 2 * time.Second

// killGrace is the SIGTERM-to-SIGKILL window (spec.md §5) that every
// process-backed adapter passes to RunProcess.
const killGrace = 5 * time.Second
