// Package config holds the in-process defaults the Orchestrator and
// Correlation Engine consult when a caller does not override a field. This
// is deliberately narrower than a front end's full configuration surface —
// loading CLI configuration is an external collaborator's job.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Options is the options document loaded once at process start.
type Options struct {
	// Orchestrator defaults.
	Orchestrator OrchestratorOptions `yaml:"orchestrator"`

	// Per-tool default timeouts and opaque flag maps, keyed by tool name.
	Tools map[string]ToolOptions `yaml:"tools"`

	// LLM collaborator settings for the Correlation Engine.
	LLM LLMOptions `yaml:"llm"`
}

// OrchestratorOptions configures plan execution (spec.md §4.3, §5).
type OrchestratorOptions struct {
	// ParallelismCap bounds concurrently running adapters. Zero means "number
	// of logical CPUs, minimum 2" per spec.md §4.3.
	ParallelismCap int `yaml:"parallelism_cap"`

	// PerToolTimeout caps each adapter's deadline when the caller supplies no
	// per-tool timeout; the orchestrator still takes the minimum with the
	// adapter category's default.
	PerToolTimeout time.Duration `yaml:"per_tool_timeout"`

	// GlobalTimeout is the optional whole-audit deadline. Zero disables it.
	GlobalTimeout time.Duration `yaml:"global_timeout"`

	// KillGrace holds a SIGTERM-to-SIGKILL grace window. No adapter reads it:
	// process-backed adapters always use pkg/adapter's fixed 5s grace.
	KillGrace time.Duration `yaml:"kill_grace"`
}

// ToolOptions carries per-tool invocation defaults (spec.md §4.1).
type ToolOptions struct {
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Verbosity      string            `yaml:"verbosity"`
	WorkingDir     string            `yaml:"working_dir"`
	CaptureStderr  bool              `yaml:"capture_stderr"`
	Flags          map[string]string `yaml:"flags"`
}

// LLMOptions configures the optional LLM-assisted confidence pass (spec.md §4.6).
type LLMOptions struct {
	Enabled            bool    `yaml:"enabled"`
	SuppressThreshold  float64 `yaml:"suppress_threshold"`
	ParallelismCap     int     `yaml:"parallelism_cap"`
	Budget             int     `yaml:"budget"`
	MinSeverityForCall string  `yaml:"min_severity_for_call"`
}

// Default returns the built-in defaults.
func Default() *Options {
	cap := runtime.NumCPU()
	if cap < 2 {
		cap = 2
	}

	return &Options{
		Orchestrator: OrchestratorOptions{
			ParallelismCap: cap,
			PerToolTimeout: 120 * time.Second,
			GlobalTimeout:  0,
			KillGrace:      5 * time.Second,
		},
		Tools: map[string]ToolOptions{},
		LLM: LLMOptions{
			Enabled:            false,
			SuppressThreshold:  0.85,
			ParallelismCap:     4,
			Budget:             50,
			MinSeverityForCall: "HIGH",
		},
	}
}

// Load reads an Options document from a YAML file, layering it over Default().
// A missing file is not an error: the defaults are returned, with the
// environment overrides applied.
func Load(path string) (*Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(opts)
			return opts, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(opts)
	return opts, nil
}

// applyEnvOverrides lets a handful of deployment-specific fields be tuned
// without editing the options file: timeouts, the parallelism cap and the
// LLM on/off switch.
func applyEnvOverrides(opts *Options) {
	if v := os.Getenv("AUDITCORE_GLOBAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.Orchestrator.GlobalTimeout = d
		}
	}
	if v := os.Getenv("AUDITCORE_PER_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts.Orchestrator.PerToolTimeout = d
		}
	}
	if v := os.Getenv("AUDITCORE_PARALLELISM_CAP"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			opts.Orchestrator.ParallelismCap = n
		}
	}
	switch os.Getenv("AUDITCORE_LLM_ENABLED") {
	case "1", "true", "yes":
		opts.LLM.Enabled = true
	case "0", "false", "no":
		opts.LLM.Enabled = false
	}
}

// ToolTimeout resolves the effective timeout for a named tool: its own entry
// if set, otherwise the orchestrator-wide default.
func (o *Options) ToolTimeout(toolName string) time.Duration {
	if t, ok := o.Tools[toolName]; ok && t.TimeoutSeconds > 0 {
		return time.Duration(t.TimeoutSeconds) * time.Second
	}
	return o.Orchestrator.PerToolTimeout
}
