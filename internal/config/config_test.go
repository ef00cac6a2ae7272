package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultHasSaneParallelismFloor(t *testing.T) {
	opts := Default()
	if opts.Orchestrator.ParallelismCap < 2 {
		t.Errorf("ParallelismCap = %d, want >= 2", opts.Orchestrator.ParallelismCap)
	}
	if opts.LLM.Enabled {
		t.Error("LLM should be disabled by default (core stays deterministic unless opted in)")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Orchestrator.PerToolTimeout != Default().Orchestrator.PerToolTimeout {
		t.Error("missing file should yield default options")
	}
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	content := []byte(`
orchestrator:
  parallelism_cap: 3
  per_tool_timeout: 45s
llm:
  enabled: true
  suppress_threshold: 0.9
tools:
  slither:
    timeout_seconds: 20
    flags:
      detect: reentrancy
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Orchestrator.ParallelismCap != 3 {
		t.Errorf("ParallelismCap = %d, want 3", opts.Orchestrator.ParallelismCap)
	}
	if opts.Orchestrator.PerToolTimeout != 45*time.Second {
		t.Errorf("PerToolTimeout = %v, want 45s", opts.Orchestrator.PerToolTimeout)
	}
	if !opts.LLM.Enabled {
		t.Error("LLM.Enabled should be true")
	}
	if got := opts.ToolTimeout("slither"); got != 20*time.Second {
		t.Errorf("ToolTimeout(slither) = %v, want 20s", got)
	}
	if got := opts.ToolTimeout("unknown-tool"); got != opts.Orchestrator.PerToolTimeout {
		t.Errorf("ToolTimeout(unknown) = %v, want orchestrator default", got)
	}
}

func TestEnvOverrideGlobalTimeout(t *testing.T) {
	t.Setenv("AUDITCORE_GLOBAL_TIMEOUT", "90s")
	t.Setenv("AUDITCORE_LLM_ENABLED", "true")

	opts, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Orchestrator.GlobalTimeout != 90*time.Second {
		t.Errorf("GlobalTimeout = %v, want 90s", opts.Orchestrator.GlobalTimeout)
	}
	if !opts.LLM.Enabled {
		t.Error("AUDITCORE_LLM_ENABLED=true should enable LLM")
	}
}
