package adapter

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/auditcore/auditcore/internal/logging"
)

// ProcessResult is the outcome of one child-process invocation.
type ProcessResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	TimedOut bool
	Err      error
}

// RunProcess launches argv[0] with argv[1:], honoring deadline and the
// execution invariants in spec.md §4.1: a fresh environment subset plus the
// minimal configuration needed, argv-based construction (never a shell),
// and SIGTERM-then-SIGKILL termination when the deadline elapses.
//
// grace bounds how long the process is given to exit cleanly after SIGTERM
// before SIGKILL is sent; the overall call never blocks past
// deadline+grace+a small scheduling margin.
func RunProcess(ctx context.Context, argv []string, workDir string, env []string, grace time.Duration, deadline time.Time) ProcessResult {
	start := time.Now()
	log := logging.For(logging.CategoryAdapter)

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.WaitDelay = grace
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	dur := time.Since(start)

	res := ProcessResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: dur,
	}

	if runCtx.Err() != nil {
		res.TimedOut = true
		res.Err = runCtx.Err()
		log.Warn("adapter process timed out", zap.Strings("argv", argv), zap.Duration("duration", dur))
		return res
	}

	if err != nil {
		res.Err = err
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		log.Debug("adapter process exited non-zero", zap.Strings("argv", argv), zap.Error(err))
		return res
	}

	return res
}

// MinimalEnv builds the "fresh environment subset plus the minimal
// configuration needed" called for in spec.md §4.1, starting from PATH/HOME
// (most analyzer binaries need PATH to resolve their own subprocesses, and
// HOME to locate caches/config) plus the extra variables the caller passes
// (processAdapter passes the caller's tool flags as AUDITCORE_<tool>_<flag>).
func MinimalEnv(extra map[string]string) []string {
	env := []string{}
	for _, k := range []string{"PATH", "HOME"} {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
