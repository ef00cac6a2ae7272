package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/auditcore/auditcore/pkg/finding"
)

type stubLLMClient struct {
	response string
	err      error
}

func (s stubLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func (s stubLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

func TestAuditGPTProbeAvailabilityNilClient(t *testing.T) {
	a := NewAuditGPT(nil)
	require.Equal(t, finding.StatusNotInstalled, a.ProbeAvailability(context.Background()))
}

func TestAuditGPTProbeAvailabilityWithClient(t *testing.T) {
	a := NewAuditGPT(stubLLMClient{})
	require.Equal(t, finding.StatusAvailable, a.ProbeAvailability(context.Background()))
}

func TestAuditGPTAnalyzeParsesResponse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Vault.sol")
	require.NoError(t, os.WriteFile(path, []byte("contract Vault {}"), 0o644))

	resp := `[{"rule": "reentrancy", "message": "external call before state write", "severity": "HIGH", "line": 10, "function": "withdraw"}]`
	a := NewAuditGPT(stubLLMClient{response: resp})

	env := a.Analyze(context.Background(), finding.ContractInput{Path: path}, Options{}, time.Now().Add(time.Minute))
	require.Equal(t, finding.EnvelopeSuccess, env.Status)
	require.Len(t, env.Records, 1)
	require.Equal(t, "reentrancy", env.Records[0].NativeRuleID)
	require.Equal(t, "withdraw", env.Records[0].Function)
}

func TestAuditGPTAnalyzeMissingFile(t *testing.T) {
	a := NewAuditGPT(stubLLMClient{response: "[]"})
	env := a.Analyze(context.Background(), finding.ContractInput{Path: "/nonexistent/Vault.sol"}, Options{}, time.Now().Add(time.Minute))
	require.Equal(t, finding.EnvelopeCrash, env.Status)
}

func TestAuditGPTAnalyzeUnparsableResponse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Vault.sol")
	require.NoError(t, os.WriteFile(path, []byte("contract Vault {}"), 0o644))

	a := NewAuditGPT(stubLLMClient{response: "I cannot help with that."})
	env := a.Analyze(context.Background(), finding.ContractInput{Path: path}, Options{}, time.Now().Add(time.Minute))
	require.Equal(t, finding.EnvelopeInvalidOutput, env.Status)
}

func TestAuditGPTAnalyzeNilClientUnavailable(t *testing.T) {
	a := NewAuditGPT(nil)
	env := a.Analyze(context.Background(), finding.ContractInput{Path: "/ignored"}, Options{}, time.Now().Add(time.Minute))
	require.Equal(t, finding.EnvelopeUnavailable, env.Status)
}
