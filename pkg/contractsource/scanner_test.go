package contractsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.19;

contract Vault {
    mapping(address => uint256) balances;

    function deposit() public payable {
        balances[msg.sender] += msg.value;
    }

    function withdraw(uint256 amount) public {
        require(balances[msg.sender] >= amount);
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok);
        balances[msg.sender] -= amount;
    }
}
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Vault.sol")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanFileDetectsPragmaVersion(t *testing.T) {
	path := writeTemp(t, sampleSource)
	f, err := ScanFile(path)
	require.NoError(t, err)
	require.Equal(t, "^0.8.19", f.LanguageVersion)
}

func TestScanFileExtractsFunctionBoundaries(t *testing.T) {
	path := writeTemp(t, sampleSource)
	f, err := ScanFile(path)
	require.NoError(t, err)
	require.Len(t, f.Functions, 2)
	require.Equal(t, "deposit", f.Functions[0].Name)
	require.Equal(t, "Vault", f.Functions[0].Contract)
	require.Equal(t, "withdraw", f.Functions[1].Name)
}

func TestFunctionAtResolvesLineToFunction(t *testing.T) {
	path := writeTemp(t, sampleSource)
	f, err := ScanFile(path)
	require.NoError(t, err)

	fn, ok := f.FunctionAt(13) // inside withdraw's body
	require.True(t, ok)
	require.Equal(t, "withdraw", fn.Name)

	_, ok = f.FunctionAt(5) // state variable declaration, no function
	require.False(t, ok)
}

func TestScanFileNoPragmaIsBestEffort(t *testing.T) {
	path := writeTemp(t, "contract Empty {}\n")
	f, err := ScanFile(path)
	require.NoError(t, err)
	require.Empty(t, f.LanguageVersion)
}

func TestScanFileMissingPathErrors(t *testing.T) {
	_, err := ScanFile("/nonexistent/path/Vault.sol")
	require.Error(t, err)
}
