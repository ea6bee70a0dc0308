package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidScenario(t *testing.T) {
	opts := newTestRoot(t, "text", "")

	stdout, _, err := execute(NewValidateCommand(opts), inverterYAML)
	require.NoError(t, err)
	assert.Equal(t, "✓ Scenario inverter valid (2 instances, 4 signals, 3 processes)\n", stdout)
}

func TestValidateValidScenarioJSON(t *testing.T) {
	opts := newTestRoot(t, "json", "")

	stdout, _, err := execute(NewValidateCommand(opts), inverterYAML)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, "reduced", data["mode"])
	assert.EqualValues(t, 4, data["signals"])
}

func TestValidateNonExistentFile(t *testing.T) {
	opts := newTestRoot(t, "text", "")

	_, stderr, err := execute(NewValidateCommand(opts), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, stderr, "failed to read scenario file")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantCode string
		wantText string
	}{
		{
			name:     "schema",
			yaml:     "name: x\ndescription: y\nroot: top\nsignals: [{name: s, owner: top, width: 0}]\n",
			wantCode: ErrCodeInvalid,
			wantText: "schema validation failed",
		},
		{
			name:     "unknown field",
			yaml:     "name: x\ndescription: y\nroot: top\nsignal: []\n",
			wantCode: ErrCodeInvalid,
			wantText: "signal",
		},
		{
			name:     "dangling reference",
			yaml:     danglingRef,
			wantCode: ErrCodeDesign,
			wantText: "UNKNOWN_REF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newTestRoot(t, "json", "")

			stdout, _, err := execute(NewValidateCommand(opts), writeScenario(t, tt.yaml))
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.wantText)
		})
	}
}

func TestValidateRequiresArgument(t *testing.T) {
	opts := newTestRoot(t, "text", "")

	_, _, err := execute(NewValidateCommand(opts))
	require.Error(t, err)
}

func TestValidateMultipleFiles(t *testing.T) {
	opts := newTestRoot(t, "text", "")
	bad := writeScenario(t, danglingRef)

	_, stderr, err := execute(NewValidateCommand(opts), inverterYAML, bad, inverterYAML)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "E004")

	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	require.Len(t, lines, 3, "results keep argument order")
	assert.True(t, strings.HasPrefix(lines[0], "✓ Scenario inverter"))
	assert.True(t, strings.HasPrefix(lines[1], "✗ "+bad))
	assert.True(t, strings.HasPrefix(lines[2], "✓ Scenario inverter"))
}

func TestValidateMultipleFilesJSON(t *testing.T) {
	opts := newTestRoot(t, "json", "")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	stdout, _, err := execute(NewValidateCommand(opts), inverterYAML, missing, writeScenario(t, danglingRef))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "a missing file outranks an invalid one")
	assert.Contains(t, err.Error(), "2 of 3 scenarios invalid")

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string             `json:"code"`
			Details []ValidationResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	require.Len(t, resp.Error.Details, 3)
	assert.True(t, resp.Error.Details[0].Valid)
	assert.Equal(t, ErrCodeDesign, resp.Error.Details[2].Code)
}

func TestValidateAllValidJSON(t *testing.T) {
	opts := newTestRoot(t, "json", "")
	clocked := filepath.Join("..", "scenario", "testdata", "scenarios", "clocked.yaml")

	stdout, _, err := execute(NewValidateCommand(opts), inverterYAML, clocked)
	require.NoError(t, err)

	var resp struct {
		Data []ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "inverter", resp.Data[0].Scenario)
	assert.Equal(t, "clocked", resp.Data[1].Scenario)
}
