package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigtrace/internal/config"
)

var (
	inverterYAML = filepath.Join("..", "scenario", "testdata", "scenarios", "inverter.yaml")
	goldenDir    = filepath.Join("..", "scenario", "testdata", "golden")
)

// newTestRoot returns root options reading a private config file so tests
// never pick up a sigtrace.toml from the working tree. extra is appended to
// the file.
func newTestRoot(t *testing.T, format, extra string) *RootOptions {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	content := "[log]\nlevel = \"error\"\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &RootOptions{Format: format, Config: path}
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeScenario writes a scenario file into a temp dir.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readGolden(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(goldenDir, name+".golden"))
	require.NoError(t, err)
	return string(data)
}

// singleDrive has no mode of its own, so the configured mode applies.
const singleDrive = `
name: single
description: "one drive"
root: top
signals:
  - {name: s, owner: top, width: 1, named: true}
drives:
  - {signal: s, value: 1, at: {ps: 5}}
assertions:
  - {type: trace_count, key: top/s, count: 3}
`
