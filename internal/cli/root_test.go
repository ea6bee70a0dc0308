package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sigtrace", cmd.Use)
	assert.Contains(t, cmd.Long, "trace modes")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "validate", "modes", "runs", "show"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	colorFlag := cmd.PersistentFlags().Lookup("color")
	require.NotNil(t, colorFlag)
	assert.Equal(t, "auto", colorFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	modeFlag := runCmd.Flags().Lookup("mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "m", modeFlag.Shorthand)
	assert.Equal(t, "", modeFlag.DefValue)

	outFlag := runCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)

	require.NotNil(t, runCmd.Flags().Lookup("db"))
	require.NotNil(t, runCmd.Flags().Lookup("check"))

	deltaFlag := runCmd.Flags().Lookup("max-deltas")
	require.NotNil(t, deltaFlag)
	assert.Equal(t, "1000", deltaFlag.DefValue)
}

func TestShowCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	showCmd, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)

	runFlag := showCmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)
	assert.Equal(t, "", runFlag.DefValue)
	require.NotNil(t, showCmd.Flags().Lookup("prefix"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(NewRootCommand(), "--format", "yaml", "modes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidColor(t *testing.T) {
	_, _, err := execute(NewRootCommand(), "--color", "sometimes", "modes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid color")
}

func TestSetup_BadConfig(t *testing.T) {
	opts := newTestRoot(t, "text", "[trace]\nmode = \"verbose\"\n")

	_, _, err := execute(NewRunCommand(opts), inverterYAML)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))

	wrapped := WrapExitError(ExitFailure, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.Equal(t, "inner", errors.Unwrap(wrapped).Error())
}
