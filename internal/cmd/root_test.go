package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"finding", "investigation", "investigation-type", "note",
		"response-plan", "execution", "config", "version",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "esctl")
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "does-not-exist")
	require.Error(t, err)
}

func TestRunWithoutConfigFails(t *testing.T) {
	t.Setenv("ESCTL_SERVER_URL", "")
	t.Setenv("ESCTL_TOKEN", "")

	_, err := execute(t, "finding", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
