package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		projectDir = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"replay", "init", "journal"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
}

func TestReplayCommand_Flags(t *testing.T) {
	flag := replayCmd.Flags().Lookup("live")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestInitCreatesWorkbenchDir(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "-C", dir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Workbench ready")
	assert.FileExists(t, filepath.Join(dir, ".workbench", "config.yaml"))
}

func TestReplayScriptsAndJournal(t *testing.T) {
	dir := t.TempDir()
	scripts, err := filepath.Abs(filepath.Join("..", "..", "internal", "scenario", "testdata"))
	require.NoError(t, err)

	out, err := execute(t, "-C", dir, "replay",
		filepath.Join(scripts, "fast_track.yaml"),
		filepath.Join(scripts, "guards.yaml"),
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PASSED")
	assert.NotContains(t, out, "FAILED")

	out, err = execute(t, "-C", dir, "journal", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "3 of ")
	assert.Contains(t, out, "journal.log")
}

func TestReplayReportsMismatch(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(script, []byte("name: broken\nsteps:\n  - action: assess\n"), 0o644))

	out, err := execute(t, "-C", dir, "replay", script)
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "✗")
}

func TestJournalEmpty(t *testing.T) {
	out, err := execute(t, "-C", t.TempDir(), "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "Journal is empty.")
}
