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
		configPath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fightclub-game dev")
}

func TestContentValidateDefault(t *testing.T) {
	out, err := execute(t, "content", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: ")
}

func TestContentValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte("traits: []\n"), 0o644))
	_, err := execute(t, "content", "validate", path)
	assert.Error(t, err)
}

func TestBadConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("game:\n  store: redis\n"), 0o644))
	_, err := execute(t, "--config", path, "content", "validate")
	assert.Error(t, err)
}
