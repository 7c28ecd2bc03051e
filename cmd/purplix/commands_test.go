package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPurgeCommand(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	db := filepath.Join(dir, "purplix.db")
	require.NoError(t, os.WriteFile(envFile, []byte("PURPLIX_DATABASE_FILE="+db+"\nLOG_LEVEL=error\n"), 0o600))
	t.Setenv("PURPLIX_DATABASE_FILE", "ignored.db")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--env-file", envFile, "purge"})
	require.NoError(t, cmd.Execute())

	require.Contains(t, out.String(), "proofs")
	require.FileExists(t, db, "--env-file overrides the environment")
}

func TestMissingEnvFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "nope.env"), "migrate"})
	require.Error(t, cmd.Execute())
}
