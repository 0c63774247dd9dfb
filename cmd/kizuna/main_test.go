package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kizuna.yml")
	require.NoError(t, os.WriteFile(path, []byte("Stress:\n  Workers: 3\n"), 0o600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"kizuna", "config", "--config", path}))
	assert.Contains(t, out.String(), "Workers: 3")
	assert.Contains(t, out.String(), "InitialCapacity: 1024")
}

func TestStressCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"kizuna", "stress", "--workers", "2", "--objects", "2", "--iterations", "100"}))
	assert.Contains(t, out.String(), "operations=200")
	assert.Contains(t, out.String(), "scene_released=1024")
	assert.Contains(t, out.String(), "destroyed=2")
}

func TestStressCommandInvalid(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run([]string{"kizuna", "stress", "--workers", "0"})
	require.Error(t, err)
}

func TestStressCommandSceneCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kizuna.yml")
	require.NoError(t, os.WriteFile(path, []byte("Scene:\n  InitialCapacity: 16\n"), 0o600))

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"kizuna", "stress", "--config", path, "--workers", "1", "--objects", "3", "--iterations", "10"}))
	assert.Contains(t, out.String(), "scene_released=16")
	assert.Contains(t, out.String(), "destroyed=3")
}
