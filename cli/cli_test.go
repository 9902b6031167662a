package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func record(t *testing.T, compress bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pipecache.toml")
	cachePath := filepath.Join(dir, "cache.data")

	out, err := execute(t, "record",
		"--config", configPath,
		"--log-level", "error",
		"--shaders", filepath.Join("..", "testbed", "assets", "shaders"),
		"--output", cachePath,
		"--compress="+map[bool]string{true: "true", false: "false"}[compress])
	require.NoError(t, err)
	assert.Contains(t, out, "recorded")
	require.FileExists(t, cachePath)
	return configPath, cachePath
}

func TestRecordThenInspect(t *testing.T) {
	_, cachePath := record(t, true)

	out, err := execute(t, "inspect", cachePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Compressed:     true")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "graphics pipeline")
	assert.Contains(t, out, "compute pipeline")
	assert.Contains(t, out, "shader module#0")

	out, err = execute(t, "inspect", "--quiet", cachePath)
	require.NoError(t, err)
	assert.NotContains(t, out, "KIND")
}

func TestRecordThenWarmup(t *testing.T) {
	configPath, cachePath := record(t, false)

	out, err := execute(t, "warmup", "--config", configPath, "--log-level", "error", cachePath)
	require.NoError(t, err)
	assert.Contains(t, out, "graphics pipeline:")
	assert.Contains(t, out, "replayed")
}

func TestWarmupRejectsForeignApplication(t *testing.T) {
	configPath, cachePath := record(t, true)

	_, err := execute(t, "warmup", "--config", configPath, "--log-level", "error",
		"--application-id", uuid.NewString(), cachePath)
	assert.Error(t, err)

	_, err = execute(t, "warmup", "--config", configPath, "--application-id", "not-a-uuid", cachePath)
	assert.Error(t, err)
}

func TestInspectRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a cache file, but long enough for a header"), 0o644))

	_, err := execute(t, "inspect", path)
	assert.Error(t, err)

	_, err = execute(t, "inspect")
	assert.Error(t, err)
}
