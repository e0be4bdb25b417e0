package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoConfigFilePresent(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DebuggerColor)
	assert.Empty(t, cfg.DefaultPlaceFile)
}

func TestLoadReadsWorkingDirectoryConfig(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	content := "debugger_color: false\ndefault_place_file: layout.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".raluvm.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.DebuggerColor)
	assert.Equal(t, "layout.yaml", cfg.DefaultPlaceFile)
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}
