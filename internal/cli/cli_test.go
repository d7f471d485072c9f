package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHookScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func TestBuildCLI_HasRunAndValidateSubcommands(t *testing.T) {
	root := BuildCLI()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["validate"])
}

func TestValidateHooks_ReportsLoadedHooks(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n## Fisher-Testing: {}\n")

	require.NoError(t, validateHooks(dir))
}

func TestValidateHooks_PropagatesLoadError(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n## Fisher-Nope: {}\n")

	assert.Error(t, validateHooks(dir))
}

func TestMergeConfig_FlagsOverrideFileConfig(t *testing.T) {
	cmd := buildRunCommand()
	require.NoError(t, cmd.Flags().Set("bind", "0.0.0.0:9000"))
	require.NoError(t, cmd.Flags().Set("jobs", "4"))

	fileCfg := FileConfig{Bind: "127.0.0.1:8000", Jobs: 1, ProxyHops: 2}
	merged := mergeConfig(fileCfg, cmd, "0.0.0.0:9000", 4, false, 2, 0)

	assert.Equal(t, "0.0.0.0:9000", merged.Bind)
	assert.Equal(t, 4, merged.Jobs)
	assert.Equal(t, 2, merged.ProxyHops)
}

func TestMergeConfig_UnchangedFlagsKeepFileValues(t *testing.T) {
	cmd := buildRunCommand()

	fileCfg := FileConfig{Bind: "10.0.0.1:7000", Jobs: 8, ProxyHops: 3}
	merged := mergeConfig(fileCfg, cmd, "127.0.0.1:8000", 1, false, 0, 0)

	assert.Equal(t, "10.0.0.1:7000", merged.Bind)
	assert.Equal(t, 8, merged.Jobs)
	assert.Equal(t, 3, merged.ProxyHops)
}

func TestLoadConfig_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind: 0.0.0.0:8080\njobs: 5\nno_health: true\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Bind)
	assert.Equal(t, 5, cfg.Jobs)
	assert.True(t, cfg.NoHealth)
}

func TestLoadConfig_MissingFileIsAnError(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateCommand_ReturnsErrorOnBadHooksDir(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n## Fisher-Nope: {}\n")

	root := BuildCLI()
	root.SetArgs([]string{"validate", dir})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	assert.Error(t, err)
}
