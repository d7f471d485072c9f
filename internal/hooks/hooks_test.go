package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHookScript(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
}

func TestLoad_ParsesDeclaredProviders(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n"+
		"## Fisher-Testing: {}\n"+
		"echo hi\n")

	repo, err := Load(dir)
	require.NoError(t, err)

	hook, ok := repo.Get("example")
	require.True(t, ok)
	assert.Equal(t, "example", hook.Name)
	require.Len(t, hook.Providers, 1)
	assert.Equal(t, "Testing", hook.Providers[0].Provider.Kind())
}

func TestLoad_SkipsNonExecutableFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a hook"), 0o644))

	repo, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, repo.Names())
}

func TestLoad_StopsAtFirstBlankLine(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n"+
		"## Fisher-Testing: {}\n"+
		"\n"+
		"## Fisher-Status: {\"events\":[\"x\"]}\n")

	repo, err := Load(dir)
	require.NoError(t, err)

	hook, ok := repo.Get("example")
	require.True(t, ok)
	assert.Len(t, hook.Providers, 1)
}

func TestLoad_UnknownProviderIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "example", "#!/bin/sh\n"+
		"## Fisher-Nope: {}\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestRepository_LookupStatusHooks(t *testing.T) {
	dir := t.TempDir()
	writeHookScript(t, dir, "notify", "#!/bin/sh\n"+
		"## Fisher-Status: {\"events\":[\"job_completed\"]}\n")
	writeHookScript(t, dir, "unrelated", "#!/bin/sh\n"+
		"## Fisher-Testing: {}\n")

	repo, err := Load(dir)
	require.NoError(t, err)

	matches := repo.LookupStatusHooks("job_completed")
	require.Len(t, matches, 1)
	assert.Equal(t, "notify", matches[0].Hook.Name)

	assert.Empty(t, repo.LookupStatusHooks("job_failed"))
}
