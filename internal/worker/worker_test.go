package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/pkg/types"
)

type fakeNotifier struct {
	ended chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ended: make(chan struct{}, 8)}
}

func (f *fakeNotifier) JobEnded() {
	f.ended <- struct{}{}
}

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
}

func TestWorker_DispatchRunsJobAndReportsJobEnded(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "example", "#!/bin/sh\n## Fisher-Testing: {}\nexit 0\n")

	repo, err := hooks.Load(dir)
	require.NoError(t, err)
	hook, ok := repo.Get("example")
	require.True(t, ok)

	notifier := newFakeNotifier()
	w := New(0, repo, notifier, nil)
	w.Start()

	job := &types.Job{
		Hook:     hook,
		Provider: hook.Providers[0].Provider,
		Request:  &types.Request{Kind: types.RequestWeb, Params: map[string]string{}},
		ScriptID: hook.Name,
	}

	assert.Equal(t, Accepted, w.Dispatch(job))

	select {
	case <-notifier.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for JobEnded")
	}
	assert.False(t, w.Busy())
}

func TestWorker_DispatchRejectsWhenBusy(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "slow", "#!/bin/sh\n## Fisher-Testing: {}\nsleep 0.2\nexit 0\n")

	repo, err := hooks.Load(dir)
	require.NoError(t, err)
	hook, _ := repo.Get("slow")

	notifier := newFakeNotifier()
	w := New(0, repo, notifier, nil)
	w.Start()

	job := &types.Job{Hook: hook, Provider: hook.Providers[0].Provider, Request: &types.Request{Params: map[string]string{}}}

	require.Equal(t, Accepted, w.Dispatch(job))
	assert.Equal(t, Rejected, w.Dispatch(job))

	<-notifier.ended
}

func TestWorker_StatusHookChainRunsInline(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "example", "#!/bin/sh\n## Fisher-Testing: {}\necho \"##[fisher-event] job_completed\"\nexit 0\n")
	writeScript(t, dir, "notify", "#!/bin/sh\n## Fisher-Status: {\"events\":[\"job_completed\"]}\nexit 0\n")

	repo, err := hooks.Load(dir)
	require.NoError(t, err)
	hook, _ := repo.Get("example")

	notifier := newFakeNotifier()
	w := New(0, repo, notifier, nil)
	w.Start()

	job := &types.Job{
		Hook:     hook,
		Provider: hook.Providers[0].Provider,
		Request:  &types.Request{Kind: types.RequestWeb, Params: map[string]string{}},
	}

	require.Equal(t, Accepted, w.Dispatch(job))

	select {
	case <-notifier.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for JobEnded")
	}

	// Exactly one JobEnded is sent for the whole chain (primary + status hook).
	select {
	case <-notifier.ended:
		t.Fatal("unexpected second JobEnded for a single chain")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWorker_Stop(t *testing.T) {
	dir := t.TempDir()
	repo, err := hooks.Load(dir)
	require.NoError(t, err)

	notifier := newFakeNotifier()
	w := New(0, repo, notifier, nil)
	w.Start()
	w.Stop()
}
