// Package runner spawns a hook's executable, the core's external script
// execution primitive referenced (but left out of scope) by spec.md §6's
// job execution contract.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ChuLiYu/fisher/pkg/types"
)

// maxCapturedOutput bounds how much of a script's combined stdout/stderr is
// retained for logging; scripts that write more are truncated, not failed.
const maxCapturedOutput = 64 * 1024

// Run spawns execPath with env appended to the parent process's environment,
// writes body to a temp file referenced by FISHER_REQUEST_BODY, and waits
// for it to finish or ctx to be cancelled. workdir, when non-empty, becomes
// the child's working directory (callers pass a fresh scratch directory
// when the bound Provider requested one).
func Run(ctx context.Context, hookName, execPath string, env []string, workdir string, body []byte) (types.JobOutput, error) {
	bodyFile, cleanup, err := writeBodyFile(workdir, body)
	if err != nil {
		return types.JobOutput{}, fmt.Errorf("runner: staging request body: %w", err)
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, execPath)
	cmd.Env = append(os.Environ(), env...)
	cmd.Env = append(cmd.Env, "FISHER_REQUEST_BODY="+bodyFile)
	if workdir != "" {
		cmd.Dir = workdir
	}

	var combined bytes.Buffer
	cmd.Stdout = &capped{buf: &combined, limit: maxCapturedOutput}
	cmd.Stderr = &capped{buf: &combined, limit: maxCapturedOutput}

	start := time.Now()
	runErr := cmd.Run()
	wallTime := time.Since(start)

	out := types.JobOutput{
		HookName: hookName,
		Stdout:   combined.Bytes(),
		WallTime: wallTime,
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return out, fmt.Errorf("runner: spawning %s: %w", execPath, runErr)
		}
	}

	out.ExitCode = exitCode
	out.Success = exitCode == 0
	out.Event, out.TriggerStatusHooks = parseDeclaredOutcome(combined.Bytes())

	return out, nil
}

// writeBodyFile stages the request body in dir (or the OS temp dir, when
// dir is empty) so the script can read it via $FISHER_REQUEST_BODY instead
// of stdin.
func writeBodyFile(dir string, body []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp(dir, "fisher-body-*")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}

// parseDeclaredOutcome looks for a "##[fisher-event] <name>" line in the
// script's combined output, the convention by which a hook names the event
// it wants status hooks dispatched for; the first such line wins. Absent
// such a line, the event is empty and status hooks are not triggered.
func parseDeclaredOutcome(output []byte) (event string, triggerStatusHooks bool) {
	const marker = "##[fisher-event]"
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}

// capped is an io.Writer that stops copying once limit bytes have been
// written, silently dropping the remainder.
type capped struct {
	buf   *bytes.Buffer
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	if c.buf.Len() >= c.limit {
		return len(p), nil
	}
	remaining := c.limit - c.buf.Len()
	if remaining < len(p) {
		c.buf.Write(p[:remaining])
	} else {
		c.buf.Write(p)
	}
	return len(p), nil
}
