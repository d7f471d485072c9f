// Package worker implements the Fisher worker: a long-running execution
// unit that runs one job at a time and reports completion back to its
// owning scheduler. The worker's busy flag is the only datum shared
// cross-goroutine with the scheduler; it is accessed atomically, set by the
// scheduler on dispatch and cleared by the worker goroutine on completion.
package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/internal/metrics"
	"github.com/ChuLiYu/fisher/internal/runner"
	"github.com/ChuLiYu/fisher/internal/statushook"
	"github.com/ChuLiYu/fisher/pkg/types"
)

var log = slog.Default()

// Outcome is the result of a dispatch attempt.
type Outcome int

const (
	// Accepted means the worker took ownership of the job and will run it.
	Accepted Outcome = iota
	// Rejected means the worker was already busy; the caller keeps
	// ownership of the job. Dispatch does not check whether Stop has been
	// called.
	Rejected
)

// Notifier is the scheduler-side handle a worker uses to report that it
// has gone idle. Accepting this interface (instead of a scheduler.Input
// channel type) keeps worker free of any dependency on package scheduler.
type Notifier interface {
	JobEnded()
}

type command struct {
	job  *types.Job
	stop bool
}

// Worker executes at most one job at a time. Construct with New, then call
// Start before the first Dispatch.
type Worker struct {
	id    int
	busy  atomic.Bool
	cmdCh chan command
	wg    sync.WaitGroup

	hooks    *hooks.Repository
	notifier Notifier
	metrics  *metrics.Collector
}

// New constructs a Worker bound to repo (for status-hook resolution) and
// notifier (the scheduler it reports JobEnded to). collector may be nil,
// disabling metrics entirely. Call Start to begin its execution loop.
func New(id int, repo *hooks.Repository, notifier Notifier, collector *metrics.Collector) *Worker {
	return &Worker{
		id:       id,
		cmdCh:    make(chan command, 1),
		hooks:    repo,
		notifier: notifier,
		metrics:  collector,
	}
}

// Start launches the worker's execution goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Busy reports whether the worker is currently executing a job (or its
// inline status-hook chain). Safe to call from the scheduler goroutine.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Dispatch attempts to hand job to this worker. It sets busy true before
// the command reaches the worker's channel, so a scheduler iterating the
// worker list in the same tick never picks this worker twice.
func (w *Worker) Dispatch(job *types.Job) Outcome {
	if w.busy.Load() {
		return Rejected
	}
	w.busy.Store(true)
	w.cmdCh <- command{job: job}
	return Accepted
}

// Stop asks the worker to exit once idle and blocks until it has. The
// scheduler only stops workers it has first confirmed are idle.
func (w *Worker) Stop() {
	w.cmdCh <- command{stop: true}
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for cmd := range w.cmdCh {
		if cmd.stop {
			return
		}
		w.executeChain(cmd.job)
		w.busy.Store(false)
		w.notifier.JobEnded()
	}
}

// executeChain runs job, then — on success, when the job's provider asks
// for it — runs every matching status hook inline, within this same
// worker, before returning. This keeps the worker busy for the whole
// chain, bounding fan-out against a single fixed worker instead of
// flooding the scheduler queue.
func (w *Worker) executeChain(job *types.Job) {
	output, err := w.executeOne(job)
	if err != nil {
		log.Error("job execution failed", "hook", job.Hook.Name, "delivery_id", job.DeliveryID, "error", err)
		w.recordOutcome(false, output.WallTime.Seconds())
		return
	}
	w.recordOutcome(output.Success, output.WallTime.Seconds())
	if !output.Success {
		log.Warn("hook exited non-zero", "hook", job.Hook.Name, "delivery_id", job.DeliveryID, "exit_code", output.ExitCode)
		return
	}
	if job.Provider == nil || !job.Provider.TriggerStatusHooks(job.Request) {
		return
	}

	for _, follow := range statushook.Resolve(w.hooks, job.Request, output, job.DeliveryID) {
		if w.metrics != nil {
			w.metrics.RecordStatusHookTriggered()
		}
		followOutput, err := w.executeOne(follow)
		if err != nil {
			log.Error("status hook execution failed",
				"event", output.Event, "hook", follow.Hook.Name, "delivery_id", follow.DeliveryID, "error", err)
			w.recordOutcome(false, followOutput.WallTime.Seconds())
			continue
		}
		w.recordOutcome(followOutput.Success, followOutput.WallTime.Seconds())
		if !followOutput.Success {
			log.Warn("status hook exited non-zero",
				"event", output.Event, "hook", follow.Hook.Name, "delivery_id", follow.DeliveryID, "exit_code", followOutput.ExitCode)
		}
	}
}

// recordOutcome reports one job execution's success/failure and wall time.
// A nil collector (metrics disabled) makes this a no-op.
func (w *Worker) recordOutcome(success bool, durationSeconds float64) {
	if w.metrics == nil {
		return
	}
	if success {
		w.metrics.RecordCompleted(durationSeconds)
	} else {
		w.metrics.RecordFailed(durationSeconds)
	}
}

// executeOne runs a single job's script, preparing a scratch directory
// when the bound provider asks for one.
func (w *Worker) executeOne(job *types.Job) (types.JobOutput, error) {
	var env []string
	if job.Provider != nil {
		env = job.Provider.Env(job.Request)
	}
	if job.DeliveryID != "" {
		env = append(env, "FISHER_DELIVERY_ID="+job.DeliveryID)
	}

	workdir := ""
	if job.Provider != nil && job.Provider.PrepareDirectory() {
		dir, err := os.MkdirTemp("", "fisher-"+job.Hook.Name+"-")
		if err != nil {
			return types.JobOutput{}, err
		}
		defer os.RemoveAll(dir)
		workdir = dir
	}

	return runner.Run(context.Background(), job.Hook.Name, job.Hook.Exec, env, workdir, job.Request.Body)
}
