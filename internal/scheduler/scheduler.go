// Package scheduler implements the Fisher job processor's core: a bounded
// worker pool, a FIFO overflow queue, and a single event-loop goroutine
// that is the sole mutator of both. Everything else — the HTTP front-end,
// the worker goroutines themselves — communicates with it exclusively
// through its input channel.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/internal/metrics"
	"github.com/ChuLiYu/fisher/internal/worker"
	"github.com/ChuLiYu/fisher/pkg/types"
)

var log = slog.Default()

// Scheduler owns the worker set and the overflow queue. All of its state
// below is touched only by the goroutine running Run; no other
// goroutine may read or write queue, workers, or shouldStop directly.
type Scheduler struct {
	inputCh chan Input
	doneCh  chan struct{}

	hooks        *hooks.Repository
	maxThreads   int
	queue        []*types.Job
	workers      []*worker.Worker
	shouldStop   bool
	nextWorkerID int

	metrics *metrics.Collector
}

// New constructs a Scheduler for at most maxThreads concurrent jobs.
// maxThreads == 0 is a configuration error: a scheduler with no workers
// would queue every job forever, so it is rejected at construction rather
// than silently built. collector may be nil, disabling metrics entirely.
func New(maxThreads int, repo *hooks.Repository, collector *metrics.Collector) (*Scheduler, error) {
	if maxThreads <= 0 {
		return nil, fmt.Errorf("scheduler: max_threads must be >= 1, got %d", maxThreads)
	}
	return &Scheduler{
		inputCh:    make(chan Input),
		doneCh:     make(chan struct{}),
		hooks:      repo,
		maxThreads: maxThreads,
		metrics:    collector,
	}, nil
}

// Input returns the send-only handle producers (the HTTP front-end, the
// Manager) use to submit messages.
func (s *Scheduler) Input() chan<- Input {
	return s.inputCh
}

// Done is closed once the event loop has exited (all workers drained).
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// JobEnded implements worker.Notifier: a worker calls this from its own
// goroutine after clearing its busy flag. It is the worker's only path
// back into scheduler state, and it goes through the same input channel
// every other producer uses.
func (s *Scheduler) JobEnded() {
	s.inputCh <- JobEndedInput{}
}

// Run spawns maxThreads workers and runs the event loop until shutdown
// completes, then closes Done. Run is meant to be launched in its own
// goroutine by the Manager; it blocks for the scheduler's entire lifetime.
func (s *Scheduler) Run() {
	defer close(s.doneCh)

	for i := 0; i < s.maxThreads; i++ {
		s.spawnWorker()
	}

	for input := range s.inputCh {
		if s.handle(input) {
			return
		}
	}
	// Channel closed by something other than StopSignalInput: treat as an
	// internal channel closure, equivalent to StopSignal followed by a
	// normal drain.
	s.shouldStop = true
	s.cleanupWorkers()
}

// handle processes one input message and reports whether the event loop
// should exit.
func (s *Scheduler) handle(input Input) (exit bool) {
	switch in := input.(type) {
	case JobInput:
		if s.shouldStop {
			log.Debug("dropping job submitted after stop", "hook", in.Job.Hook.Name)
			return false
		}
		s.admit(in.Job)
		s.recordQueueStats()
		return false

	case JobEndedInput:
		if len(s.queue) > 0 {
			job := s.queue[0]
			s.queue = s.queue[1:]
			if !s.dispatch(job) {
				// No worker was free after all: put it back at the head so
				// FIFO order is preserved from the producer's viewpoint.
				s.queue = append([]*types.Job{job}, s.queue...)
			}
			s.recordQueueStats()
			return false
		}
		if s.shouldStop {
			s.cleanupWorkers()
			s.recordQueueStats()
			return len(s.workers) == 0
		}
		s.recordQueueStats()
		return false

	case HealthStatusInput:
		in.Reply <- types.HealthSnapshot{
			QueueSize:  len(s.queue),
			ActiveJobs: s.activeJobs(),
		}
		return false

	case StopSignalInput:
		s.shouldStop = true
		s.cleanupWorkers()
		s.recordQueueStats()
		return len(s.workers) == 0

	default:
		return false
	}
}

// recordQueueStats refreshes the queue-depth gauges. Called on every
// JobInput/JobEndedInput/StopSignalInput, the events that can change queue
// length or active-worker count; a ticker-driven sample (see
// Manager.startMetricsSampler) covers the gaps between them. A nil
// collector (metrics disabled) makes this a no-op.
func (s *Scheduler) recordQueueStats() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetQueueStats(len(s.queue), s.activeJobs())
}

// admit dispatches job to the first idle worker, or queues it if every
// worker is busy.
func (s *Scheduler) admit(job *types.Job) {
	if !s.dispatch(job) {
		s.queue = append(s.queue, job)
	}
}

// dispatch iterates the worker list in index order and hands job to the
// first idle one. Tie-breaking by index is deterministic, not a fairness
// policy.
func (s *Scheduler) dispatch(job *types.Job) bool {
	for _, w := range s.workers {
		if w.Dispatch(job) == worker.Accepted {
			if s.metrics != nil {
				s.metrics.RecordDispatched()
			}
			return true
		}
	}
	return false
}

func (s *Scheduler) activeJobs() int {
	active := 0
	for _, w := range s.workers {
		if w.Busy() {
			active++
		}
	}
	return active
}

func (s *Scheduler) spawnWorker() {
	w := worker.New(s.nextWorkerID, s.hooks, s, s.metrics)
	s.nextWorkerID++
	w.Start()
	s.workers = append(s.workers, w)
}

// cleanupWorkers removes every idle worker when shutting down, or sheds
// idle surplus above maxThreads otherwise. Busy workers are left in place
// and are reconsidered on their next JobEnded.
func (s *Scheduler) cleanupWorkers() {
	remaining := len(s.workers)
	toRemove := make(map[int]bool, len(s.workers))
	for i, w := range s.workers {
		if w.Busy() {
			continue
		}
		if s.shouldStop || remaining > s.maxThreads {
			toRemove[i] = true
			remaining--
		}
	}
	if len(toRemove) == 0 {
		return
	}

	kept := make([]*worker.Worker, 0, len(s.workers)-len(toRemove))
	for i, w := range s.workers {
		if toRemove[i] {
			w.Stop()
			continue
		}
		kept = append(kept, w)
	}
	s.workers = kept
}
