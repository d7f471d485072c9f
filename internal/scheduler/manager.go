package scheduler

import (
	"sync"
	"time"

	"github.com/ChuLiYu/fisher/internal/hooks"
	"github.com/ChuLiYu/fisher/internal/metrics"
	"github.com/ChuLiYu/fisher/pkg/types"
)

// metricsSampleInterval is how often Manager refreshes the queue-depth
// gauges between the event-driven samples taken on JobInput/JobEndedInput/
// StopSignalInput, covering the gap while every worker is busy and no
// message is flowing through the scheduler.
const metricsSampleInterval = 5 * time.Second

// Manager supervises the scheduler's lifetime: it starts the event-loop
// goroutine, hands producers a send-only input channel, and blocks callers
// of Stop until the event loop has fully drained.
type Manager struct {
	sched    *Scheduler
	stopOnce sync.Once
}

// Start constructs a Scheduler for maxThreads workers over repo, launches
// its event loop in a new goroutine, and returns once the loop's input
// channel is ready to receive. collector may be nil, disabling metrics
// entirely; otherwise a background ticker refreshes the queue-depth gauges
// every metricsSampleInterval in addition to the scheduler's own
// event-driven samples.
func Start(maxThreads int, repo *hooks.Repository, collector *metrics.Collector) (*Manager, error) {
	sched, err := New(maxThreads, repo, collector)
	if err != nil {
		return nil, err
	}

	go sched.Run()

	m := &Manager{sched: sched}
	if collector != nil {
		m.startMetricsSampler(collector, metricsSampleInterval)
	}
	return m, nil
}

// startMetricsSampler periodically queries the scheduler for a
// HealthSnapshot and refreshes the queue-depth gauges from it. It exits as
// soon as the scheduler's Done channel closes, guarding every send and
// receive with that same signal so it can never block past shutdown.
func (m *Manager) startMetricsSampler(collector *metrics.Collector, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.sched.Done():
				return
			case <-ticker.C:
				reply := make(chan types.HealthSnapshot, 1)
				select {
				case m.sched.Input() <- HealthStatusInput{Reply: reply}:
				case <-m.sched.Done():
					return
				}
				select {
				case snap := <-reply:
					collector.SetQueueStats(snap.QueueSize, snap.ActiveJobs)
				case <-m.sched.Done():
					return
				}
			}
		}
	}()
}

// Input returns the send-only channel producers use to submit jobs,
// health-status probes, and the stop signal.
func (m *Manager) Input() chan<- Input {
	return m.sched.Input()
}

// Stop sends StopSignal and blocks until the scheduler has drained every
// in-flight job and every worker has exited. Idempotent: calling Stop more
// than once after the first has no further effect.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.sched.Input() <- StopSignalInput{}
		<-m.sched.Done()
	})
}
