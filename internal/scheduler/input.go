package scheduler

import "github.com/ChuLiYu/fisher/pkg/types"

// Input is the taxonomy of messages the scheduler's event loop consumes.
// It is the scheduler's sole mutation path: nothing else may touch queue
// or worker-list state.
type Input interface {
	isInput()
}

// JobInput admits a job for dispatch or queueing.
type JobInput struct {
	Job *types.Job
}

func (JobInput) isInput() {}

// JobEndedInput notifies the scheduler that a worker has become idle.
type JobEndedInput struct{}

func (JobEndedInput) isInput() {}

// HealthStatusInput requests a HealthSnapshot. The reply is sent on Reply
// before the scheduler consumes its next input.
type HealthStatusInput struct {
	Reply chan<- types.HealthSnapshot
}

func (HealthStatusInput) isInput() {}

// StopSignalInput begins graceful shutdown.
type StopSignalInput struct{}

func (StopSignalInput) isInput() {}
