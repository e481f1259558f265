package nodemanager

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/types"
)

// FakeRuntime is an in-process Runtime double for nodemanager/supervisor
// tests: containers transition to Running on Start and stay there until
// Complete (a worker process exiting on its own schedule) or Stop is
// called.
type FakeRuntime struct {
	mu     sync.Mutex
	states map[string]types.ContainerState
	exits  map[string]types.ExitStatus
	starts int
	stops  int
}

// NewFakeRuntime creates an empty FakeRuntime.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		states: make(map[string]types.ContainerState),
		exits:  make(map[string]types.ExitStatus),
	}
}

// Start marks the container Running.
func (f *FakeRuntime) Start(_ context.Context, descriptor types.ContainerDescriptor, _ *launch.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.states[descriptor.ContainerID] = types.ContainerStateRunning
	return nil
}

// Stop marks the container Complete, as a real SIGTERM-then-exit sequence
// would eventually be observed by the status poller.
func (f *FakeRuntime) Stop(_ context.Context, descriptor types.ContainerDescriptor, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.states[descriptor.ContainerID] = types.ContainerStateComplete
	if _, ok := f.exits[descriptor.ContainerID]; !ok {
		f.exits[descriptor.ContainerID] = types.ExitStatusSuccess
	}
	return nil
}

// Status returns the container's current simulated state.
func (f *FakeRuntime) Status(_ context.Context, descriptor types.ContainerDescriptor) (types.ContainerState, types.ExitStatus, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[descriptor.ContainerID]
	if !ok {
		state = types.ContainerStateNew
	}
	return state, f.exits[descriptor.ContainerID], 0, nil
}

// Complete simulates the worker process exiting on its own, with the
// given exit status, ahead of any explicit Stop call.
func (f *FakeRuntime) Complete(containerID string, exitStatus types.ExitStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[containerID] = types.ContainerStateComplete
	f.exits[containerID] = exitStatus
}

// Counts returns the number of Start/Stop calls observed, for assertions.
func (f *FakeRuntime) Counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

var _ Runtime = (*FakeRuntime)(nil)
