package nodemanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/types"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func TestStartReportsStartedAndPolls(t *testing.T) {
	runtime := NewFakeRuntime()

	var started string
	var statuses []types.ContainerState
	client := New(runtime, Callbacks{
		OnStarted: func(id string) { started = id },
		OnStatusReceived: func(_ string, state types.ContainerState) {
			statuses = append(statuses, state)
		},
	})

	descriptor := types.ContainerDescriptor{ContainerID: "c1"}
	client.Start(descriptor, &launch.Context{})

	waitFor(t, time.Second, func() bool { return started == "c1" })
	waitFor(t, StatusPollInterval*2, func() bool { return len(statuses) > 0 })

	assert.Equal(t, "c1", started)
	assert.Contains(t, statuses, types.ContainerStateRunning)

	client.StopAll()
}

func TestCompletionObservedExactlyOnce(t *testing.T) {
	runtime := NewFakeRuntime()

	completions := make(chan types.ContainerCompletion, 4)
	client := New(runtime, Callbacks{
		OnCompleted: func(c types.ContainerCompletion) { completions <- c },
	})

	descriptor := types.ContainerDescriptor{ContainerID: "c1"}
	client.Start(descriptor, &launch.Context{})

	waitFor(t, time.Second, func() bool {
		starts, _ := runtime.Counts()
		return starts == 1
	})

	runtime.Complete("c1", types.ExitStatusSuccess)

	select {
	case c := <-completions:
		assert.Equal(t, "c1", c.ContainerID)
		assert.Equal(t, types.ExitStatusSuccess, c.ExitStatus)
	case <-time.After(StatusPollInterval * 3):
		require.Fail(t, "expected exactly one completion callback")
	}

	select {
	case <-completions:
		require.Fail(t, "completion callback delivered more than once")
	case <-time.After(StatusPollInterval * 2):
	}
}

func TestStartWithoutCallbacksInvokesRuntime(t *testing.T) {
	runtime := NewFakeRuntime()
	client := New(runtime, Callbacks{})
	// FakeRuntime never errors on Start; this exercises the no-callback
	// path: Start must still reach the runtime with no callbacks set.
	descriptor := types.ContainerDescriptor{ContainerID: "c2"}
	client.Start(descriptor, &launch.Context{})
	waitFor(t, time.Second, func() bool {
		starts, _ := runtime.Counts()
		return starts == 1
	})
	client.StopAll()
}

func TestStopInvokesRuntimeStop(t *testing.T) {
	runtime := NewFakeRuntime()
	client := New(runtime, Callbacks{})

	descriptor := types.ContainerDescriptor{ContainerID: "c3"}
	client.Stop(descriptor, 5*time.Second)

	_, stops := runtime.Counts()
	assert.Equal(t, 1, stops)
}
