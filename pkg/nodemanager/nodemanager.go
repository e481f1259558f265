// Package nodemanager implements the Node-Manager Client (C2): the
// asynchronous protocol with per-node managers — start/stop/status of a
// single container — plus the callbacks that drive the supervisor's
// idempotent completion path.
package nodemanager

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/log"
	"github.com/cuemby/fleetmaster/pkg/types"
	"github.com/rs/zerolog"
)

// StatusPollInterval is the cadence the status poller uses per container.
const StatusPollInterval = 3 * time.Second

// Runtime is the backend that actually starts/stops/queries a container.
// containerd_runtime.go provides the reference implementation.
type Runtime interface {
	Start(ctx context.Context, descriptor types.ContainerDescriptor, launchCtx *launch.Context) error
	Stop(ctx context.Context, descriptor types.ContainerDescriptor, timeout time.Duration) error
	Status(ctx context.Context, descriptor types.ContainerDescriptor) (types.ContainerState, types.ExitStatus, int, error)
}

// Callbacks are invoked per-container from node-manager goroutines. A
// reported COMPLETE status must drive the same completion handler as the
// resource manager's completion callback, exactly once; the two paths are
// idempotent with respect to the container record.
type Callbacks struct {
	OnStarted       func(containerID string)
	OnStartError    func(containerID string, err error)
	OnStatusReceived func(containerID string, state types.ContainerState)
	OnCompleted     func(types.ContainerCompletion)
	OnStopError     func(containerID string, err error)
}

// Client drives a Runtime and polls per-container status until a
// terminal state is observed.
type Client struct {
	runtime   Runtime
	callbacks Callbacks
	logger    zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a Client bound to runtime.
func New(runtime Runtime, callbacks Callbacks) *Client {
	return &Client{
		runtime:   runtime,
		callbacks: callbacks,
		logger:    log.WithComponent("nodemanager"),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start begins the async start of one container: it invokes the runtime,
// reports started/start-error, and on success spawns the per-container
// status poller. Intended to run inside the supervisor's bounded launch
// worker pool, never on the RM callback thread.
func (c *Client) Start(descriptor types.ContainerDescriptor, launchCtx *launch.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancels[descriptor.ContainerID] = cancel
	c.mu.Unlock()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startCancel()

	if err := c.runtime.Start(startCtx, descriptor, launchCtx); err != nil {
		c.logger.Error().Err(err).Str("container_id", descriptor.ContainerID).Msg("container start failed")
		if c.callbacks.OnStartError != nil {
			c.callbacks.OnStartError(descriptor.ContainerID, err)
		}
		c.forget(descriptor.ContainerID)
		return
	}

	if c.callbacks.OnStarted != nil {
		c.callbacks.OnStarted(descriptor.ContainerID)
	}

	go c.pollStatus(ctx, descriptor)
}

// Stop stops a container already in the supervisor's container record. It
// blocks until the runtime's Stop returns (bounded by timeout plus five
// seconds) and reports a failure through OnStopError.
func (c *Client) Stop(descriptor types.ContainerDescriptor, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()

	if err := c.runtime.Stop(ctx, descriptor, timeout); err != nil {
		c.logger.Error().Err(err).Str("container_id", descriptor.ContainerID).Msg("container stop failed")
		if c.callbacks.OnStopError != nil {
			c.callbacks.OnStopError(descriptor.ContainerID, err)
		}
	}
}

func (c *Client) forget(containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.cancels[containerID]; ok {
		cancel()
		delete(c.cancels, containerID)
	}
}

// pollStatus periodically polls the runtime for a container's status,
// reporting status-received every tick and driving the completion
// callback exactly once when a terminal state is observed.
func (c *Client) pollStatus(ctx context.Context, descriptor types.ContainerDescriptor) {
	ticker := time.NewTicker(StatusPollInterval)
	defer ticker.Stop()
	defer c.forget(descriptor.ContainerID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			state, exitStatus, exitCode, err := c.runtime.Status(statusCtx, descriptor)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Str("container_id", descriptor.ContainerID).Msg("status poll error")
				continue
			}

			if c.callbacks.OnStatusReceived != nil {
				c.callbacks.OnStatusReceived(descriptor.ContainerID, state)
			}

			if state == types.ContainerStateComplete || state == types.ContainerStateFailed {
				if c.callbacks.OnCompleted != nil {
					c.callbacks.OnCompleted(types.ContainerCompletion{
						ContainerID: descriptor.ContainerID,
						ExitStatus:  exitStatus,
						ExitCode:    exitCode,
						ObservedAt:  time.Now(),
					})
				}
				return
			}
		}
	}
}

// StopAll is a convenience for shutdown: cancels every outstanding status
// poller without waiting (the supervisor's own shutdown latch bounds the
// wait).
func (c *Client) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.cancels {
		cancel()
		delete(c.cancels, id)
	}
}
