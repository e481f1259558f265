// Package resourcemanager implements the Resource-Manager Client (C1): the
// asynchronous protocol with the cluster resource manager — register,
// heartbeat, request containers, and the four callbacks the supervisor
// registers against (allocated, completed, shutdown-requested,
// transport-error).
package resourcemanager

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetmaster/pkg/log"
	"github.com/cuemby/fleetmaster/pkg/types"
	"github.com/rs/zerolog"
)

// HeartbeatInterval is the heartbeat cadence: once per second.
const HeartbeatInterval = 1 * time.Second

// Transport is the minimal surface the resource-manager client drives. A
// production Transport wraps pkg/rpc.Conn; tests use an in-process fake.
type Transport interface {
	Register(ctx context.Context, host string, port int, trackingURL string) (types.Capability, error)
	Request(ctx context.Context, capability types.Capability, preferredNodes []string, priority int) error
	Heartbeat(ctx context.Context) (HeartbeatResponse, error)
	Unregister(ctx context.Context, finalStatus types.FinalStatus, diagnostics, trackingURL string) error
}

// HeartbeatResponse is what one heartbeat round-trip may carry back.
type HeartbeatResponse struct {
	Allocated       []types.ContainerDescriptor
	Completed       []types.ContainerCompletion
	ShutdownRequest bool
}

// Callbacks are invoked on the single dedicated heartbeat goroutine.
// Handlers must be non-blocking and must not panic; any error they
// encounter should be logged and absorbed internally.
type Callbacks struct {
	OnAllocated        func(types.ContainerDescriptor)
	OnCompleted        func(types.ContainerCompletion)
	OnShutdownRequested func()
	OnTransportError    func(error)
}

// Client drives Transport on a ticker and fans heartbeat results out to
// Callbacks.
type Client struct {
	transport Transport
	callbacks Callbacks
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Client bound to transport, invoking callbacks from its
// single heartbeat goroutine.
func New(transport Transport, callbacks Callbacks) *Client {
	return &Client{
		transport: transport,
		callbacks: callbacks,
		logger:    log.WithComponent("resourcemanager"),
	}
}

// Register performs the synchronous registration call, publishing
// (host, -1 port, "" tracking url), and returns the cluster capability
// snapshot.
func (c *Client) Register(ctx context.Context, host string) (types.Capability, error) {
	capability, err := c.transport.Register(ctx, host, -1, "")
	if err != nil {
		return types.Capability{}, fmt.Errorf("resourcemanager: register: %w", err)
	}
	return capability, nil
}

// Request issues a container request, already clamped by the caller
// (pkg/supervisor) against the capability snapshot.
func (c *Client) Request(ctx context.Context, capability types.Capability, preferredNodes []string, priority int) error {
	if err := c.transport.Request(ctx, capability, preferredNodes, priority); err != nil {
		return fmt.Errorf("resourcemanager: request: %w", err)
	}
	return nil
}

// Unregister performs the final unregister call. Errors are logged and
// suppressed: shutdown must proceed regardless of whether the resource
// manager acknowledges it.
func (c *Client) Unregister(ctx context.Context, finalStatus types.FinalStatus, diagnostics, trackingURL string) {
	if err := c.transport.Unregister(ctx, finalStatus, diagnostics, trackingURL); err != nil {
		c.logger.Warn().Err(err).Msg("unregister failed, continuing shutdown")
	}
}

// Start begins the heartbeat goroutine. Callbacks are invoked from this
// single goroutine only, so callers never need to synchronize between
// them.
func (c *Client) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.heartbeatLoop(ctx)
}

// Stop halts the heartbeat goroutine and waits for it to exit.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	c.logger.Info().Msg("resource-manager heartbeat loop started")

	for {
		select {
		case <-ticker.C:
			c.sendHeartbeat(ctx)
		case <-ctx.Done():
			c.logger.Info().Msg("resource-manager heartbeat loop stopped")
			return
		}
	}
}

func (c *Client) sendHeartbeat(ctx context.Context) {
	hbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.transport.Heartbeat(hbCtx)
	if err != nil {
		c.logger.Error().Err(err).Msg("heartbeat transport error")
		if c.callbacks.OnTransportError != nil {
			c.callbacks.OnTransportError(err)
		}
		return
	}

	if resp.ShutdownRequest {
		if c.callbacks.OnShutdownRequested != nil {
			c.callbacks.OnShutdownRequested()
		}
		return
	}

	for _, alloc := range resp.Allocated {
		if c.callbacks.OnAllocated != nil {
			c.callbacks.OnAllocated(alloc)
		}
	}
	for _, comp := range resp.Completed {
		if c.callbacks.OnCompleted != nil {
			c.callbacks.OnCompleted(comp)
		}
	}
}
