// Package events implements the in-process control-event bus: a typed
// dispatcher rather than a reflection/any-typed broadcast. Handlers are
// registered explicitly for each of the three control events and invoked
// synchronously, on the publisher's own goroutine, in registration order. A
// handler may publish again (re-entrancy) without deadlocking, because no
// lock is held while a handler runs.
package events

import (
	"sync"

	"github.com/cuemby/fleetmaster/pkg/types"
)

// NewContainerRequest asks the supervisor to issue a new container request,
// optionally carrying the descriptor of the container it is replacing (used
// to decide host affinity).
type NewContainerRequest struct {
	ReplacedContainer *types.ContainerDescriptor
}

// ContainerShutdownRequest asks the supervisor to stop a set of containers.
type ContainerShutdownRequest struct {
	Containers []types.ContainerDescriptor
}

// ApplicationMasterShutdownRequest asks the supervisor to begin its own
// graceful shutdown.
type ApplicationMasterShutdownRequest struct{}

// Bus is the single-process publish/subscribe surface carrying the three
// control events above. The zero value is not usable; use NewBus.
type Bus struct {
	mu sync.RWMutex

	newContainerHandlers      []func(NewContainerRequest)
	containerShutdownHandlers []func(ContainerShutdownRequest)
	amShutdownHandlers        []func(ApplicationMasterShutdownRequest)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnNewContainerRequest registers a handler for NewContainerRequest events.
func (b *Bus) OnNewContainerRequest(handler func(NewContainerRequest)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newContainerHandlers = append(b.newContainerHandlers, handler)
}

// OnContainerShutdownRequest registers a handler for ContainerShutdownRequest
// events.
func (b *Bus) OnContainerShutdownRequest(handler func(ContainerShutdownRequest)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.containerShutdownHandlers = append(b.containerShutdownHandlers, handler)
}

// OnApplicationMasterShutdownRequest registers a handler for
// ApplicationMasterShutdownRequest events.
func (b *Bus) OnApplicationMasterShutdownRequest(handler func(ApplicationMasterShutdownRequest)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.amShutdownHandlers = append(b.amShutdownHandlers, handler)
}

// PublishNewContainerRequest delivers the event to every registered handler,
// in registration order, on the calling goroutine.
func (b *Bus) PublishNewContainerRequest(evt NewContainerRequest) {
	b.mu.RLock()
	handlers := make([]func(NewContainerRequest), len(b.newContainerHandlers))
	copy(handlers, b.newContainerHandlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// PublishContainerShutdownRequest delivers the event to every registered
// handler, in registration order, on the calling goroutine.
func (b *Bus) PublishContainerShutdownRequest(evt ContainerShutdownRequest) {
	b.mu.RLock()
	handlers := make([]func(ContainerShutdownRequest), len(b.containerShutdownHandlers))
	copy(handlers, b.containerShutdownHandlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// PublishApplicationMasterShutdownRequest delivers the event to every
// registered handler, in registration order, on the calling goroutine.
func (b *Bus) PublishApplicationMasterShutdownRequest(evt ApplicationMasterShutdownRequest) {
	b.mu.RLock()
	handlers := make([]func(ApplicationMasterShutdownRequest), len(b.amShutdownHandlers))
	copy(handlers, b.amShutdownHandlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
