/*
Package events implements the Event Bus Adapter (C6): the in-process
control-event dispatcher that decouples the supervisor's decision logic
from the goroutines driving the resource-manager and node-manager
clients.

# Architecture

Unlike a general-purpose pub/sub broker, the bus carries exactly three
typed control events and delivers them synchronously, on the
publisher's own goroutine, in handler-registration order:

	┌───────────────────── EVENT BUS ──────────────────────────┐
	│                                                            │
	│  NewContainerRequest          ContainerShutdownRequest    │
	│       │                              │                     │
	│       ▼                              ▼                     │
	│  OnNewContainerRequest         OnContainerShutdownRequest  │
	│  (supervisor issues an         (supervisor tells the      │
	│   RM container request,        node manager to stop a     │
	│   honoring host affinity)       set of containers)         │
	│                                                            │
	│  ApplicationMasterShutdownRequest                          │
	│       │                                                    │
	│       ▼                                                    │
	│  OnApplicationMasterShutdownRequest                        │
	│  (RM told the AM to exit; drives Supervisor.Stop)          │
	└────────────────────────────────────────────────────────────┘

There is no background broadcast loop, no buffering, and no dropped
events: Publish* calls every registered handler before returning. A
handler is free to publish again from within its own call because no
lock is held while a handler runs — only while the handler slice is
copied.

# Usage

	bus := events.NewBus()
	bus.OnNewContainerRequest(func(req events.NewContainerRequest) {
		supervisor.requestContainer(req.ReplacedContainer)
	})
	bus.OnApplicationMasterShutdownRequest(func(events.ApplicationMasterShutdownRequest) {
		supervisor.beginShutdown()
	})

	bus.PublishNewContainerRequest(events.NewContainerRequest{})

# Design Notes

Typed over reflection-based: three concrete event structs and three
handler slices, rather than a single Event{Type, Payload any} broadcast
to every subscriber. The supervisor is the only consumer, so there is
no need for topic filtering or a subscriber registry.

Synchronous over buffered: delivering in-line keeps ordering trivial to
reason about (the AM shutdown request is always observed after any
in-flight container request it raced with) at the cost of making a slow
handler block the publisher. Handlers here are supervisor state
transitions, not I/O, so this trade-off holds.

No persistence, no replay, no cross-process delivery: this bus lives
inside a single application-master process. Shutdown coordination with
the resource manager and node manager goes over
[github.com/cuemby/fleetmaster/pkg/resourcemanager] and
[github.com/cuemby/fleetmaster/pkg/nodemanager], not through this bus.
*/
package events
