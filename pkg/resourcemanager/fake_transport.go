package resourcemanager

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/fleetmaster/pkg/types"
)

// FakeTransport is an in-process Transport double for supervisor tests. It
// never allocates on its own; tests call Allocate/Complete/RequestShutdown
// to drive the heartbeat responses the Client polls.
type FakeTransport struct {
	mu sync.Mutex

	capability  types.Capability
	registered  bool
	pending     []types.ContainerDescriptor
	completions []types.ContainerCompletion
	shutdown    bool

	requests     []requestRecord
	unregistered bool
}

type requestRecord struct {
	Capability     types.Capability
	PreferredNodes []string
	Priority       int
}

// NewFakeTransport creates a FakeTransport that will hand back capability
// at registration.
func NewFakeTransport(capability types.Capability) *FakeTransport {
	return &FakeTransport{capability: capability}
}

// Register implements Transport.
func (f *FakeTransport) Register(_ context.Context, _ string, _ int, _ string) (types.Capability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = true
	return f.capability, nil
}

// Request implements Transport.
func (f *FakeTransport) Request(_ context.Context, capability types.Capability, preferredNodes []string, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, requestRecord{Capability: capability, PreferredNodes: preferredNodes, Priority: priority})
	return nil
}

// Heartbeat implements Transport: it drains whatever has been queued by
// Allocate/Complete/RequestShutdown since the last heartbeat.
func (f *FakeTransport) Heartbeat(_ context.Context) (HeartbeatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := HeartbeatResponse{
		Allocated:       f.pending,
		Completed:       f.completions,
		ShutdownRequest: f.shutdown,
	}
	f.pending = nil
	f.completions = nil
	return resp, nil
}

// Unregister implements Transport.
func (f *FakeTransport) Unregister(_ context.Context, _ types.FinalStatus, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered = true
	return nil
}

// Allocate queues a new allocation to be delivered on the next heartbeat,
// generating a fresh container-id.
func (f *FakeTransport) Allocate(host string) types.ContainerDescriptor {
	descriptor := types.ContainerDescriptor{
		ContainerID: uuid.NewString(),
		Host:        host,
		Port:        1025,
		NodeID:      host,
		Capability:  f.capability,
	}

	f.mu.Lock()
	f.pending = append(f.pending, descriptor)
	f.mu.Unlock()

	return descriptor
}

// Complete queues a completion to be delivered on the next heartbeat.
func (f *FakeTransport) Complete(containerID string, exitStatus types.ExitStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, types.ContainerCompletion{
		ContainerID: containerID,
		ExitStatus:  exitStatus,
	})
}

// RequestShutdown makes the next heartbeat report a shutdown request.
func (f *FakeTransport) RequestShutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
}

// Requests returns every request issued so far, for assertions.
func (f *FakeTransport) Requests() []requestRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]requestRecord, len(f.requests))
	copy(out, f.requests)
	return out
}

// Unregistered reports whether Unregister has been called.
func (f *FakeTransport) Unregistered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unregistered
}

var _ Transport = (*FakeTransport)(nil)
