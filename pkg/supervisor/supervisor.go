// Package supervisor implements the Container Supervisor (C5): the
// top-level state machine that drives registration, initial fill, handles
// allocation/completion events, issues replacement requests, and
// coordinates graceful shutdown.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/fleetmaster/pkg/credentials"
	"github.com/cuemby/fleetmaster/pkg/events"
	"github.com/cuemby/fleetmaster/pkg/identity"
	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/log"
	"github.com/cuemby/fleetmaster/pkg/metrics"
	"github.com/cuemby/fleetmaster/pkg/nodemanager"
	"github.com/cuemby/fleetmaster/pkg/resourcemanager"
	"github.com/cuemby/fleetmaster/pkg/types"
	"github.com/rs/zerolog"
)

// Phase is the supervisor's own lifecycle phase.
type Phase string

const (
	PhaseInit        Phase = "init"
	PhaseRegistering Phase = "registering"
	PhaseFilling     Phase = "filling"
	PhaseRunning     Phase = "running"
	PhaseStopping    Phase = "stopping"
	PhaseStopped     Phase = "stopped"
)

// LaunchPoolSize is the bounded worker-pool size for dispatching container
// starts.
const LaunchPoolSize = 10

// ShutdownTimeout is the bound on waiting for the container record to drain
// during a graceful stop.
const ShutdownTimeout = 5 * time.Minute

// record is the container-record value: a container descriptor paired
// with the identity bound to it.
type record struct {
	descriptor types.ContainerDescriptor
	identity   types.Identity
}

// Config holds the operator-supplied settings that configure a Supervisor.
type Config struct {
	ApplicationName         string
	ProcessKind             string
	Hostname                string
	InitialContainers       int
	ContainerMemoryMBs      int
	ContainerCores          int
	HostAffinityEnabled     bool
	SecurityEnabled         bool
}

// Supervisor is the core orchestrator (C5).
type Supervisor struct {
	cfg Config

	bus             *events.Bus
	rmClient        *resourcemanager.Client
	nmClient        *nodemanager.Client
	identities      *identity.Registry
	launchBuilder   *launch.Builder
	credentialBag   *credentials.Bag
	logger          zerolog.Logger

	phaseMu sync.RWMutex
	phase   Phase

	capMu sync.RWMutex
	capSnapshot *types.Capability

	recordMu sync.Mutex
	cond     *sync.Cond
	records  map[string]record

	launchPool chan func()
	poolWG     sync.WaitGroup
	poolOnce   sync.Once
}

// New creates a Supervisor. rmTransport backs the resource-manager client;
// runtime backs the node-manager client.
func New(cfg Config, rmTransport resourcemanager.Transport, runtime nodemanager.Runtime, launchBuilder *launch.Builder, credentialBag *credentials.Bag) *Supervisor {
	s := &Supervisor{
		cfg:           cfg,
		bus:           events.NewBus(),
		identities:    identity.New(cfg.ProcessKind, 0),
		launchBuilder: launchBuilder,
		credentialBag: credentialBag,
		logger:        log.WithComponent("supervisor"),
		phase:         PhaseInit,
		records:       make(map[string]record),
		launchPool:    make(chan func(), LaunchPoolSize*4),
	}
	s.cond = sync.NewCond(&s.recordMu)

	s.rmClient = resourcemanager.New(rmTransport, resourcemanager.Callbacks{
		OnAllocated:         s.handleAllocated,
		OnCompleted:         s.handleRMCompleted,
		OnShutdownRequested: s.handleShutdownRequested,
		OnTransportError:    s.handleTransportError,
	})

	s.nmClient = nodemanager.New(runtime, nodemanager.Callbacks{
		OnStartError: s.handleStartError,
		OnCompleted:  s.handleNMCompleted,
	})

	s.bus.OnNewContainerRequest(s.onNewContainerRequest)
	s.bus.OnContainerShutdownRequest(s.onContainerShutdownRequest)
	s.bus.OnApplicationMasterShutdownRequest(s.onApplicationMasterShutdownRequest)

	return s
}

// SetMaxRetries overrides the identity registry's retry cap (0 disables
// it). Must be called before Start.
func (s *Supervisor) SetMaxRetries(maxRetries int) {
	s.identities = identity.New(s.cfg.ProcessKind, maxRetries)
}

func (s *Supervisor) setPhase(p Phase) {
	s.phaseMu.Lock()
	defer s.phaseMu.Unlock()
	s.phase = p
}

// Phase returns the supervisor's current lifecycle phase.
func (s *Supervisor) Phase() Phase {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.phase
}

// Start runs Init→Registering→Filling synchronously: it subscribes to the
// bus (already done in New), starts the launch pool and C1 (the C2 client
// has no start step; it polls per container), registers with the resource
// manager, stores the capability snapshot, then issues the configured
// initial fleet size worth of requests with no preferred node.
func (s *Supervisor) Start(ctx context.Context) error {
	s.startLaunchPool()

	s.setPhase(PhaseRegistering)
	s.rmClient.Start()

	timer := metrics.NewTimer()
	capSnapshot, err := s.rmClient.Register(ctx, s.cfg.Hostname)
	timer.ObserveDuration(metrics.RegistrationDuration)
	if err != nil {
		return fmt.Errorf("supervisor: registration failed: %w", err)
	}

	s.capMu.Lock()
	s.capSnapshot = &capSnapshot
	s.capMu.Unlock()

	s.setPhase(PhaseFilling)
	for i := 0; i < s.cfg.InitialContainers; i++ {
		s.issueRequest(nil)
	}
	s.setPhase(PhaseRunning)

	return nil
}

func (s *Supervisor) startLaunchPool() {
	s.poolOnce.Do(func() {
		for i := 0; i < LaunchPoolSize; i++ {
			s.poolWG.Add(1)
			go s.launchWorker()
		}
	})
}

func (s *Supervisor) launchWorker() {
	defer s.poolWG.Done()
	for task := range s.launchPool {
		metrics.LaunchPoolQueueDepth.Dec()
		task()
	}
}

func (s *Supervisor) submitLaunch(task func()) {
	metrics.LaunchPoolQueueDepth.Inc()
	s.launchPool <- task
}

// issueRequest drops the request if the capability snapshot is not yet
// known, otherwise clamps it to that snapshot and issues it with priority 0.
func (s *Supervisor) issueRequest(preferredHost *string) {
	if phase := s.Phase(); phase == PhaseStopping || phase == PhaseStopped {
		s.logger.Debug().Msg("dropping container request: supervisor is stopping")
		return
	}

	s.capMu.RLock()
	capSnapshot := s.capSnapshot
	s.capMu.RUnlock()

	if capSnapshot == nil {
		s.logger.Error().Msg("dropping container request: capability snapshot not yet known")
		return
	}

	requested := types.Capability{MemoryMB: s.cfg.ContainerMemoryMBs, VCores: s.cfg.ContainerCores}
	clamped := requested.Clamp(*capSnapshot)

	var preferred []string
	affinityLabel := "none"
	if preferredHost != nil {
		preferred = []string{*preferredHost}
		affinityLabel = "host"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.rmClient.Request(ctx, clamped, preferred, 0); err != nil {
		s.logger.Error().Err(err).Msg("container request failed")
		return
	}
	metrics.ContainersRequested.WithLabelValues(affinityLabel).Inc()
}

// handleAllocated binds an identity to the newly allocated container,
// inserts the record before dispatching the async start, and submits the
// start to the bounded launch pool.
func (s *Supervisor) handleAllocated(descriptor types.ContainerDescriptor) {
	metrics.ContainersAllocated.Inc()

	id := s.identities.Acquire()

	s.recordMu.Lock()
	s.records[descriptor.ContainerID] = record{descriptor: descriptor, identity: id}
	s.recordMu.Unlock()

	s.submitLaunch(func() {
		s.launchAndStart(descriptor, id)
	})
}

func (s *Supervisor) launchAndStart(descriptor types.ContainerDescriptor, id types.Identity) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ContainerStartDuration)

	launchCtx, err := s.launchBuilder.Build(descriptor, id)
	if err != nil {
		s.logger.Error().Err(err).Str("container_id", descriptor.ContainerID).Msg("failed to build launch context")
		s.handleStartError(descriptor.ContainerID, err)
		return
	}

	s.nmClient.Start(descriptor, launchCtx)
}

func (s *Supervisor) handleStartError(containerID string, err error) {
	s.logger.Error().Err(err).Str("container_id", containerID).Msg("container start error")
	s.removeRecord(containerID)
}

// handleRMCompleted is the resource-manager completion path.
func (s *Supervisor) handleRMCompleted(completion types.ContainerCompletion) {
	s.handleCompletion(completion)
}

// handleNMCompleted is the node-manager status=COMPLETE path. It drives the
// exact same handler as the RM path; the container-record removal makes
// whichever path arrives second a no-op.
func (s *Supervisor) handleNMCompleted(completion types.ContainerCompletion) {
	s.handleCompletion(completion)
}

// handleCompletion is the single completion handler both the RM and NM
// paths funnel into. Removal of the record is the idempotence guard: if
// both paths race to call this for the same container-id, only the first
// finds an entry.
func (s *Supervisor) handleCompletion(completion types.ContainerCompletion) {
	rec, ok := s.removeRecord(completion.ContainerID)
	if !ok {
		// Second observer of this container's completion: no-op.
		return
	}

	metrics.ContainersCompleted.WithLabelValues(string(completion.ExitStatus)).Inc()

	count := s.identities.IncrementRetry(rec.identity)
	metrics.RetriesRecorded.Inc()

	if s.identities.ExceedsCap(count) {
		s.identities.Retire(rec.identity)
		metrics.IdentitiesRetired.Inc()
		s.logger.Warn().
			Str("identity", string(rec.identity)).
			Int("retry_count", count).
			Msg("identity retired: retry cap exceeded, no replacement requested")
		return
	}

	s.identities.Release(rec.identity)

	// Host-affinity rule: DISKS_FAILED/ABORTED are treated as node
	// failures, never stick to the node; any other exit status sticks iff
	// host affinity is enabled. ReplacedContainer is set only when the
	// resulting request should carry a preferred node.
	evt := events.NewContainerRequest{}
	if !completion.ExitStatus.NodeAttributable() && s.cfg.HostAffinityEnabled {
		replaced := rec.descriptor
		evt.ReplacedContainer = &replaced
	}

	s.bus.PublishNewContainerRequest(evt)
}

func (s *Supervisor) removeRecord(containerID string) (record, bool) {
	s.recordMu.Lock()
	rec, ok := s.records[containerID]
	if ok {
		delete(s.records, containerID)
	}
	empty := len(s.records) == 0
	s.recordMu.Unlock()

	if ok && empty {
		s.phaseMu.RLock()
		stopping := s.phase == PhaseStopping
		s.phaseMu.RUnlock()
		if stopping {
			s.recordMu.Lock()
			s.cond.Broadcast()
			s.recordMu.Unlock()
		}
	}

	return rec, ok
}

// onNewContainerRequest issues the RM request. ReplacedContainer is only
// set by the publisher (handleCompletion) when the host-affinity rule
// decided the replacement should stick to the same node.
func (s *Supervisor) onNewContainerRequest(evt events.NewContainerRequest) {
	var preferredHost *string
	if evt.ReplacedContainer != nil && evt.ReplacedContainer.Host != "" {
		host := evt.ReplacedContainer.Host
		preferredHost = &host
	}
	s.issueRequest(preferredHost)
}

func (s *Supervisor) onContainerShutdownRequest(evt events.ContainerShutdownRequest) {
	for _, d := range evt.Containers {
		timer := metrics.NewTimer()
		s.nmClient.Stop(d, 30*time.Second)
		timer.ObserveDuration(metrics.ContainerStopDuration)
	}
}

func (s *Supervisor) onApplicationMasterShutdownRequest(_ events.ApplicationMasterShutdownRequest) {
	go s.Stop(context.Background(), types.FinalStatusSucceeded, "resource manager requested shutdown")
}

func (s *Supervisor) handleShutdownRequested() {
	s.bus.PublishApplicationMasterShutdownRequest(events.ApplicationMasterShutdownRequest{})
}

func (s *Supervisor) handleTransportError(err error) {
	s.logger.Error().Err(err).Msg("resource-manager transport error")
	s.bus.PublishApplicationMasterShutdownRequest(events.ApplicationMasterShutdownRequest{})
}

// Stop drives Running→Stopping→Stopped: refuses new requests (issueRequest
// checks the phase and drops any request once stopping has begun),
// issues stop to every container currently in the record, waits on the
// shutdown latch up to ShutdownTimeout, then unregisters regardless of
// residual records.
func (s *Supervisor) Stop(ctx context.Context, finalStatus types.FinalStatus, diagnostics string) {
	s.phaseMu.Lock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		s.phaseMu.Unlock()
		return
	}
	s.phase = PhaseStopping
	s.phaseMu.Unlock()

	s.recordMu.Lock()
	descriptors := make([]types.ContainerDescriptor, 0, len(s.records))
	for _, rec := range s.records {
		descriptors = append(descriptors, rec.descriptor)
	}
	s.recordMu.Unlock()

	s.bus.PublishContainerShutdownRequest(events.ContainerShutdownRequest{Containers: descriptors})

	s.waitForDrainOrTimeout()

	timer := metrics.NewTimer()
	s.rmClient.Unregister(ctx, finalStatus, diagnostics, "")
	timer.ObserveDuration(metrics.UnregistrationDuration)

	s.rmClient.Stop()
	s.nmClient.StopAll()
	close(s.launchPool)
	s.poolWG.Wait()

	s.setPhase(PhaseStopped)
}

// waitForDrainOrTimeout blocks on the shutdown latch until the container
// record is empty or ShutdownTimeout elapses, whichever comes first.
func (s *Supervisor) waitForDrainOrTimeout() {
	done := make(chan struct{})

	go func() {
		s.recordMu.Lock()
		for len(s.records) > 0 {
			s.cond.Wait()
		}
		s.recordMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.logger.Warn().Msg("shutdown latch timed out, proceeding with unregister")
		s.recordMu.Lock()
		s.cond.Broadcast()
		s.recordMu.Unlock()
	}
}

// ContainerCount returns the number of containers currently in the record,
// for tests and monitoring.
func (s *Supervisor) ContainerCount() int {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	return len(s.records)
}
