package nodemanager

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"

	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace fleetmaster's worker
	// containers run in.
	DefaultNamespace = "fleetmaster"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultImage is the worker container image launched for every
	// granted container, configured once per application.
	DefaultImage = "fleetmaster/worker:latest"
)

// ContainerdRuntime is the reference Node-Manager backend: it actually
// creates, starts, stops, and queries OCI containers via containerd for
// the worker process a launch context describes.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	image     string
}

// NewContainerdRuntime connects to the containerd socket at socketPath
// (DefaultSocketPath if empty).
func NewContainerdRuntime(socketPath, image string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if image == "" {
		image = DefaultImage
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("nodemanager: connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
		image:     image,
	}, nil
}

// Close closes the containerd client connection.
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls the worker image from a registry.
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	if _, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack); err != nil {
		return fmt.Errorf("nodemanager: pull image %s: %w", imageRef, err)
	}
	return nil
}

// Start pulls the worker image if needed, creates the OCI container sized
// to the descriptor's granted capability, and starts the task running the
// command line the launch context describes.
func (r *ContainerdRuntime) Start(ctx context.Context, descriptor types.ContainerDescriptor, launchCtx *launch.Context) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, r.image)
	if err != nil {
		image, err = r.client.Pull(ctx, r.image, containerd.WithPullUnpack)
		if err != nil {
			return fmt.Errorf("nodemanager: pull image %s: %w", r.image, err)
		}
	}

	env := make([]string, 0, len(launchCtx.Env))
	for k, v := range launchCtx.Env {
		env = append(env, k+"="+v)
	}

	args := append([]string{launchCtx.Command}, launchCtx.Args...)

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithProcessArgs(args...),
	}

	if descriptor.Capability.VCores > 0 {
		shares := uint64(descriptor.Capability.VCores * 1024)
		quota := int64(descriptor.Capability.VCores) * 100000
		period := uint64(100000)
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, period))
	}
	if descriptor.Capability.MemoryMB > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(descriptor.Capability.MemoryMB)*1024*1024))
	}

	ctrdContainer, err := r.client.NewContainer(
		ctx,
		descriptor.ContainerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(descriptor.ContainerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return fmt.Errorf("nodemanager: create container: %w", err)
	}

	task, err := ctrdContainer.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("nodemanager: create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("nodemanager: start task: %w", err)
	}

	return nil
}

// Stop gracefully stops a running container: SIGTERM, wait up to timeout,
// then SIGKILL, then delete the task.
func (r *ContainerdRuntime) Stop(ctx context.Context, descriptor types.ContainerDescriptor, timeout time.Duration) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, descriptor.ContainerID)
	if err != nil {
		// Container already gone; nothing to stop.
		return nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// No task means the container never started, or already exited.
		return r.deleteLoaded(ctx, container)
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("nodemanager: SIGTERM task: %w", err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("nodemanager: wait task: %w", err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("nodemanager: SIGKILL task: %w", err)
		}
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("nodemanager: delete task: %w", err)
	}

	return r.deleteLoaded(ctx, container)
}

func (r *ContainerdRuntime) deleteLoaded(ctx context.Context, container containerd.Container) error {
	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("nodemanager: delete container: %w", err)
	}
	return nil
}

// Status returns the container's current state, mapped from containerd's
// task status, plus an exit status classification and exit code when
// terminal.
func (r *ContainerdRuntime) Status(ctx context.Context, descriptor types.ContainerDescriptor) (types.ContainerState, types.ExitStatus, int, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, descriptor.ContainerID)
	if err != nil {
		return types.ContainerStateFailed, types.ExitStatusOther, 0, fmt.Errorf("nodemanager: load container: %w", err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return types.ContainerStateNew, types.ExitStatusOther, 0, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return types.ContainerStateFailed, types.ExitStatusOther, 0, fmt.Errorf("nodemanager: task status: %w", err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused:
		return types.ContainerStateRunning, types.ExitStatusOther, 0, nil
	case containerd.Stopped:
		if status.ExitStatus == 0 {
			return types.ContainerStateComplete, types.ExitStatusSuccess, int(status.ExitStatus), nil
		}
		return types.ContainerStateFailed, types.ExitStatusOther, int(status.ExitStatus), nil
	default:
		return types.ContainerStateNew, types.ExitStatusOther, 0, nil
	}
}

var _ Runtime = (*ContainerdRuntime)(nil)
