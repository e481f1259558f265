// Package launch implements the Launch-Context Builder (C3): it turns a
// container descriptor and a bound identity into a launch context the
// node-manager client can use to start the worker process.
package launch

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuemby/fleetmaster/pkg/clusterfs"
	"github.com/cuemby/fleetmaster/pkg/credentials"
	"github.com/cuemby/fleetmaster/pkg/types"
)

// LocalResource is one entry in the launch context's local-resource map:
// a name the worker process can reference, resolved against the cluster
// filesystem.
type LocalResource struct {
	Name string
	Path string
}

// Context is everything the node-manager client needs to start one
// container's worker process.
type Context struct {
	LocalResources []LocalResource
	Env            map[string]string
	Command        string
	Args           []string
	Credentials    *bytes.Reader
}

// Config holds the operator-supplied settings that influence every launch
// context.
type Config struct {
	ApplicationName string
	ProcessKind     string
	WorkerClass     string
	WorkerClasspath string
	ExtraJVMArgs    string
	RemoteFiles     []string
	LogDir          string
	JavaHome        string
	SecurityEnabled bool
}

// Builder builds launch contexts against a cluster filesystem.
type Builder struct {
	cfg Config
	fs  clusterfs.FileSystem
	cb  *credentials.Bag
}

// NewBuilder creates a Builder. cb may be nil when security is disabled.
func NewBuilder(cfg Config, fs clusterfs.FileSystem, cb *credentials.Bag) *Builder {
	return &Builder{cfg: cfg, fs: fs, cb: cb}
}

// amRMTokenKind is the delegation-token kind that must never reach a
// worker container.
const amRMTokenKind = credentials.TokenKind("AM_RM_TOKEN")

// Build constructs the launch context for a container bound to identity,
// sizing the JVM heap to the container's granted (not requested)
// capability.
func (b *Builder) Build(descriptor types.ContainerDescriptor, identity types.Identity) (*Context, error) {
	// The work directory is staged by an external collaborator (file
	// staging is out of scope here); Exists is only consulted by callers
	// that want to fail fast before Resolve.
	workDir := fmt.Sprintf("appcache/%s", identity)

	resources := []LocalResource{}
	resolved, err := b.fs.Resolve(workDir)
	if err != nil {
		return nil, fmt.Errorf("launch: resolve %s: %w", workDir, err)
	}
	resources = append(resources, LocalResource{Name: "app.jar", Path: resolved})

	for _, remote := range b.cfg.RemoteFiles {
		name := filepath.Base(remote)
		resources = append(resources, LocalResource{Name: name, Path: remote})
	}

	env := map[string]string{
		"CLASSPATH": b.cfg.WorkerClasspath,
		"PATH":      "$PATH:$JAVA_HOME/bin",
	}

	stdout := fmt.Sprintf("%s/%s.stdout", b.cfg.LogDir, b.cfg.ProcessKind)
	stderr := fmt.Sprintf("%s/%s.stderr", b.cfg.LogDir, b.cfg.ProcessKind)

	args := []string{
		fmt.Sprintf("-Xmx%dM", descriptor.Capability.MemoryMB),
	}
	if b.cfg.ExtraJVMArgs != "" {
		args = append(args, strings.Fields(b.cfg.ExtraJVMArgs)...)
	}
	args = append(args,
		b.cfg.WorkerClass,
		"--application-name", b.cfg.ApplicationName,
		"--helix-instance-name", string(identity),
		"1>"+stdout,
		"2>"+stderr,
	)

	ctx := &Context{
		LocalResources: resources,
		Env:            env,
		Command:        fmt.Sprintf("%s/bin/java", b.cfg.JavaHome),
		Args:           args,
	}

	if b.cfg.SecurityEnabled && b.cb != nil {
		blob, err := credentials.Pack(b.cb, amRMTokenKind)
		if err != nil {
			return nil, fmt.Errorf("launch: pack credentials: %w", err)
		}
		ctx.Credentials = blob.Duplicate()
	}

	return ctx, nil
}

// CommandLine renders the full command line for logging and tests.
func (c *Context) CommandLine() string {
	return c.Command + " " + strings.Join(c.Args, " ")
}
