package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/fleetmaster/pkg/clusterfs"
	"github.com/cuemby/fleetmaster/pkg/config"
	"github.com/cuemby/fleetmaster/pkg/credentials"
	"github.com/cuemby/fleetmaster/pkg/launch"
	"github.com/cuemby/fleetmaster/pkg/log"
	"github.com/cuemby/fleetmaster/pkg/metrics"
	"github.com/cuemby/fleetmaster/pkg/nodemanager"
	"github.com/cuemby/fleetmaster/pkg/resourcemanager"
	"github.com/cuemby/fleetmaster/pkg/rpc"
	"github.com/cuemby/fleetmaster/pkg/supervisor"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetmaster",
	Short: "Fleetmaster - a cluster container supervisor",
	Long: `Fleetmaster is the supervisor process a cluster resource manager
launches as the first container of a distributed application: it
registers with the resource manager, requests and launches worker
containers on per-node managers, replaces failed containers, and drives
a coordinated shutdown.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Fleetmaster version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the application master supervisor",
	Long: `Run starts the supervisor: register with the resource manager,
fill the initial fleet of worker containers, and keep it healthy until
the resource manager requests shutdown or the process receives SIGTERM.`,
	RunE: runSupervisor,
}

func init() {
	runCmd.Flags().String("config", "", "Path to YAML config file (required)")
	runCmd.Flags().String("application-name", "", "Application name reported to workers")
	runCmd.Flags().String("process-kind", "worker", "Logical worker-process kind, e.g. \"worker\"")
	runCmd.Flags().String("hostname", "", "Hostname this supervisor registers under (defaults to os.Hostname)")
	runCmd.Flags().String("rm-addr", "127.0.0.1:8032", "Resource manager gRPC address")
	runCmd.Flags().String("containerd-socket", nodemanager.DefaultSocketPath, "containerd socket path")
	runCmd.Flags().String("worker-image", nodemanager.DefaultImage, "Worker container image")
	runCmd.Flags().String("work-dir", ".", "Root directory resolved as the cluster filesystem")
	runCmd.Flags().String("java-home", "/usr/lib/jvm/default", "JAVA_HOME for the worker command line")
	runCmd.Flags().String("worker-class", "", "Fully-qualified worker main class (required)")
	runCmd.Flags().String("worker-classpath", "", "CLASSPATH passed to worker containers")
	runCmd.Flags().String("log-dir", "/var/log/fleetmaster", "Worker stdout/stderr directory")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus metrics listen address")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("worker-class")
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	applicationName, _ := cmd.Flags().GetString("application-name")
	processKind, _ := cmd.Flags().GetString("process-kind")
	hostname, _ := cmd.Flags().GetString("hostname")
	rmAddr, _ := cmd.Flags().GetString("rm-addr")
	containerdSocket, _ := cmd.Flags().GetString("containerd-socket")
	workerImage, _ := cmd.Flags().GetString("worker-image")
	workDir, _ := cmd.Flags().GetString("work-dir")
	javaHome, _ := cmd.Flags().GetString("java-home")
	workerClass, _ := cmd.Flags().GetString("worker-class")
	workerClasspath, _ := cmd.Flags().GetString("worker-classpath")
	logDir, _ := cmd.Flags().GetString("log-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("fleetmaster: resolve hostname: %w", err)
		}
		hostname = h
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("fleetmaster: %w", err)
	}

	fs := clusterfs.NewLocalFileSystem(workDir)

	// Credentials are staged by an external collaborator before launch; an
	// empty bag is still a well-formed Pack input.
	credentialBag := credentials.NewBag()

	launchBuilder := launch.NewBuilder(launch.Config{
		ApplicationName: applicationName,
		ProcessKind:     processKind,
		WorkerClass:     workerClass,
		WorkerClasspath: workerClasspath,
		ExtraJVMArgs:    cfg.ContainerJVMArgs,
		RemoteFiles:     cfg.RemoteFiles(),
		LogDir:          logDir,
		JavaHome:        javaHome,
		SecurityEnabled: false,
	}, fs, credentialBag)

	rmConn, err := rpc.Dial(rmAddr)
	if err != nil {
		metrics.RegisterComponent("resourcemanager", false, err.Error())
		return fmt.Errorf("fleetmaster: dial resource manager: %w", err)
	}
	defer rmConn.Close()
	rmTransport := resourcemanager.NewGRPCTransport(rmConn)
	metrics.RegisterComponent("resourcemanager", true, "")

	runtime, err := nodemanager.NewContainerdRuntime(containerdSocket, workerImage)
	if err != nil {
		metrics.RegisterComponent("nodemanager", false, err.Error())
		return fmt.Errorf("fleetmaster: connect to containerd: %w", err)
	}
	defer runtime.Close()
	metrics.RegisterComponent("nodemanager", true, "")

	sup := supervisor.New(supervisor.Config{
		ApplicationName:     applicationName,
		ProcessKind:         processKind,
		Hostname:            hostname,
		InitialContainers:   cfg.InitialContainers,
		ContainerMemoryMBs:  cfg.ContainerMemoryMBs,
		ContainerCores:      cfg.ContainerCores,
		HostAffinityEnabled: cfg.ContainerHostAffinityEnabled,
		SecurityEnabled:     false,
	}, rmTransport, runtime, launchBuilder, credentialBag)

	if cfg.HelixInstanceMaxRetries > 0 {
		sup.SetMaxRetries(cfg.HelixInstanceMaxRetries)
	}

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("fleetmaster: start: %w", err)
	}
	log.Logger.Info().
		Str("application_name", applicationName).
		Int("initial_containers", cfg.InitialContainers).
		Msg("supervisor running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Logger.Info().Msg("received shutdown signal")
	sup.Stop(context.Background(), "KILLED", "shutdown signal received")

	return nil
}
