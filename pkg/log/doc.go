/*
Package log provides structured logging for fleetmaster using zerolog.

The package wraps zerolog to give JSON-structured logging with
component-specific child loggers, a configurable level, and small
helpers for the common call sites in a supervisor process: one global
logger, initialized once at process start, passed implicitly rather
than threaded through every constructor.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("supervisor starting")

	rmLog := log.WithComponent("resourcemanager")
	rmLog.Info().Str("container_id", "container_1").Msg("allocation received")

	log.WithIdentity("worker_3").Info().Msg("identity assigned")
	log.WithContainerID("container_7").Error().Err(err).Msg("launch failed")

# Levels

Debug is for development and troubleshooting only; Info is the default
production level; Warn and Error mark conditions worth paging on; Fatal
logs and calls os.Exit(1), reserved for unrecoverable startup failures
(a bad config, a containerd socket that never comes up).

# Design Notes

Global logger over dependency-injected logger: the supervisor,
resourcemanager, and nodemanager packages call log.WithComponent(...)
rather than accepting a *zerolog.Logger in their constructors. This keeps component constructors
small and matches how the supervisor, resourcemanager, and nodemanager
packages are wired together in cmd/fleetmaster.

Context loggers (WithComponent, WithIdentity, WithContainerID) attach a
single field and return a derived zerolog.Logger; callers chain
.With() further for request-scoped fields instead of this package
growing a helper per field name.
*/
package log
