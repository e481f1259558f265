/*
Package metrics exposes fleetmaster's Prometheus instrumentation and a
small HTTP health surface, served from the same process as the
supervisor.

# Metrics

A fixed set of package-level collectors, registered at init time and
updated directly from the call sites that observe the events they
count — there is no background polling collector, since a single
application-master process has nothing to poll but itself:

  - fleetmaster_containers_requested_total (by affinity)
  - fleetmaster_containers_allocated_total
  - fleetmaster_containers_completed_total (by exit_status)
  - fleetmaster_retries_recorded_total
  - fleetmaster_identities_retired_total
  - fleetmaster_launch_pool_queue_depth
  - fleetmaster_registration_duration_seconds
  - fleetmaster_unregistration_duration_seconds
  - fleetmaster_container_start_duration_seconds
  - fleetmaster_container_stop_duration_seconds

Handler returns the promhttp handler to mount at /metrics.

# Health

RegisterComponent/UpdateComponent record whether a named component
(resourcemanager, nodemanager) is currently healthy; HealthHandler,
ReadyHandler, and LivenessHandler expose /health, /ready, and /live
endpoints over that state. Readiness additionally requires both
resourcemanager and nodemanager to have reported in — fleetmaster
isn't ready to serve until it can talk to both.

# Usage

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

	metrics.RegisterComponent("resourcemanager", true, "")
	metrics.ContainersRequested.WithLabelValues("host").Inc()

	timer := metrics.NewTimer()
	// ... do the work ...
	timer.ObserveDuration(metrics.RegistrationDuration)
*/
package metrics
