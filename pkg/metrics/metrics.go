package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ContainersRequested counts container requests issued to the resource
	// manager, labeled by whether the request carried a preferred node.
	ContainersRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetmaster_containers_requested_total",
			Help: "Total number of container requests issued to the resource manager",
		},
		[]string{"affinity"},
	)

	ContainersAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetmaster_containers_allocated_total",
			Help: "Total number of containers allocated by the resource manager",
		},
	)

	ContainersCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetmaster_containers_completed_total",
			Help: "Total number of container completions observed, by exit status",
		},
		[]string{"exit_status"},
	)

	RetriesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetmaster_retries_recorded_total",
			Help: "Total number of retry-counter increments recorded",
		},
	)

	IdentitiesRetired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetmaster_identities_retired_total",
			Help: "Total number of identities retired after exceeding the retry cap",
		},
	)

	LaunchPoolQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetmaster_launch_pool_queue_depth",
			Help: "Current number of launch tasks queued for the bounded worker pool",
		},
	)

	RegistrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetmaster_registration_duration_seconds",
			Help:    "Time taken for resource-manager registration to complete",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnregistrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetmaster_unregistration_duration_seconds",
			Help:    "Time taken for resource-manager unregistration to complete",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetmaster_container_start_duration_seconds",
			Help:    "Time taken to build a launch context and dispatch a container start",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetmaster_container_stop_duration_seconds",
			Help:    "Time taken for a node-manager container stop call to return",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ContainersRequested)
	prometheus.MustRegister(ContainersAllocated)
	prometheus.MustRegister(ContainersCompleted)
	prometheus.MustRegister(RetriesRecorded)
	prometheus.MustRegister(IdentitiesRetired)
	prometheus.MustRegister(LaunchPoolQueueDepth)
	prometheus.MustRegister(RegistrationDuration)
	prometheus.MustRegister(UnregistrationDuration)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(ContainerStopDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
