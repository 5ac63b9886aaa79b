package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cubby"

// Tick results.
const (
	TickRan      = "ran"
	TickIdle     = "idle"
	TickConflict = "conflict"
	TickSkipped  = "skipped"
	TickError    = "error"
)

var (
	schedulerTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Scheduler ticks by result",
	}, []string{"result"})

	jobsClaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_claimed_total",
		Help:      "Jobs claimed by this worker",
	}, []string{"kind"})

	jobOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_outcomes_total",
		Help:      "Recorded job outcomes by kind and resulting status",
	}, []string{"kind", "status"})

	assetTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_transitions_total",
		Help:      "Asset status changes written by the finalizer",
	}, []string{"status"})

	jobsReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_reclaimed_total",
		Help:      "Running jobs reclaimed after their heartbeat expired",
	})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent inside stage handlers",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(schedulerTicks)
	prometheus.MustRegister(jobsClaimed)
	prometheus.MustRegister(jobOutcomes)
	prometheus.MustRegister(assetTransitions)
	prometheus.MustRegister(jobsReclaimed)
	prometheus.MustRegister(stageDuration)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTick counts one scheduler tick.
func ObserveTick(result string) {
	schedulerTicks.WithLabelValues(result).Inc()
}

// ObserveClaim counts a successful claim.
func ObserveClaim(kind string) {
	jobsClaimed.WithLabelValues(kind).Inc()
}

// ObserveOutcome records the status a job moved to and how long its handler ran.
func ObserveOutcome(kind, status string, elapsed time.Duration) {
	jobOutcomes.WithLabelValues(kind, status).Inc()
	stageDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveAssetTransition counts a finalizer write.
func ObserveAssetTransition(status string) {
	assetTransitions.WithLabelValues(status).Inc()
}

// ObserveReclaim counts one reclaimed job.
func ObserveReclaim() {
	jobsReclaimed.Inc()
}
