package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AttemptCounter counts finished update attempts by engine and outcome.
	AttemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "attempts",
			Help:      "Counter of update attempts by engine and outcome",
		}, []string{"engine", "outcome"})

	// ConflictCounter counts version conflicts seen by the optimistic path.
	ConflictCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "version_conflicts",
			Help:      "Counter of optimistic version conflicts",
		})

	// RetryCounter counts optimistic retries after a conflict.
	RetryCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "engine",
			Name:      "retries",
			Help:      "Counter of optimistic retries",
		})

	// LockWaitHistogram records time spent queued for an exclusive record lock.
	LockWaitHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Bucketed histogram of exclusive lock wait time",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.0, 13),
		})

	// CommitCounter counts committed writes by write path.
	CommitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "store",
			Name:      "commits",
			Help:      "Counter of committed writes by path",
		}, []string{"path"})
)

func init() {
	prometheus.MustRegister(AttemptCounter)
	prometheus.MustRegister(ConflictCounter)
	prometheus.MustRegister(RetryCounter)
	prometheus.MustRegister(LockWaitHistogram)
	prometheus.MustRegister(CommitCounter)
}
