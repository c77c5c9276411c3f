package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pinkquery"

const (
	subsystemQuery   = "query"
	subsystemWatcher = "watcher"
	subsystemEnclave = "enclave"
)

const (
	LabelOutcome = "outcome"
	LabelState   = "state"
)

// Query outcomes
const (
	OutcomeOk            = "ok"
	OutcomeContractError = "contract_error"
	OutcomeTransport     = "transport_error"
	OutcomeDecryption    = "decryption_error"
	OutcomeDecode        = "decode_error"
	OutcomeRejected      = "rejected"
	OutcomeOther         = "error"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemQuery,
		Name:      "total",
		Help:      "number of confidential queries by outcome",
	}, []string{LabelOutcome})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystemQuery,
		Name:      "duration_seconds",
		Help:      "end-to-end duration of confidential queries",
		Buckets:   prometheus.DefBuckets,
	})

	watcherPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemWatcher,
		Name:      "polls_total",
		Help:      "number of registry polls by watcher state",
	}, []string{LabelState})

	watcherOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemWatcher,
		Name:      "outcomes_total",
		Help:      "number of instantiation watches by terminal state",
	}, []string{LabelState})

	enclaveRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemEnclave,
		Name:      "requests_total",
		Help:      "number of queries handled by the enclave simulator by outcome",
	}, []string{LabelOutcome})
)

// QueryCompleted records one client-side query.
func QueryCompleted(outcome string, duration time.Duration) {
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDuration.Observe(duration.Seconds())
}

// WatcherPolled records one registry poll made in state.
func WatcherPolled(state string) {
	watcherPolls.WithLabelValues(state).Inc()
}

// WatcherFinished records a watch ending in a terminal state.
func WatcherFinished(state string) {
	watcherOutcomes.WithLabelValues(state).Inc()
}

// EnclaveHandled records one query served by the enclave simulator.
func EnclaveHandled(outcome string) {
	enclaveRequests.WithLabelValues(outcome).Inc()
}
