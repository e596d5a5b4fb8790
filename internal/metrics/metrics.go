// Package metrics exposes the restart counts and wall-clock state
// durations that §1 of the supervision contract allows as resource
// accounting. It intentionally stops there: no CPU, memory or other
// per-process resource gauges are exposed.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	spawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procguard",
			Subsystem: "record",
			Name:      "spawns_total",
			Help:      "Number of spawn attempts per record id.",
		}, []string{"id"},
	)
	restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procguard",
			Subsystem: "record",
			Name:      "restarts_total",
			Help:      "Number of restarts per record id.",
		}, []string{"id"},
	)
	stateSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procguard",
			Subsystem: "record",
			Name:      "state_seconds",
			Help:      "Wall-clock seconds spent in the current state.",
		}, []string{"id", "state"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procguard",
			Subsystem: "record",
			Name:      "current_state",
			Help:      "1 for the record's active state, 0 otherwise.",
		}, []string{"id", "state"},
	)
)

// Register registers all collectors with r. Safe to call more than once.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{spawns, restarts, stateSeconds, currentState} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default Prometheus gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncSpawn(id string) {
	if regOK.Load() {
		spawns.WithLabelValues(id).Inc()
	}
}

func IncRestart(id string) {
	if regOK.Load() {
		restarts.WithLabelValues(id).Inc()
	}
}

func SetStateSeconds(id, state string, seconds float64) {
	if regOK.Load() {
		stateSeconds.WithLabelValues(id, state).Set(seconds)
	}
}

func SetCurrentState(id, state string) {
	if regOK.Load() {
		currentState.WithLabelValues(id, state).Set(1)
	}
}
