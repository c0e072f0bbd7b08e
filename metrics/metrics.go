// Package metrics exposes the engine's Prometheus surface: counters for
// connection-manager transitions and orchestrator actions, and gauges for
// the size of the lifecycle engine's monitored/in-progress sets. This is a
// supplemented feature (spec.md's Non-goals don't mention observability,
// so none of this is excluded, but it also isn't named by the distilled
// spec) carried because the teacher's go.mod depends on
// prometheus/client_golang for its own metrics surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkade-os/go-swap-engine/eventbus"
	"github.com/arkade-os/go-swap-engine/types"
)

// Collectors groups the engine's Prometheus metrics. Register them with a
// *prometheus.Registry at application startup.
type Collectors struct {
	ConnectionTransitions *prometheus.CounterVec
	PollsTotal            prometheus.Counter
	PollFailuresTotal     prometheus.Counter
	ActionsExecuted       *prometheus.CounterVec
	SwapsCompleted        *prometheus.CounterVec
	MonitoredSwaps        prometheus.Gauge
	InProgressSwaps       prometheus.Gauge
}

// NewCollectors constructs the metric set with the given namespace
// (typically "swapengine").
func NewCollectors(namespace string) *Collectors {
	return &Collectors{
		ConnectionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection manager state transitions, by target state.",
		}, []string{"state"}),

		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total poll-all sweeps executed.",
		}),

		PollFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Per-swap poll failures (batch itself does not fail).",
		}),

		ActionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Orchestrator actions executed, by action kind.",
		}, []string{"action"}),

		SwapsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_completed_total",
			Help:      "Swaps reaching a terminal status, by outcome.",
		}, []string{"outcome"}),

		MonitoredSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitored_swaps",
			Help:      "Swaps currently in the engine's monitored set.",
		}),

		InProgressSwaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_progress_swaps",
			Help:      "Swaps currently holding the per-swap orchestration mutex.",
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration (matching prometheus.MustRegister's convention).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.ConnectionTransitions,
		c.PollsTotal,
		c.PollFailuresTotal,
		c.ActionsExecuted,
		c.SwapsCompleted,
		c.MonitoredSwaps,
		c.InProgressSwaps,
	)
}

// ObserveActionExecuted returns an eventbus.ActionExecutedFunc that
// increments ActionsExecuted for every orchestrator action, letting callers
// register metrics collection the same way they register any other
// observer.
func (c *Collectors) ObserveActionExecuted() eventbus.ActionExecutedFunc {
	return func(_ *types.SwapRecord, action eventbus.Action) {
		c.ActionsExecuted.WithLabelValues(string(action)).Inc()
	}
}
