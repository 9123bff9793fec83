package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels cycles that completed and persisted a run.
	OutcomeSuccess = "success"
	// OutcomeError labels cycles aborted by an unexpected failure.
	OutcomeError = "error"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Name:      "cycles_total",
			Help:      "Total number of diagnostic cycles run, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "netpulse",
			Name:      "cycle_seconds",
			Help:      "Duration of a full diagnostic cycle in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60},
		},
	)

	probeDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netpulse",
			Name:      "probe_seconds",
			Help:      "Duration of individual probes by diagnostic layer.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"layer", "result"},
	)

	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Name:      "events_emitted_total",
			Help:      "Events emitted by the detector, partitioned by type.",
		},
		[]string{"type"},
	)

	probeLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "netpulse",
			Name:      "probe_latency_seconds",
			Help:      "Rolling probe latency over recent cycles, partitioned by statistic.",
		},
		[]string{"stat"},
	)

	networkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "netpulse",
			Name:      "network_state",
			Help:      "Current coarse state per network: 0=DOWN 1=RECOVERING 2=DEGRADED 3=UP.",
		},
		[]string{"network_id"},
	)
)

// Register attaches netpulse collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		probeDurationSeconds,
		eventsEmitted,
		probeLatency,
		networkState,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records a cycle duration and outcome label.
func ObserveCycle(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	cyclesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveProbe records a single probe duration by layer.
func ObserveProbe(layer string, duration time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	if duration < 0 {
		duration = 0
	}
	probeDurationSeconds.WithLabelValues(layer, result).Observe(duration.Seconds())
}

// SetLatencySummary exports rolling latency aggregates from the monitor's
// sample window.
func SetLatencySummary(avg, p95 time.Duration) {
	probeLatency.WithLabelValues("avg").Set(avg.Seconds())
	probeLatency.WithLabelValues("p95").Set(p95.Seconds())
}

// CountEvent increments the emitted-event counter for an event type.
func CountEvent(eventType string) {
	eventsEmitted.WithLabelValues(eventType).Inc()
}

// SetNetworkState exports the current state of a network as a gauge.
func SetNetworkState(networkID, state string) {
	var v float64
	switch state {
	case "UP":
		v = 3
	case "DEGRADED":
		v = 2
	case "RECOVERING":
		v = 1
	default:
		v = 0
	}
	networkState.WithLabelValues(networkID).Set(v)
}
