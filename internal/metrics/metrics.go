// Package metrics exports recognition counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/nritya/internal/engine"
	"github.com/ayusman/nritya/internal/gesture"
	"github.com/ayusman/nritya/internal/skeleton"
)

const namespace = "nritya"

// Metrics holds the collectors fed by one engine.
type Metrics struct {
	registry *prometheus.Registry

	frames        prometheus.Counter
	framesDropped prometheus.Counter
	completions   *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	players       prometheus.Gauge
	pluginErrors  *prometheus.CounterVec
}

// New creates the collectors on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Skeleton frames processed by the engine.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Skeleton frames discarded because the frame queue was full.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gesture_completions_total",
			Help:      "Completed gestures.",
		}, []string{"gesture"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gesture_outcomes_total",
			Help:      "Attempt transitions by gesture and outcome.",
		}, []string{"gesture", "outcome"}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_active",
			Help:      "Players with a live session, including inactive ones inside the grace window.",
		}),
		pluginErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_errors_total",
			Help:      "Failed plugin runs by plugin.",
		}, []string{"plugin"}),
	}

	m.registry.MustRegister(
		m.frames,
		m.framesDropped,
		m.completions,
		m.outcomes,
		m.players,
		m.pluginErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Subscribe feeds the collectors from an engine's events.
func (m *Metrics) Subscribe(d *engine.Dispatcher) {
	d.OnFrame(func() {
		m.frames.Inc()
	})
	d.OnUpdate(func(_ skeleton.PlayerID, name string) {
		m.completions.WithLabelValues(name).Inc()
	})
	d.OnProcessing(func(ev engine.ProcessingEvent) {
		if ev.Outcome == gesture.OutcomeNone {
			return
		}
		m.outcomes.WithLabelValues(ev.Gesture, ev.Outcome.String()).Inc()
	})
	d.OnPlayer(func(_ skeleton.PlayerID, action engine.PlayerAction) {
		switch action {
		case engine.PlayerJoined:
			m.players.Inc()
		case engine.PlayerLeft:
			m.players.Dec()
		}
	})
}

// FrameDropped counts a frame discarded by the queue.
func (m *Metrics) FrameDropped() {
	m.framesDropped.Inc()
}

// PluginError counts a failed plugin run.
func (m *Metrics) PluginError(plugin string) {
	m.pluginErrors.WithLabelValues(plugin).Inc()
}

// ResetPlayers zeroes the active player gauge. Stopping recognition
// discards every session without Left events.
func (m *Metrics) ResetPlayers() {
	m.players.Set(0)
}
