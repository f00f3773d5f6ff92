// Package metrics exports controller activity in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
)

const namespace = "lightnode"

// Exporter keeps Prometheus series in step with bus events.
type Exporter struct {
	registry *prometheus.Registry
	handler  http.Handler

	mode         *prometheus.GaugeVec
	output       *prometheus.GaugeVec
	transitions  *prometheus.CounterVec
	outputWrites prometheus.Counter
	duration     *prometheus.GaugeVec
	presets      prometheus.Gauge
	presetEvents *prometheus.CounterVec
}

// New creates an exporter on its own registry, so several can coexist in
// tests. The registry also carries the Go and process collectors.
func New() *Exporter {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	e := &Exporter{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),

		mode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "mode",
			Help:      "1 for the active mode, 0 for every other mode",
		}, []string{"mode"}),

		output: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "output",
			Help:      "Last level written to each colour (1 = HIGH)",
		}, []string{"color"}),

		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "transitions_total",
			Help:      "Mode transitions by target mode",
		}, []string{"mode"}),

		outputWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "output_changes_total",
			Help:      "Output level changes",
		}),

		duration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "light",
			Name:      "duration_seconds",
			Help:      "Live timing per phase",
		}, []string{"phase"}),

		presets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presets",
			Name:      "count",
			Help:      "Number of stored presets",
		}),

		presetEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presets",
			Name:      "changes_total",
			Help:      "Preset store changes by action",
		}, []string{"action"}),
	}

	for _, m := range light.AllModes() {
		e.mode.WithLabelValues(m.String()).Set(0)
	}
	return e
}

// Handler serves the exposition format.
func (e *Exporter) Handler() http.Handler {
	return e.handler
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Seed sets the gauges from a snapshot taken before the exporter subscribed.
func (e *Exporter) Seed(state light.State, presetCount int) {
	e.setMode(state.Mode.String())
	e.setOutputs(state.Outputs.Map())
	e.setDurations(state.Durations.Event())
	e.presets.Set(float64(presetCount))
}

// Subscribe attaches the exporter to bus and returns the unsubscribe func.
func (e *Exporter) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(ev events.ModeChangedEvent) {
			e.transitions.WithLabelValues(ev.Mode).Inc()
			e.setMode(ev.Mode)
			e.setOutputs(ev.Outputs)
		}),
		bus.Subscribe(func(ev events.OutputChangedEvent) {
			e.outputWrites.Inc()
			e.setOutputs(ev.Outputs)
		}),
		bus.Subscribe(func(ev events.DurationsChangedEvent) {
			e.setDurations(ev.Durations)
		}),
		bus.Subscribe(func(ev events.PresetsChangedEvent) {
			e.presetEvents.WithLabelValues(ev.Action).Inc()
			e.presets.Set(float64(len(ev.Presets)))
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (e *Exporter) setMode(active string) {
	for _, m := range light.AllModes() {
		v := 0.0
		if m.String() == active {
			v = 1
		}
		e.mode.WithLabelValues(m.String()).Set(v)
	}
}

func (e *Exporter) setOutputs(outputs events.Outputs) {
	for color, high := range outputs {
		v := 0.0
		if high {
			v = 1
		}
		e.output.WithLabelValues(color).Set(v)
	}
}

func (e *Exporter) setDurations(d events.Durations) {
	e.duration.WithLabelValues("red").Set(d.Red)
	e.duration.WithLabelValues("yellow").Set(d.Yellow)
	e.duration.WithLabelValues("green").Set(d.Green)
	e.duration.WithLabelValues("flash").Set(d.Flash)
}
