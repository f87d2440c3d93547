// Package metrics exposes Prometheus metrics for the valve service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic_valve"

// Update results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
)

// Metrics holds the service collectors and the registry they are exposed on.
// Recording on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	commands *prometheus.CounterVec
	updates  *prometheus.CounterVec
	connects prometheus.Counter
	state    *prometheus.GaugeVec
	position prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and build info collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands decoded from the command topic, by kind.",
		}, []string{"kind"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "State and position updates, by operation and result.",
		}, []string{"op", "result"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_connects_total",
			Help:      "Completed MQTT connection sequences.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current valve state, 0 otherwise.",
		}, []string{"unique_id", "state"}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position",
			Help:      "Last reported valve position.",
		}),
	}

	m.registry.MustRegister(collectors.NewBuildInfoCollector())
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(m.commands, m.updates, m.connects, m.state, m.position)

	return m
}

// CommandReceived counts a decoded command.
func (m *Metrics) CommandReceived(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

// UpdateFinished counts an update attempt. A nil error counts as ok.
func (m *Metrics) UpdateFinished(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultRejected
	}
	m.updates.WithLabelValues(op, result).Inc()
}

// Connected counts a completed connection sequence.
func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

// SetState marks current as the active state of the valve.
func (m *Metrics) SetState(uniqueID, current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(uniqueID, s).Set(v)
	}
}

// SetPosition records the last reported position.
func (m *Metrics) SetPosition(position int16) {
	if m == nil {
		return
	}
	m.position.Set(float64(position))
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
