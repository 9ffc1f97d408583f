// Package metrics provides Prometheus metrics for a corkboard server.
package metrics

import (
	"net/http"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultOK labels commands that succeeded
const ResultOK = "ok"

// Metrics owns a private registry so that several servers (and tests) can
// coexist in one process.
type Metrics struct {
	registry       *prometheus.Registry
	commandsTotal  *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
}

// New creates the metric set. Board gauges read b at scrape time.
func New(b *board.Board) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		commandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corkboard_commands_total",
				Help: "Total number of protocol commands processed",
			},
			[]string{"command", "result"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "corkboard_sessions_active",
				Help: "Number of client sessions currently connected",
			},
		),
		sessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "corkboard_sessions_total",
				Help: "Total number of client sessions accepted",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "corkboard_board_notes",
			Help: "Number of notes currently on the board",
		},
		func() float64 { return float64(b.Stats().Notes) },
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "corkboard_board_pins",
			Help: "Number of pins currently on the board",
		},
		func() float64 { return float64(b.Stats().Pins) },
	)

	return m
}

// CommandObserved counts one processed command. result is ResultOK or a failure code.
func (m *Metrics) CommandObserved(command, result string) {
	m.commandsTotal.WithLabelValues(command, result).Inc()
}

// SessionOpened records a newly accepted session.
func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

// SessionClosed records the end of a session.
func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

// Handler returns an HTTP handler exposing the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
