// Package metrics provides Prometheus metrics for fetch runs
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"satfetch/internal/tiles"
)

// Metrics holds the collectors of one process on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	TilesTotal    *prometheus.CounterVec
	RowsTotal     *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	BytesTotal    *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		TilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satfetch_tiles_total",
				Help: "Tiles handled, by outcome",
			},
			[]string{"split", "zoom", "outcome"},
		),

		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satfetch_rows_total",
				Help: "Table rows handled, by outcome",
			},
			[]string{"split", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "satfetch_tile_fetch_duration_seconds",
				Help:    "Duration of imagery API requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"zoom"},
		),

		BytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satfetch_tile_bytes_total",
				Help: "Bytes written to tile artifacts",
			},
			[]string{"split"},
		),
	}
}

// ObserveTile records one zoom outcome
func (m *Metrics) ObserveTile(split string, o tiles.Outcome) {
	zoom := strconv.Itoa(o.Request.Zoom)
	m.TilesTotal.WithLabelValues(split, zoom, o.Status.String()).Inc()

	if o.Status == tiles.StatusSkipped {
		return
	}
	m.FetchDuration.WithLabelValues(zoom).Observe(o.Duration.Seconds())
	if o.Status == tiles.StatusFetched {
		m.BytesTotal.WithLabelValues(split).Add(float64(o.Bytes))
	}
}

// ObserveRow records whether a row was processed or skipped
func (m *Metrics) ObserveRow(split string, skipped bool) {
	outcome := "processed"
	if skipped {
		outcome = "skipped"
	}
	m.RowsTotal.WithLabelValues(split, outcome).Inc()
}
