// Package metrics defines the metrics sink used by the playlist counter. Components
// take the Sink interface rather than reaching for process-global counters, so tests
// can run against the no-op sink; the Prometheus implementation is wired once at the
// application entry point.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Sink interface {
	IncSucceeded()
	IncFailed(errorKind string)
	IncSkipped(reason string)
	IncUnknown()
	IncLegacyFiltersConverted()
	ObserveRunDuration(duration time.Duration)
}

type PrometheusSink struct {
	succeeded              prometheus.Counter
	failed                 *prometheus.CounterVec
	skipped                *prometheus.CounterVec
	unknown                prometheus.Counter
	legacyFiltersConverted prometheus.Counter
	runDuration            prometheus.Histogram
}

var _ Sink = (*PrometheusSink)(nil)

func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{
		succeeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "insights_playlist_count_succeeded_total",
			Help: "Total number of successful playlist count recomputations",
		}),
		failed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_playlist_count_failed_total",
				Help: "Total number of failed playlist count recomputations",
			},
			[]string{"error_kind"},
		),
		skipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_playlist_count_skipped_total",
				Help: "Total number of skipped playlist count recomputations",
			},
			[]string{"reason"},
		),
		unknown: promauto.NewCounter(prometheus.CounterOpts{
			Name: "insights_playlist_count_unknown_total",
			Help: "Total number of count recomputations for playlists that no longer exist",
		}),
		legacyFiltersConverted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "insights_playlist_legacy_filters_converted_total",
			Help: "Total number of legacy playlist filter documents converted to the universal shape",
		}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "insights_playlist_count_run_duration_seconds",
			Help:    "Duration of playlist count recomputations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
	}
}

func (sink *PrometheusSink) IncSucceeded() {
	sink.succeeded.Inc()
}

func (sink *PrometheusSink) IncFailed(errorKind string) {
	sink.failed.WithLabelValues(errorKind).Inc()
}

func (sink *PrometheusSink) IncSkipped(reason string) {
	sink.skipped.WithLabelValues(reason).Inc()
}

func (sink *PrometheusSink) IncUnknown() {
	sink.unknown.Inc()
}

func (sink *PrometheusSink) IncLegacyFiltersConverted() {
	sink.legacyFiltersConverted.Inc()
}

func (sink *PrometheusSink) ObserveRunDuration(duration time.Duration) {
	sink.runDuration.Observe(duration.Seconds())
}

// NoopSink discards all metrics.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) IncSucceeded() {}

func (NoopSink) IncFailed(errorKind string) {}

func (NoopSink) IncSkipped(reason string) {}

func (NoopSink) IncUnknown() {}

func (NoopSink) IncLegacyFiltersConverted() {}

func (NoopSink) ObserveRunDuration(time.Duration) {}
