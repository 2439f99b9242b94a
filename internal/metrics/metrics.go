package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PollCycles       prometheus.Counter
	ReportsRelayed   prometheus.Counter
	MessagesRelayed  prometheus.Counter
	RelayFailures    prometheus.Counter
	FilesUploaded    prometheus.Counter
	EventsSkipped    prometheus.Counter
	CycleDuration    prometheus.Histogram
	WatchedCompanies prometheus.Gauge
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PollCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_poll_cycles_total",
			Help: "Total number of polling cycles started",
		}),
		ReportsRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_reports_relayed_total",
			Help: "Total number of report documents relayed to subscribers",
		}),
		MessagesRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_messages_relayed_total",
			Help: "Total number of disclosure messages relayed to subscribers",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_relay_failures_total",
			Help: "Total number of failed relay attempts",
		}),
		FilesUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_files_uploaded_total",
			Help: "Total number of files uploaded to the object store",
		}),
		EventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fin_report_bot_events_skipped_total",
			Help: "Total number of events skipped as undeliverable this cycle",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fin_report_bot_cycle_duration_seconds",
			Help:    "Time spent on one polling cycle",
			Buckets: prometheus.DefBuckets,
		}),
		WatchedCompanies: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fin_report_bot_watched_companies",
			Help: "Number of (subscriber, company) pairs in the current work list",
		}),
	}
}
