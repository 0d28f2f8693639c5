package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	JobsTotal           *prometheus.CounterVec
	PipelineRunDuration prometheus.Histogram
	RuleExclusionsTotal *prometheus.CounterVec
	RuleChangesTotal    *prometheus.CounterVec
	ExamsSplitTotal     prometheus.Counter

	RecordsClassifiedTotal prometheus.Counter
	DemonstrativosTotal    *prometheus.CounterVec

	RejectionsTotal        *prometheus.CounterVec
	RejectionBufferDropped prometheus.Counter

	DBConnections prometheus.Gauge
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total pipeline jobs by final status.",
		}, []string{"status"}),

		PipelineRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 480},
		}),

		RuleExclusionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "pipeline",
			Name:      "rule_exclusions_total",
			Help:      "Rows excluded per normalization rule code.",
		}, []string{"rule"}),

		RuleChangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "pipeline",
			Name:      "rule_changes_total",
			Help:      "Rows mutated per normalization rule code.",
		}, []string{"rule"}),

		ExamsSplitTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "pipeline",
			Name:      "exams_split_total",
			Help:      "Composite exam rows replaced by split sub-exams.",
		}),

		RecordsClassifiedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "records_classified_total",
			Help:      "Exam records tagged by the billing classifier.",
		}),

		DemonstrativosTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "demonstrativos_total",
			Help:      "Demonstrativos computed by outcome status.",
		}, []string{"status"}),

		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingest",
			Name:      "rejections_total",
			Help:      "Input rows rejected at admission by reason.",
		}, []string{"reason"}),

		RejectionBufferDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "ingest",
			Name:      "rejection_buffer_dropped_total",
			Help:      "Rejection audit entries dropped due to full buffer. Alert if non-zero.",
		}),

		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
