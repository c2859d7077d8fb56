package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// PrometheusCollector 以 Prometheus 實作 metrics.Collector
type PrometheusCollector struct {
	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	persists         *prometheus.CounterVec
	persistLatency   *prometheus.HistogramVec
	journalReplayed  prometheus.Counter
	breakerState     *prometheus.GaugeVec
	breakerOpens     *prometheus.CounterVec
}

// NewPrometheusCollector 建立 collector，需再呼叫 Register
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Total number of ledger operations by operation and error kind",
			},
			[]string{"operation", "error_kind"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Ledger operation latency including persistence",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"operation"},
		),
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_persist_total",
				Help:      "Total number of snapshot saves by backend and status",
			},
			[]string{"backend", "status"},
		),
		persistLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_persist_duration_seconds",
				Help:      "Snapshot save latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
			[]string{"backend"},
		),
		journalReplayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_journal_replayed_total",
				Help:      "Total number of journal entries replayed at start-up",
			},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		breakerOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"name"},
		),
	}
}

// Register 註冊所有指標
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.operations,
		pc.operationLatency,
		pc.persists,
		pc.persistLatency,
		pc.journalReplayed,
		pc.breakerState,
		pc.breakerOpens,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordOperation(op string, errorKind string, duration time.Duration) {
	pc.operations.WithLabelValues(op, errorKind).Inc()
	pc.operationLatency.WithLabelValues(op).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordPersist(backend string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.persists.WithLabelValues(backend, status).Inc()
	pc.persistLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordJournalReplay(entries int) {
	pc.journalReplayed.Add(float64(entries))
}

func (pc *PrometheusCollector) RecordBreakerState(name string, state metrics.BreakerState) {
	pc.breakerState.WithLabelValues(name).Set(float64(state))
	if state == metrics.BreakerOpen {
		pc.breakerOpens.WithLabelValues(name).Inc()
	}
}

var _ metrics.Collector = (*PrometheusCollector)(nil)
