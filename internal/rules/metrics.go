// internal/rules/metrics.go
package rules

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for view evaluation runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsTotal      prometheus.Counter
	recordsRead    prometheus.Counter
	recordsEmitted prometheus.Counter
	recordsSkipped prometheus.Counter
	readErrors     prometheus.Counter
	runDuration    prometheus.Histogram
}

// NewMetrics creates engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of processing runs started",
		}),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "records_read_total",
			Help:      "Total number of lines read from record sources",
		}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "records_emitted_total",
			Help:      "Total number of records kept by views",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "records_skipped_total",
			Help:      "Total number of records dropped by a skip",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "read_errors_total",
			Help:      "Total number of record source I/O failures",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logview",
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Duration of processing runs from first pull to end of stream",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}

	collectors := []prometheus.Collector{
		m.runsTotal, m.recordsRead, m.recordsEmitted, m.recordsSkipped, m.readErrors, m.runDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
}

func (m *Metrics) recordRead() {
	if m == nil {
		return
	}
	m.recordsRead.Inc()
}

func (m *Metrics) recordKept(kept bool) {
	if m == nil {
		return
	}
	if kept {
		m.recordsEmitted.Inc()
	} else {
		m.recordsSkipped.Inc()
	}
}

func (m *Metrics) readFailed() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

func (m *Metrics) runFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}
