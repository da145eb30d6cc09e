package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the processor's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	steps        *prometheus.HistogramVec
	transactions prometheus.Counter
	unresolved   prometheus.Counter
	dropped      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "runs_total",
			Help:      "Processed statements by outcome (success or failure kind).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statement",
			Name:      "run_duration_seconds",
			Help:      "End-to-end processing time per statement.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statement",
			Name:      "step_duration_seconds",
			Help:      "Time spent in each pipeline step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "transactions_total",
			Help:      "Transactions emitted across all statements.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "unresolved_rows_total",
			Help:      "Candidate rows that could not become transactions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statement",
			Name:      "dropped_accounts_total",
			Help:      "Accounts left out of statements.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.steps, m.transactions, m.unresolved, m.dropped)
	return m
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) observeRun(res Result, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if res.Error != nil {
		outcome = string(res.Error.Kind)
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())

	if res.Report == nil {
		return
	}
	transactions, unresolved := res.Report.Counts()
	m.transactions.Add(float64(transactions))
	m.unresolved.Add(float64(unresolved))
	m.dropped.Add(float64(len(res.Report.Dropped)))
}
