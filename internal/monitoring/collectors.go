package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type workerCollectors struct {
	schedulerTicks    prometheus.Counter
	schedulerReady    prometheus.Gauge
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobLastSuccess    *prometheus.GaugeVec
	jobAffected       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	pushDeliveries    *prometheus.CounterVec
	auctionsFinalized *prometheus.CounterVec
	opsRequests       *prometheus.HistogramVec
}

func newCollectors(namespace string) *workerCollectors {
	return &workerCollectors{
		schedulerTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Scheduler ticks executed",
			},
		),
		schedulerReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_store_ready",
				Help:      "1 when the store answered the last connectivity check",
			},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Job executions by result",
			},
			[]string{"job", "result"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Job duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		jobLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_success_timestamp",
				Help:      "Timestamp of the last successful job run (seconds since epoch)",
			},
			[]string{"job"},
		),
		jobAffected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_rows_affected_total",
				Help:      "Rows transitioned or deleted by jobs",
			},
			[]string{"job"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_created_total",
				Help:      "In-app notifications persisted by type",
			},
			[]string{"type"},
		),
		pushDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_deliveries_total",
				Help:      "Push delivery attempts by result (delivered|failed|gone)",
			},
			[]string{"result"},
		),
		auctionsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auctions_finalized_total",
				Help:      "Auction settlements by outcome (winner|no_bids|already_handled)",
			},
			[]string{"outcome"},
		),
		opsRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ops_request_duration_seconds",
				Help:      "Ops endpoint latency",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (c *workerCollectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.schedulerTicks,
		c.schedulerReady,
		c.jobRuns,
		c.jobDuration,
		c.jobLastSuccess,
		c.jobAffected,
		c.notifications,
		c.pushDeliveries,
		c.auctionsFinalized,
		c.opsRequests,
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
