// Package metrics exposes dispatch engine counters to Prometheus.
//
// Each Collector owns its registry so several engines (tests, one-shot
// recovery runs) can coexist in one process. All methods are safe on a nil
// *Collector, which is how metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Advance reasons.
const (
	ReasonRejected  = "rejected"
	ReasonTimeout   = "timeout"
	ReasonPreempted = "preempted"
)

type Collector struct {
	registry *prometheus.Registry

	started          prometheus.Counter
	offers           prometheus.Counter
	advances         *prometheus.CounterVec
	accepted         prometheus.Counter
	exhausted        prometheus.Counter
	cancelled        prometheus.Counter
	arbiterConflicts prometheus.Counter
	snapshotErrors   prometheus.Counter
	recovered        *prometheus.CounterVec

	activeJobs   prometheus.Gauge
	timeToAssign prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_started_total",
			Help: "Dispatch jobs started",
		}),
		offers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_offers_total",
			Help: "Exclusive offers sent to candidates",
		}),
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_advances_total",
			Help: "Cursor advances by reason",
		}, []string{"reason"}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_accepted_total",
			Help: "Bookings assigned through the arbiter",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_exhausted_total",
			Help: "Dispatch jobs that ran out of candidates",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_cancelled_total",
			Help: "Dispatch jobs cancelled before assignment",
		}),
		arbiterConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_arbiter_conflicts_total",
			Help: "Accept attempts whose conditional update did not match",
		}),
		snapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_snapshot_errors_total",
			Help: "Failed dispatch state writes",
		}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_recovered_total",
			Help: "Snapshots processed by recovery, by result",
		}, []string{"result"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_active_jobs",
			Help: "Dispatch jobs currently held in memory",
		}),
		timeToAssign: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_time_to_assign_seconds",
			Help:    "Time from dispatch start to accepted assignment",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
	}

	c.registry.MustRegister(
		c.started, c.offers, c.advances, c.accepted, c.exhausted, c.cancelled,
		c.arbiterConflicts, c.snapshotErrors, c.recovered, c.activeJobs, c.timeToAssign,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves this collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) DispatchStarted() {
	if c == nil {
		return
	}
	c.started.Inc()
}

func (c *Collector) OfferSent() {
	if c == nil {
		return
	}
	c.offers.Inc()
}

func (c *Collector) Advanced(reason string) {
	if c == nil {
		return
	}
	c.advances.WithLabelValues(reason).Inc()
}

// Accepted counts an assignment. since is the time from dispatch start; it is
// not observed when unknown (zero).
func (c *Collector) Accepted(since time.Duration) {
	if c == nil {
		return
	}
	c.accepted.Inc()
	if since > 0 {
		c.timeToAssign.Observe(since.Seconds())
	}
}

func (c *Collector) Exhausted() {
	if c == nil {
		return
	}
	c.exhausted.Inc()
}

func (c *Collector) Cancelled() {
	if c == nil {
		return
	}
	c.cancelled.Inc()
}

func (c *Collector) ArbiterConflict() {
	if c == nil {
		return
	}
	c.arbiterConflicts.Inc()
}

func (c *Collector) SnapshotError() {
	if c == nil {
		return
	}
	c.snapshotErrors.Inc()
}

// Recovered counts one recovery outcome ("resumed", "discarded", "failed").
func (c *Collector) Recovered(result string) {
	if c == nil {
		return
	}
	c.recovered.WithLabelValues(result).Inc()
}

func (c *Collector) SetActiveJobs(n int) {
	if c == nil {
		return
	}
	c.activeJobs.Set(float64(n))
}
