package metrics

import (
	"net/http"
	"time"

	"winsentry/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records monitor activity on its own registry. It observes both the
// event source and the refresh loop.
type Collector struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	batchesRead     prometheus.Counter
	eventsRead      prometheus.Counter
	malformedEvents prometheus.Counter
	readErrors      prometheus.Counter
	failures        prometheus.Gauge
	failuresByCause *prometheus.GaugeVec
	lastPublished   prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winsentry_refresh_cycles_total",
				Help: "Total number of refresh cycles by result",
			},
			[]string{"result"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "winsentry_refresh_cycle_duration_seconds",
				Help:    "Duration of refresh cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		batchesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "winsentry_channel_batches_total",
				Help: "Total number of batches read from the event channel",
			},
		),
		eventsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "winsentry_channel_events_total",
				Help: "Total number of events read from the event channel before filtering",
			},
		),
		malformedEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "winsentry_malformed_events_total",
				Help: "Total number of matching events skipped because they could not be parsed",
			},
		),
		readErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "winsentry_channel_read_errors_total",
				Help: "Total number of failed channel opens and batch reads",
			},
		),
		failures: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "winsentry_snapshot_failed_logons",
				Help: "Failed logons in the latest snapshot",
			},
		),
		failuresByCause: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "winsentry_snapshot_failed_logons_by_reason",
				Help: "Failed logons in the latest snapshot by failure reason",
			},
			[]string{"reason"},
		),
		lastPublished: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "winsentry_snapshot_published_timestamp_seconds",
				Help: "Unix time the latest snapshot was generated",
			},
		),
	}
}

func (c *Collector) BatchRead(n int) {
	c.batchesRead.Inc()
	c.eventsRead.Add(float64(n))
}

func (c *Collector) MalformedEvent(int64) {
	c.malformedEvents.Inc()
}

func (c *Collector) ReadError() {
	c.readErrors.Inc()
}

func (c *Collector) CycleCompleted(result string, duration time.Duration, snap *model.Snapshot) {
	c.cycles.WithLabelValues(result).Inc()
	if duration > 0 {
		c.cycleDuration.Observe(duration.Seconds())
	}
	if snap == nil {
		return
	}
	c.failures.Set(float64(snap.TotalCount))
	// reasons absent from this snapshot must not keep their old value
	c.failuresByCause.Reset()
	for reason, n := range snap.ReasonHistogram {
		c.failuresByCause.WithLabelValues(reason).Set(float64(n))
	}
	c.lastPublished.Set(float64(snap.GeneratedAt.Unix()))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
