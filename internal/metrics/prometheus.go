package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Probe metrics
	probesTotal     prometheus.Counter
	probesActive    prometheus.Gauge
	probesCompleted *prometheus.CounterVec

	// Cache metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter

	// SMTP session metrics
	sessionsTotal *prometheus.CounterVec
	tlsTotal      *prometheus.CounterVec

	// DNS metrics
	mxLookupsTotal *prometheus.CounterVec

	// Refresh driver metrics
	refreshPassesTotal    prometheus.Counter
	refreshedEntriesTotal prometheus.Counter

	// HTTP batch metrics
	batchSize prometheus.Histogram
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		probesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everify_probes_total",
			Help: "Total number of email probes started.",
		}),
		probesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "everify_probes_active",
			Help: "Number of probes currently in flight.",
		}),
		probesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everify_probes_completed_total",
			Help: "Total number of completed probes by verdict category.",
		}, []string{"category"}),

		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everify_cache_hits_total",
			Help: "Total number of verdicts served from the cache.",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everify_cache_misses_total",
			Help: "Total number of cache misses that triggered a probe.",
		}),

		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everify_smtp_sessions_total",
			Help: "Total number of SMTP probe sessions by port and result.",
		}, []string{"port", "result"}),
		tlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everify_smtp_tls_total",
			Help: "Total number of TLS channels established by port.",
		}, []string{"port"}),

		mxLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "everify_mx_lookups_total",
			Help: "Total number of MX lookups by result.",
		}, []string{"result"}),

		refreshPassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everify_refresh_passes_total",
			Help: "Total number of refresh driver passes.",
		}),
		refreshedEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "everify_refreshed_entries_total",
			Help: "Total number of cache entries re-probed by the refresh driver.",
		}),

		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "everify_batch_size",
			Help:    "Size of batch verification requests.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}

	// Register all metrics
	reg.MustRegister(
		c.probesTotal,
		c.probesActive,
		c.probesCompleted,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.sessionsTotal,
		c.tlsTotal,
		c.mxLookupsTotal,
		c.refreshPassesTotal,
		c.refreshedEntriesTotal,
		c.batchSize,
	)

	return c
}

// ProbeStarted increments the probe counter and active gauge.
func (c *PrometheusCollector) ProbeStarted() {
	c.probesTotal.Inc()
	c.probesActive.Inc()
}

// ProbeCompleted records a completed probe and decrements the active gauge.
func (c *PrometheusCollector) ProbeCompleted(category string) {
	c.probesActive.Dec()
	c.probesCompleted.WithLabelValues(category).Inc()
}

// CacheHit records a verdict served from the cache.
func (c *PrometheusCollector) CacheHit() {
	c.cacheHitsTotal.Inc()
}

// CacheMiss records a cache miss.
func (c *PrometheusCollector) CacheMiss() {
	c.cacheMissesTotal.Inc()
}

// SessionCompleted records an SMTP session outcome.
func (c *PrometheusCollector) SessionCompleted(port int, result string) {
	c.sessionsTotal.WithLabelValues(strconv.Itoa(port), result).Inc()
}

// TLSEstablished records a TLS channel (implicit or STARTTLS).
func (c *PrometheusCollector) TLSEstablished(port int) {
	c.tlsTotal.WithLabelValues(strconv.Itoa(port)).Inc()
}

// MXLookupCompleted records an MX lookup result.
func (c *PrometheusCollector) MXLookupCompleted(result string) {
	c.mxLookupsTotal.WithLabelValues(result).Inc()
}

// RefreshCompleted records a refresh driver pass.
func (c *PrometheusCollector) RefreshCompleted(refreshed int) {
	c.refreshPassesTotal.Inc()
	c.refreshedEntriesTotal.Add(float64(refreshed))
}

// BatchProcessed records the size of a batch request.
func (c *PrometheusCollector) BatchProcessed(size int) {
	c.batchSize.Observe(float64(size))
}
