package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Collector owns a private registry so tests and multiple binaries never
// collide on the default one. All methods are safe on a nil *Collector.
type Collector struct {
	reg *prometheus.Registry

	FetchAttempts  *prometheus.CounterVec // direction
	FetchResults   *prometheus.CounterVec // outcome
	FetchDuration  prometheus.Histogram
	StopsExtracted prometheus.Counter

	BatchPairs *prometheus.CounterVec // status: processed|empty|skipped|failed

	CacheHits   *prometheus.CounterVec // cache
	CacheMisses *prometheus.CounterVec // cache

	HTTPRequests *prometheus.CounterVec // method, route, status
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_fetch_attempts_total",
			Help: "Browser attempts made to load a stop list page.",
		}, []string{"direction"}),
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_fetch_results_total",
			Help: "Completed stop list fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stoplist_fetch_duration_seconds",
			Help:    "Wall time of a stop list fetch including retries.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		StopsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_stops_extracted_total",
			Help: "Stops returned by successful fetches.",
		}),
		BatchPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_batch_pairs_total",
			Help: "Route/direction pairs handled by batch runs.",
		}, []string{"status"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_cache_hits_total",
			Help: "Cache hits by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_cache_misses_total",
			Help: "Cache misses by cache name.",
		}, []string{"cache"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stoplist_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.FetchAttempts, c.FetchResults, c.FetchDuration, c.StopsExtracted,
		c.BatchPairs, c.CacheHits, c.CacheMisses,
		c.HTTPRequests, c.HTTPDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) ObserveAttempt(direction string) {
	if c == nil {
		return
	}
	c.FetchAttempts.WithLabelValues(direction).Inc()
}

func (c *Collector) ObserveFetch(outcome string, stops int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.FetchResults.WithLabelValues(outcome).Inc()
	if outcome == OutcomeInvalid {
		return
	}
	c.FetchDuration.Observe(elapsed.Seconds())
	c.StopsExtracted.Add(float64(stops))
}

func (c *Collector) ObserveBatchPair(status string) {
	if c == nil {
		return
	}
	c.BatchPairs.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveCache(cache string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.WithLabelValues(cache).Inc()
	} else {
		c.CacheMisses.WithLabelValues(cache).Inc()
	}
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
