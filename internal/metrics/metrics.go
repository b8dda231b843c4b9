package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"symbol-systemv1/internal/symcache"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments owned by the service (the reload
// path). Cache query counters are exported straight from the cache's own
// atomic counters via RegisterCache.
type Metrics struct {
	ReloadDur      prometheus.Histogram
	Reloads        prometheus.Counter
	ReloadFailures prometheus.Counter
}

// New registers and returns the service metrics.
func New() *Metrics {
	m := &Metrics{
		ReloadDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "symbolsvc_reload_duration_seconds",
			Help:    "Master contract reload latency (bulk read + snapshot build + publish)",
			Buckets: prometheus.DefBuckets,
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbolsvc_reloads_total",
			Help: "Successful snapshot reloads",
		}),
		ReloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "symbolsvc_reload_failures_total",
			Help: "Reload attempts that left the previous snapshot in place",
		}),
	}

	prometheus.MustRegister(m.ReloadDur, m.Reloads, m.ReloadFailures)
	return m
}

// RegisterCache exports the cache's hit/miss/fallback counters and snapshot
// gauges. The cache keeps plain atomic counters; Prometheus reads them on
// scrape.
func RegisterCache(c *symcache.Cache) {
	prometheus.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "symbolsvc_cache_hits_total",
			Help: "Symbol cache lookup hits",
		}, func() float64 { return float64(c.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "symbolsvc_cache_misses_total",
			Help: "Symbol cache lookup misses",
		}, func() float64 { return float64(c.Stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "symbolsvc_store_queries_total",
			Help: "Queries answered by the record store because the cache was unloaded or stale",
		}, func() float64 { return float64(c.Stats().StoreQueries) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "symbolsvc_cache_records",
			Help: "Records in the published snapshot",
		}, func() float64 { return float64(c.Status().Records) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "symbolsvc_cache_approx_bytes",
			Help: "Estimated memory footprint of the published snapshot",
		}, func() float64 { return float64(c.Status().ApproxBytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "symbolsvc_cache_skipped_rows",
			Help: "Rows rejected during the last snapshot build for missing required fields",
		}, func() float64 { return float64(c.Status().SkippedRows) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "symbolsvc_cache_valid",
			Help: "Whether the published snapshot is inside its validity window (0/1)",
		}, func() float64 {
			if c.IsValid() {
				return 1
			}
			return 0
		}),
	)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	cache *symcache.Cache
	srv   *http.Server
}

// NewServer creates a metrics and health server for the given cache.
func NewServer(addr string, cache *symcache.Cache) *Server {
	s := &Server{cache: cache}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// handleHealth reports the cache lifecycle state. A stale cache still serves
// queries through the record store, so the endpoint stays 200 and reports
// mode "fallback".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.cache.Status()

	mode := "fallback"
	if st.Valid {
		mode = "cached"
	}
	payload := struct {
		Mode   string          `json:"mode"`
		Time   string          `json:"time"`
		Status symcache.Status `json:"cache"`
	}{
		Mode:   mode,
		Time:   time.Now().UTC().Format(time.RFC3339),
		Status: st,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
