// Package health exposes liveness/readiness probes and crawl metrics
// over HTTP, adapted from the crawler's own health server (/healthz,
// /readyz, /stats, /metrics via promhttp), reporting frontier and
// worker-pool counters instead of queue stats.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shortTimeout = 5 * time.Second
	longTimeout  = 10 * time.Second
)

var (
	frontierPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_frontier_pending",
		Help: "Number of entries currently pending in the frontier",
	})
	pagesCrawledTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_pages_crawled_total",
		Help: "Number of pages successfully crawled in the current crawl",
	})
	fetchErrorsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_fetch_errors_total",
		Help: "Number of fetch errors encountered in the current crawl",
	})
	externalLinksTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_external_links_total",
		Help: "Number of external links recorded in the current crawl",
	})
)

func init() {
	prometheus.MustRegister(frontierPending, pagesCrawledTotal, fetchErrorsTotal, externalLinksTotal)
}

// Stats is the snapshot reported on /stats and mirrored into the
// Prometheus gauges.
type Stats struct {
	BaseDomain    string `json:"base_domain"`
	Status        string `json:"status"`
	FrontierSize  int    `json:"frontier_size"`
	PagesCrawled  int    `json:"pages_crawled"`
	FetchErrors   int    `json:"fetch_errors"`
	ExternalLinks int    `json:"external_links"`
}

// StatsSource is implemented by the crawl controller.
type StatsSource interface {
	Stats() Stats
	Ping(ctx context.Context) error
}

// Server serves the health/readiness/metrics/stats endpoints.
type Server struct {
	source StatsSource
	port   int
	ready  atomic.Bool
	server *http.Server
}

// New creates a Server bound to a StatsSource.
func New(source StatsSource, port int) *Server {
	return &Server{source: source, port: port}
}

// SetReady marks the server ready for the readiness probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: shortTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shortTimeout)
		defer cancel()

		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start health server: %w", err)
	}

	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), shortTimeout)
	defer cancel()

	if err := s.source.Ping(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), longTimeout)
	defer cancel()

	stats := s.source.Stats()
	updateMetrics(stats)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func updateMetrics(stats Stats) {
	frontierPending.Set(float64(stats.FrontierSize))
	pagesCrawledTotal.Set(float64(stats.PagesCrawled))
	fetchErrorsTotal.Set(float64(stats.FetchErrors))
	externalLinksTotal.Set(float64(stats.ExternalLinks))
}
