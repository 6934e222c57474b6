package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_page_fetches_total",
			Help: "Total number of result pages fetched",
		},
		[]string{"strategy", "status", "detected", "detection_src"},
	)

	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpent_page_fetch_duration_seconds",
			Help:    "Duration of result page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	PageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_page_bytes_total",
			Help: "Total bytes of result page markup downloaded",
		},
		[]string{"strategy"},
	)

	ResultsYieldedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_results_yielded_total",
			Help: "Total number of search results yielded to callers",
		},
	)

	DuplicatesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serpent_duplicates_skipped_total",
			Help: "Total number of extracted results dropped as already seen",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpent_proxy_failures_total",
			Help: "Total number of proxy failures during page fetches",
		},
		[]string{"proxy"},
	)
)

// Fetch describes one page fetch outcome.
type Fetch struct {
	Strategy      string
	StatusCode    int
	Err           error
	Detected      bool
	DetectionSrc  string
	Duration      time.Duration
	ResponseBytes int
}

// RecordFetch updates the page fetch metrics.
func RecordFetch(f Fetch) {
	detectedStr := "false"
	if f.Detected {
		detectedStr = "true"
	}

	statusStr := strconv.Itoa(f.StatusCode)
	if f.Err != nil && f.StatusCode == 0 {
		statusStr = "error"
	}

	PageFetchesTotal.WithLabelValues(f.Strategy, statusStr, detectedStr, f.DetectionSrc).Inc()
	PageFetchDuration.WithLabelValues(f.Strategy).Observe(f.Duration.Seconds())
	PageBytesTotal.WithLabelValues(f.Strategy).Add(float64(f.ResponseBytes))
}

// RecordProxyFailure counts a failed fetch through the given proxy. The label
// must not carry credentials.
func RecordProxyFailure(proxy string) {
	ProxyFailures.WithLabelValues(proxy).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
