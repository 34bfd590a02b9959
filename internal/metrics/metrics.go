// Package metrics holds the Prometheus collectors exported by autoclass
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/arbor"
)

var (
	// MatchesTotal counts matches persisted by the autoclassifier and detectors.
	// Labels: matcher
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoclass",
		Name:      "matches_total",
		Help:      "Total matches persisted, by matcher",
	}, []string{"matcher"})

	// ClassifyTotal counts autoclassify runs by resulting status.
	// Labels: status (autoclassified, failed, skipped, rejected)
	ClassifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoclass",
		Name:      "classify_total",
		Help:      "Total autoclassify runs by outcome",
	}, []string{"status"})

	// TaskRetriesTotal counts task redeliveries scheduled after a retryable error.
	// Labels: type
	TaskRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoclass",
		Name:      "task_retries_total",
		Help:      "Total task retries scheduled, by task type",
	}, []string{"type"})

	// IntermittentsPromotedTotal counts errors promoted to new classified failures
	IntermittentsPromotedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "autoclass",
		Name:      "intermittents_promoted_total",
		Help:      "Total unmatched errors promoted to new classified failures",
	})

	// MatcherSeconds measures time spent in each matcher per job.
	// Labels: matcher
	MatcherSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autoclass",
		Name:      "matcher_seconds",
		Help:      "Matcher run time per job in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"matcher"})
)

// ObserveMatcher records a matcher run started at start
func ObserveMatcher(matcher string, start time.Time) {
	MatcherSeconds.WithLabelValues(matcher).Observe(time.Since(start).Seconds())
}

// Server exposes /metrics over HTTP
type Server struct {
	server *http.Server
	logger arbor.ILogger
}

// NewServer creates a metrics server on address
func NewServer(address string, logger arbor.ILogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.server.Addr).Msg("Metrics server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
