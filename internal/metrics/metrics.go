// Package metrics exposes Prometheus instrumentation for the monitoring loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalert_ticks_total",
			Help: "Number of monitoring ticks executed",
		},
		[]string{"symbol"},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalert_fetch_failures_total",
			Help: "Ticks that produced no price sample",
		},
		[]string{"symbol", "reason"},
	)

	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalert_alerts_dispatched_total",
			Help: "Alert dispatch attempts",
		},
		[]string{"symbol", "action", "status"}, // status: sent, failed
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalert_alerts_suppressed_total",
			Help: "Alert-worthy ticks that did not dispatch",
		},
		[]string{"symbol", "action", "reason"},
	)

	LastPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stockalert_last_price",
			Help: "Last observed price per symbol",
		},
		[]string{"symbol"},
	)

	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockalert_panics_recovered_total",
			Help: "Panics recovered at the tick boundary",
		},
		[]string{"component"},
	)
)

// Serve starts a /metrics endpoint in the background. The returned channel
// receives the listen error, if any.
func Serve(addr string) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return srv, errCh
}

// Shutdown stops a server started by Serve.
func Shutdown(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
