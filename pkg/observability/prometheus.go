package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	// metricsPath is the scrape endpoint path.
	metricsPath = "/metrics"

	// metricsReadHeaderTimeout bounds slow-header scrapes.
	metricsReadHeaderTimeout = 5 * time.Second
)

// promBridge couples a Prometheus registry with an OTel metric reader.
// Instruments recorded through a meter provider that carries the reader
// become scrapeable through the handler.
type promBridge struct {
	reader  sdkmetric.Reader
	handler http.Handler
}

// newPromBridge builds an independent registry per call so repeated
// initialization never trips duplicate-collector registration.
func newPromBridge() (*promBridge, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &promBridge{
		reader:  exporter,
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// serveMetrics runs an HTTP server exposing the scrape endpoint until the
// returned shutdown function is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) shutdownFunc {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}

		return nil
	}
}
