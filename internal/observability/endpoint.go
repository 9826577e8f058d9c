// Package observability provides Prometheus metrics functionality for monitoring navpreview.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/logger"
	metricspkg "github.com/tphakala/navpreview/internal/observability/metrics"
)

// Endpoint serves /metrics on a listener of its own, for deployments that
// keep telemetry off the presentation port.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates a metrics endpoint from the telemetry settings. It
// fails when telemetry is disabled or no separate listener is configured.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, fmt.Errorf("telemetry not enabled in settings")
	}
	if settings.Telemetry.Listen == "" {
		return nil, fmt.Errorf("telemetry listen address not set")
	}

	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       metrics,
		server: &http.Server{
			Addr:              settings.Telemetry.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (e *Endpoint) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log().Info("telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log().Error("telemetry HTTP server error", logger.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	log().Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		log().Error("telemetry server shutdown error", logger.Error(err))
		return err
	}
	return <-errCh
}

// Address returns the configured listen address.
func (e *Endpoint) Address() string {
	return e.listenAddress
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
