// Package serve implements the serve command: the coordinator driven by
// browser-hosted players over HTTP and SSE.
package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/navpreview/internal/api"
	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/controller"
	nperrors "github.com/tphakala/navpreview/internal/errors"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/observability"
	"github.com/tphakala/navpreview/internal/player"
	"github.com/tphakala/navpreview/internal/player/remote"
	"github.com/tphakala/navpreview/internal/runloop"
)

const busShutdownTimeout = 5 * time.Second

// Command creates the serve command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator behind the HTTP API",
		Long:  "Start the playback coordinator and serve its API, SSE stream and metrics until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "HTTP listen address")
	cmd.Flags().StringVar(&settings.Camera.Driver, "camera", viper.GetString("camera.driver"), "Camera driver: remote, v4l2 or fake")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "metrics", viper.GetBool("telemetry.enabled"), "Expose Prometheus metrics")

	for key, flag := range map[string]string{
		"webserver.listen":  "listen",
		"camera.driver":     "camera",
		"telemetry.enabled": "metrics",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

// Run wires the coordinator and serves until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	if !settings.WebServer.Enabled {
		return fmt.Errorf("webserver.enabled is false; remote players need the HTTP API")
	}

	bus := events.New(events.DefaultConfig())
	nperrors.SetEventPublisher(bus)
	defer func() {
		nperrors.SetEventPublisher(nil)
		if err := bus.Shutdown(busShutdownTimeout); err != nil {
			log.Warn("event bus shutdown incomplete", logger.Error(err))
		}
	}()

	var metrics *observability.Metrics
	if settings.Telemetry.Enabled {
		var err error
		if metrics, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("error initializing metrics: %w", err)
		}
	}

	var captureOpts []capture.Option
	ctrlOpts := []controller.Option{controller.WithPublisher(bus)}
	if metrics != nil {
		captureOpts = append(captureOpts, capture.WithRecorder(metrics.Sync))
		ctrlOpts = append(ctrlOpts, controller.WithRecorder(metrics.Sync))
	}

	camera, device, err := capture.NewManagerFromSettings(settings.Camera, bus, captureOpts...)
	if err != nil {
		return err
	}

	cfg, err := controller.ConfigFromSettings(settings)
	if err != nil {
		return fmt.Errorf("invalid video settings: %w", err)
	}

	loop := runloop.NewLoop(settings.Sync.TickInterval)
	ctrl := controller.New(cfg, loop, camera, func(name string, sink player.Sink) player.Player {
		return remote.New(name, bus, sink)
	}, ctrlOpts...)

	serverOpts := []api.ServerOption{api.WithEventBus(bus)}
	if metrics != nil {
		serverOpts = append(serverOpts, api.WithMetrics(metrics))
	}
	if rd, ok := device.(*capture.RemoteDevice); ok {
		serverOpts = append(serverOpts, api.WithCaptureResolver(rd))
	}
	srv, err := api.New(settings, ctrl, serverOpts...)
	if err != nil {
		return err
	}

	var endpoint *observability.Endpoint
	if metrics != nil && settings.Telemetry.Listen != "" {
		if endpoint, err = observability.NewEndpoint(settings, metrics); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// The loop waits for a pending camera open, so cancel it first
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})
	g.Go(func() error { return srv.Run(gctx) })
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(gctx) })
	}

	ctrl.Start()
	log.Info("navpreview running",
		logger.String("listen", settings.WebServer.Listen),
		logger.String("camera", device.Name()),
		logger.Bool("metrics", metrics != nil))

	return g.Wait()
}
