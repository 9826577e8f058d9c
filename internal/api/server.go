package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/navpreview/internal/api/middleware"
	"github.com/tphakala/navpreview/internal/capture"
	"github.com/tphakala/navpreview/internal/conf"
	"github.com/tphakala/navpreview/internal/controller"
	"github.com/tphakala/navpreview/internal/events"
	"github.com/tphakala/navpreview/internal/logger"
	"github.com/tphakala/navpreview/internal/observability"
	"github.com/tphakala/navpreview/internal/player"
)

const apiPrefix = "/api/v1"

// Coordinator is the part of the mode controller the API drives.
type Coordinator interface {
	Snapshot() controller.State
	RequestMode(m controller.Mode) error
	Generate() error
	SelectPhoto(slot controller.Slot, name string) error
	ClearPhoto(slot controller.Slot) error
	Player(name string) (player.Player, bool)
	WaitSettled(ctx context.Context) error
}

// CaptureResolver accepts the browser's answer to a camera request.
type CaptureResolver interface {
	Resolve(r capture.Result) error
}

// Server is the HTTP server for navpreview.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	ctrl    Coordinator
	capture CaptureResolver
	bus     *events.EventBus
	metrics *observability.Metrics

	hub    *StreamHub
	photos *PhotoStore

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics exposes m on /metrics and records request metrics into it.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCaptureResolver routes POST /capture/result to r.
func WithCaptureResolver(r CaptureResolver) ServerOption {
	return func(s *Server) {
		s.capture = r
	}
}

// WithEventBus subscribes the SSE stream to bus.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) {
		s.bus = bus
	}
}

// WithConfig overrides the configuration derived from settings.
func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) {
		s.config = cfg
	}
}

// New creates the HTTP server around ctrl.
func New(settings *conf.Settings, ctrl Coordinator, opts ...ServerOption) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("api: coordinator is required")
	}

	s := &Server{
		config:    ConfigFromSettings(settings),
		settings:  settings,
		log:       GetLogger(),
		ctrl:      ctrl,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	var streamMetrics StreamRecorder
	if s.metrics != nil {
		streamMetrics = s.metrics.HTTP
	}
	s.hub = NewStreamHub(s.config.ProgressRate, streamMetrics)
	s.photos = NewPhotoStore(s.config.PreviewTTL)

	if s.bus != nil {
		if err := s.bus.RegisterConsumer(s.hub); err != nil {
			return nil, fmt.Errorf("failed to subscribe SSE stream: %w", err)
		}
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	s.echo.HTTPErrorHandler = s.httpErrorHandler
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.IdleTimeout = s.config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", s.config.Listen),
		logger.Bool("metrics", s.metrics != nil),
		logger.Bool("debug", s.config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http")))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP, func(c echo.Context) bool {
			return c.Path() == apiPrefix+"/stream"
		}))
	}

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	g := s.echo.Group(apiPrefix)
	g.GET("/state", s.GetState)
	g.PUT("/mode", s.SetMode)
	g.POST("/generate", s.Generate)

	g.POST("/photos/:slot", s.UploadPhoto)
	g.DELETE("/photos/:slot", s.ClearPhoto)
	g.GET("/photos/:slot/preview", s.PhotoPreview)

	// Reconnect storms from a misbehaving page are capped per IP
	streamLimiter := echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      1,
			Burst:     30,
			ExpiresIn: time.Minute,
		}),
		IdentifierExtractor: echomw.DefaultRateLimiterConfig.IdentifierExtractor,
		DenyHandler: func(ctx echo.Context, _ string, _ error) error {
			return s.HandleError(ctx, nil, "Too many stream connection attempts, please wait", http.StatusTooManyRequests)
		},
	})
	g.GET("/stream", s.Stream, streamLimiter)
	g.GET("/stream/status", s.StreamStatus)

	g.POST("/players/:player/events", s.PlayerEvent)
	g.POST("/capture/result", s.CaptureResult)

	if s.metrics != nil {
		h := echo.WrapHandler(s.metrics.Handler())
		s.echo.GET("/metrics", h)
		g.GET("/metrics", h)
	}
}

// httpErrorHandler renders framework errors (unknown routes, body limits)
// in the same shape as handler errors.
func (s *Server) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	}
	if herr := s.HandleError(ctx, err, message, code); herr != nil {
		s.log.Debug("failed to write error response", logger.Error(herr))
	}
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(ctx echo.Context) error {
	uptime := time.Since(s.startTime)
	state := s.ctrl.Snapshot()

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"mode":           state.Mode,
		"transitioning":  state.Transitioning,
		"sse_clients":    s.hub.ClientCount(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Hub returns the SSE hub.
func (s *Server) Hub() *StreamHub {
	return s.hub
}

// Run serves until ctx is cancelled and then shuts down gracefully. Open
// SSE streams are closed first so shutdown does not wait on them.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}
	s.log.Info("HTTP server stopped")
	return <-errCh
}
