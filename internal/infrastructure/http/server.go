// Package http is the remote task submission surface: an HTTP API a
// Scheduler's RemoteClient can submit spawn.remote Task node firings to,
// fronted by an echo middleware chain (logging, recovery, rate
// limiting, Prometheus, OOMOL_TOKEN bearer auth, OpenTelemetry tracing).
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/oocana-go/oocana/internal/domain/flow"
	"github.com/oocana-go/oocana/internal/infrastructure/broker"
	"github.com/oocana-go/oocana/internal/infrastructure/http/middleware"
	"github.com/oocana-go/oocana/internal/infrastructure/monitoring"
	"github.com/oocana-go/oocana/internal/infrastructure/reporter"
)

// Config controls the server's listen address and auth.
type Config struct {
	Addr        string
	OOMOLToken  string // HMAC secret validating the bearer OOMOL_TOKEN; empty disables auth
	ServiceName string

	// RateLimitPerSecond/RateLimitBurst bound how often a single caller
	// may submit remote tasks; zero values fall back to a permissive
	// default rather than disabling limiting outright.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server is the remote task API plus ambient health/metrics/reporting
// endpoints, all on one echo instance.
type Server struct {
	echo *echo.Echo
	cfg  Config
}

// New builds the server. metrics may be nil (metrics middleware is then
// skipped); broadcaster may be nil (the /v1/sessions/:id/events SSE
// endpoint then 404s).
func New(cfg Config, metrics *monitoring.Metrics, broadcaster *reporter.Broadcaster) *Server {
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler()

	e.Use(echomw.Recover())
	e.Use(middleware.Logger())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(middleware.SimpleRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	e.Use(middleware.BearerAuth(cfg.OOMOLToken))
	if metrics != nil {
		e.Use(middleware.Metrics(metrics))
	}

	s := &Server{echo: e, cfg: cfg}
	s.routes(broadcaster)
	return s
}

func (s *Server) routes(broadcaster *reporter.Broadcaster) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/v1/tasks", s.handleSubmitTask)
	if broadcaster != nil {
		s.echo.GET("/v1/sessions/:id/events", s.handleSessionEvents(broadcaster))
	}
}

// Start runs the server until ctx is cancelled, then gracefully shuts
// down within 10 seconds.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.cfg.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type submitTaskRequest struct {
	SessionID string `json:"session_id"`
	NodeID    string `json:"node_id"`
	JobID     string `json:"job_id"`
	BlockRef  string `json:"block_ref"`
	Executor  string `json:"executor"`
	BrokerURL string `json:"broker_addr"`
	PkgRoot   string `json:"pkg_root,omitempty"`
}

// handleSubmitTask accepts a job a RemoteClient (internal/infrastructure/
// broker.RemoteClient) submitted and spawns the same worker process
// locally that a non-remote Task node would get, pointed back at the
// caller's broker address. The HTTP response only confirms acceptance;
// the worker's actual output/done/error still travels over the
// original length-prefixed broker protocol, not this connection.
func (s *Server) handleSubmitTask(c echo.Context) error {
	var req submitTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed task submission: "+err.Error())
	}
	if req.BlockRef == "" || req.BrokerURL == "" || req.JobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "block_ref, broker_addr, and job_id are required")
	}

	cmd, err := broker.SpawnProcess(
		c.Request().Context(),
		req.PkgRoot,
		req.BlockRef,
		req.Executor,
		req.BrokerURL,
		flow.JobId(req.JobID),
		flow.NodeId(req.NodeID),
		flow.SessionId(req.SessionID),
	)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "spawning remote worker: "+err.Error())
	}

	go func() { _ = cmd.Wait() }()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted", "job_id": req.JobID})
}

// handleSessionEvents streams a running session's reported events as
// Server-Sent Events, one JSON line per event, for a dashboard or CLI
// watching a remotely-submitted run.
func (s *Server) handleSessionEvents(b *reporter.Broadcaster) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set("Cache-Control", "no-cache")
		c.Response().Header().Set("Connection", "keep-alive")
		c.Response().WriteHeader(http.StatusOK)

		ch, unsubscribe := b.Subscribe(32)
		defer unsubscribe()

		for {
			select {
			case <-c.Request().Context().Done():
				return nil
			case line, ok := <-ch:
				if !ok {
					return nil
				}
				if _, err := c.Response().Write([]byte("data: " + line + "\n\n")); err != nil {
					return nil
				}
				c.Response().Flush()
			}
		}
	}
}
