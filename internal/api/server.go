// Package api exposes the circulation service over HTTP.
//
// Mutating endpoints accept JSON bodies carrying an action selector and
// reply with a uniform envelope: {"ok": true, ...} on success,
// {"ok": false, "error": ..., "details": ...} on failure. Replay
// protection comes from an idempotency token supplied per request.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/catalog"
	"github.com/fenwicklabs/circd/internal/circ"
	"github.com/fenwicklabs/circd/internal/holds"
	"github.com/fenwicklabs/circd/internal/idempotency"
	"github.com/fenwicklabs/circd/internal/logging"
)

// idempotencyHeader carries the caller's replay token; the body field
// idempotency_token is the fallback.
const idempotencyHeader = "Idempotency-Key"

// Server provides the HTTP surface over the orchestration layer.
type Server struct {
	echo    *echo.Echo
	circ    *circ.Orchestrator
	holds   *holds.Manager
	catalog *catalog.Service
	guard   *idempotency.Guard
	perms   PermissionChecker
	logger  *zap.Logger
	addr    string
}

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Deps collects the orchestration services the handlers drive.
type Deps struct {
	Circ    *circ.Orchestrator
	Holds   *holds.Manager
	Catalog *catalog.Service
	Guard   *idempotency.Guard
	Perms   PermissionChecker
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(deps Deps, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Perms == nil {
		deps.Perms = AllowAll{}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8642"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(NewHTTPMetrics(logger).Middleware())

	s := &Server{
		echo:    e,
		circ:    deps.Circ,
		holds:   deps.Holds,
		catalog: deps.Catalog,
		guard:   deps.Guard,
		perms:   deps.Perms,
		logger:  logger,
		addr:    cfg.Addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/circulation", s.handleCirculation)
	v1.POST("/holds", s.handleHolds)
	v1.POST("/items", s.handleItems)

	v1.GET("/copies/:barcode", s.handleCopyByBarcode)
	v1.GET("/copies/:barcode/history", s.handleCopyHistory)
	v1.GET("/records/:id/summary", s.handleRecordSummary)
	v1.GET("/holds/shelf-expired", s.handleShelfExpired)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.addr))
	return s.echo.Start(s.addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request with the correlation id.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return err
		}
	}
}

// actorFrom builds the audit actor from request headers.
func actorFrom(c echo.Context) circ.Actor {
	return circ.Actor{
		Name:      c.Request().Header.Get("X-Staff-Username"),
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
}

// holdsActorFrom is actorFrom in the holds package's terms.
func holdsActorFrom(c echo.Context) holds.Actor {
	a := actorFrom(c)
	return holds.Actor{Name: a.Name, IP: a.IP, UserAgent: a.UserAgent, RequestID: a.RequestID}
}
