// Package gateway is the simulator's HTTP and websocket surface: REST
// endpoints over the ledger and the strategy engine, a websocket stream of
// engine events, and the /metrics and /healthz endpoints.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/indicator"
	"tradesim/internal/metrics"
	"tradesim/internal/model"
	"tradesim/internal/portfolio"
	"tradesim/internal/strategy"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Deps are the components the gateway serves. Optional ones may be nil.
type Deps struct {
	Ledger     *portfolio.Ledger
	Engine     *strategy.Engine
	Strategies *StrategyService
	Hub        *Hub
	// Journal serves /api/trades; without it the ledger's history is used.
	Journal model.TradeJournal
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	// Equity serves /api/portfolio/equity; optional.
	Equity EquityHistory
	// Channels reports internal queue fill levels for /api/stats.
	Channels func() []bus.ChannelStat
	// Redis reports publisher and breaker state for /api/stats; optional.
	Redis func() RedisStats
	// IndicatorSpecs are the default /api/indicators specs.
	IndicatorSpecs []indicator.Spec
	Logger         zerolog.Logger
}

// Server wraps the echo instance.
type Server struct {
	echo    *echo.Echo
	d       Deps
	started time.Time
	log     zerolog.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// New builds the server and registers every route.
func New(d Deps) *Server {
	if len(d.IndicatorSpecs) == 0 {
		d.IndicatorSpecs = indicator.DefaultSpecs()
	}
	if d.Strategies == nil {
		d.Strategies = NewStrategyService(d.Engine, nil, d.Hub, d.Logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		d:       d,
		started: time.Now(),
		log:     d.Logger.With().Str("component", "gateway").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogging())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	api := e.Group("/api")
	api.GET("/assets", s.listAssets)
	api.GET("/patterns", s.listPatterns)
	api.GET("/portfolio", s.getPortfolio)
	api.GET("/portfolio/summary", s.getSummary)
	api.GET("/portfolio/equity", s.listEquity)
	api.GET("/trades", s.listTrades)
	api.POST("/orders", s.placeOrder)
	api.GET("/strategy/:symbol", s.getStrategy)
	api.PUT("/strategy/:symbol", s.putStrategy)
	api.GET("/indicators/:symbol", s.getIndicators)
	api.GET("/analytics/:symbol", s.getAnalytics)
	api.GET("/events", s.listEvents)
	api.GET("/stats", s.getStats)

	e.GET("/ws", s.serveWS)
	if s.d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.d.Metrics.Handler()))
	}
	if s.d.Health != nil {
		e.GET("/healthz", echo.WrapHandler(s.d.Health))
	}
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start serves on addr until Shutdown. It never returns http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			s.log.Debug().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}

func (s *Server) serveWS(c echo.Context) error {
	if s.d.Hub == nil {
		return notFound(c, "event stream disabled")
	}
	since, err := queryInt(c, "since", 0)
	if err != nil {
		return badRequest(c, []ValidationError{{Code: "ERR_QUERY", Field: "since", Message: err.Error()}})
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("ws upgrade")
		return nil
	}
	conn.EnableWriteCompression(true)
	s.d.Hub.Register(conn, int64(since))
	return nil
}
