// Package server exposes the store, calendar and controller operations as a
// JSON API for the rendering layer. The rendering layer performs no business
// logic: it calls these routes and paints what comes back.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vocalroom/internal/session"
	"vocalroom/internal/store"
)

const sessionIDHeader = "X-Session-ID"

// Server wires the session store and backend into a gin engine.
type Server struct {
	engine   *gin.Engine
	sessions *SessionStore
	backend  store.Backend
	logger   *zerolog.Logger
}

// New builds the API server.
func New(backend store.Backend, factory func() *session.Controller, logger *zerolog.Logger, ratePerSec float64, burst int) *Server {
	s := &Server{
		engine:   gin.New(),
		sessions: NewSessionStore(factory, 30*time.Minute),
		backend:  backend,
		logger:   logger,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestID())
	s.engine.Use(requestLogger(logger))

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	s.engine.GET("/readyz", s.handleReady)

	api := s.engine.Group("/api")
	api.Use(throttleMutations(rate.NewLimiter(rate.Limit(ratePerSec), burst)))
	{
		api.GET("/session", s.handleSessionInfo)
		api.PUT("/session/role", s.handleSetRole)
		api.PUT("/session/name", s.handleSetName)

		api.GET("/calendar", s.handleCalendar)
		api.POST("/calendar/next", s.handleNextMonth)
		api.POST("/calendar/prev", s.handlePrevMonth)
		api.POST("/calendar/month", s.handleSetMonth)

		api.POST("/days/:date/open", s.handleOpenDate)
		api.DELETE("/days/selection", s.handleCloseDate)
		api.GET("/days/:date/slots", s.handleSlots)

		api.POST("/reservations", s.handleReserve)
		api.DELETE("/reservations/:id", s.handleCancel)
		api.GET("/reservations/mine", s.handleMyReservations)

		api.POST("/reservations/:id/edit", s.handleStartEdit)
		api.DELETE("/session/editing", s.handleCancelEdit)
		api.PATCH("/reservations/:id", s.handleAdminRename)
		api.DELETE("/admin/reservations/:id", s.handleAdminDelete)
		api.GET("/admin/export", s.handleExport)
	}

	return s
}

// Handler returns the underlying http.Handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves the API on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	return srv.ListenAndServe()
}

// RunSessionCleanup evicts idle sessions until ctx is cancelled.
func (s *Server) RunSessionCleanup(ctx context.Context) {
	s.sessions.Run(ctx, 5*time.Minute)
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := s.backend.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "backend not ready")
			return
		}
	}
	c.String(http.StatusOK, "ready")
}

// currentSession resolves the controller for the caller's session header. A
// missing header gets the shared anonymous session, which matches a widget
// served without any login.
func (s *Server) currentSession(c *gin.Context) *clientSession {
	id := c.GetHeader(sessionIDHeader)
	if id == "" {
		id = "anonymous"
	}
	return s.sessions.GetOrCreate(id)
}
