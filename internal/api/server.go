// Package api serves the pipeline over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"riskgraph/internal/logging"
	"riskgraph/internal/orchestrate"
	"riskgraph/internal/store"
	"riskgraph/pkg/types"
)

// Evaluator runs one pipeline evaluation. *orchestrate.Engine implements it.
type Evaluator interface {
	Run(ctx context.Context, tx types.Transaction, customer types.CustomerProfile) (*orchestrate.Result, error)
}

// Server is the HTTP front of the pipeline.
type Server struct {
	eval   Evaluator
	store  store.Store
	router *gin.Engine
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger overrides the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer wires the routes. st may be nil, in which case the review and
// audit routes answer 503.
func NewServer(eval Evaluator, st store.Store, opts ...ServerOption) *Server {
	s := &Server{
		eval:   eval,
		store:  st,
		logger: logging.New("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.handleHealth)
	router.POST("/orchestrate", s.handleOrchestrate)

	router.GET("/decisions/:trace_id", s.handleGetDecision)
	router.GET("/traces/:trace_id", s.handleGetTrace)

	reviews := router.Group("/reviews")
	{
		reviews.GET("", s.handleListReviews)
		reviews.GET("/:id", s.handleGetReview)
		reviews.POST("/:id/resolve", s.handleResolveReview)
	}

	s.router = router
	return s
}

// Handler returns the router, for tests and custom servers.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
