// Package server exposes the optimizer over HTTP with gin.
//
// Synchronous searches are tied to the request context, so a client that
// disconnects cancels its search. Long searches go through the job API:
// POST /v1/searches returns an id to poll, and DELETE cancels it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"team-optimizer/internal/engine"
	"team-optimizer/internal/logging"
	"team-optimizer/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request and job logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records job gauges and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// Server wires the engine into a gin router.
type Server struct {
	eng      *engine.Engine
	log      *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	jobs     *Jobs
	router   *gin.Engine
}

// New builds the router. Call Close to stop background jobs.
func New(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{eng: eng, log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.jobs = NewJobs(eng, s.log, s.metrics)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")
	v1.GET("/units", s.listUnits)
	v1.GET("/traits", s.listTraits)
	v1.POST("/evaluate", s.evaluate)
	v1.POST("/search", s.search)
	v1.POST("/searches", s.startJob)
	v1.GET("/searches/:id", s.getJob)
	v1.DELETE("/searches/:id", s.cancelJob)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Jobs returns the asynchronous job registry.
func (s *Server) Jobs() *Jobs { return s.jobs }

// Close cancels running jobs.
func (s *Server) Close() { s.jobs.Close() }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.jobs.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
