// Package httpapi exposes the composition pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"salescomposer/internal/compose"
	"salescomposer/internal/feedback"
	"salescomposer/internal/ratelimit"
)

// CallerHeader identifies the agent for rate limiting.
const CallerHeader = "X-User-Id"

type Server struct {
	composer *compose.Composer
	feedback *feedback.Processor
	gatherer prometheus.Gatherer
	log      *zap.Logger
	engine   *gin.Engine
}

// New builds the router. gatherer may be nil to disable /metrics.
func New(composer *compose.Composer, proc *feedback.Processor, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{composer: composer, feedback: proc, gatherer: gatherer, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/sales")
	api.POST("/compose", s.compose)
	api.POST("/feedback", s.submitFeedback)
	api.GET("/feedback", s.listFeedback)
	api.PATCH("/feedback/:id", s.toggleFeedback)
	api.POST("/overrides", s.addOverride)
	api.PATCH("/overrides/:id", s.toggleOverride)
	api.GET("/log", s.recentLog)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then drains for up to
// ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("caller", callerID(c)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func callerID(c *gin.Context) string {
	if id := c.GetHeader(CallerHeader); id != "" {
		return id
	}
	return ratelimit.DefaultCaller
}
