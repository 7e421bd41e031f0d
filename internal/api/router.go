// Package api implements the HTTP and WebSocket surface documented in the
// specification's external interfaces section. Grounded on the teacher's
// gin router/middleware conventions (gzip compression, colored request
// logging); routing/CORS fine detail beyond what's documented is treated
// as out-of-scope plumbing, per the specification.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"audiolevel/internal/admission"
	"audiolevel/internal/bus"
	"audiolevel/internal/config"
	"audiolevel/internal/queue"
	"audiolevel/internal/store"
	"audiolevel/pkg/logger"
	"audiolevel/pkg/middleware"
)

// Server bundles everything the HTTP handlers depend on.
type Server struct {
	cfg       *config.Config
	store     store.Store
	queue     *queue.Queue
	admission *admission.Controller
	bus       *bus.Bus
	engine    *gin.Engine
}

// NewServer wires up the gin engine and routes.
func NewServer(cfg *config.Config, s store.Store, q *queue.Queue, adm *admission.Controller, b *bus.Bus) *Server {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(middleware.CompressionMiddleware())

	srv := &Server{cfg: cfg, store: s, queue: q, admission: adm, bus: b, engine: r}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/health/ready", s.handleHealthReady)
	s.engine.GET("/health/queue", s.handleHealthQueue)

	s.engine.GET("/upload/rate-limit", s.handleRateLimitStatus)
	s.engine.GET("/upload/queue-status", s.handleQueueStatus)
	s.engine.POST("/upload", s.handleUpload)
	s.engine.GET("/upload/job/:id", s.handleJobStatus)
	s.engine.GET("/upload/job/:id/download", s.handleDownload)

	s.engine.GET("/ws", s.handleWS)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 1 && origins[0] == "*"
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Forwarded-For, X-Real-IP")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	services := gin.H{}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		services["store"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		services["store"] = "up"
	}
	c.JSON(status, gin.H{"status": statusLabel(status), "services": services})
}

func statusLabel(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

func (s *Server) handleHealthReady(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "reason": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (s *Server) handleHealthQueue(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()
	health, err := s.queue.Health(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"waiting": health.Waiting, "active": health.Active, "completed": health.Completed,
		"failed": health.Failed, "delayed": health.Delayed, "status": health.Status,
	})
}

func (s *Server) handleQueueStatus(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()
	health, err := s.queue.Health(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": health.Status, "acceptingJobs": health.AcceptingJobs,
		"estimatedWaitTime": health.EstimatedWaitTime, "waiting": health.Waiting, "active": health.Active,
	})
}

func (s *Server) handleRateLimitStatus(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	clientID := "upload:" + admission.ClientIdentifier(c.Request)
	used, err := s.store.PeekRateLimit(ctx, clientID, s.cfg.RateLimitWindowMS)
	if err != nil {
		used = 0 // fail open, matching the limiter's own fail-open behavior
	}
	c.JSON(http.StatusOK, gin.H{
		"limit":     s.cfg.RateLimitMax,
		"remaining": max0(s.cfg.RateLimitMax - used),
		"used":      used,
		"resetAt":   time.Now().Add(time.Duration(s.cfg.RateLimitWindowMS) * time.Millisecond).Unix(),
		"windowMs":  s.cfg.RateLimitWindowMS,
	})
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 5*time.Second)
}
