package resource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "almaconnector/docs"
	"almaconnector/internal/config"
	"almaconnector/internal/constants"
	"almaconnector/internal/logger"
	"almaconnector/pkg/health"
	"almaconnector/pkg/middleware"
	"almaconnector/pkg/ratelimit"
	"almaconnector/pkg/tracing"
)

type Server struct {
	cfg     config.ServerConfig
	logger  logger.Logger
	router  *gin.Engine
	server  *http.Server
	limiter *ratelimit.PerClient
}

// NewServer wires the middleware chain, the record route, /health,
// /metrics and the API docs under /swagger. A nil handler leaves out the
// record route.
func NewServer(cfg *config.Config, handler *Handler, checks *health.CheckerRegistry, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	s := &Server{cfg: cfg.Server, logger: log, router: router}

	if cfg.Server.RateLimit.Enabled {
		rl := ratelimit.DefaultConfig()
		if cfg.Server.RateLimit.RPS > 0 {
			rl.RPS = cfg.Server.RateLimit.RPS
		}
		if cfg.Server.RateLimit.Burst > 0 {
			rl.Burst = cfg.Server.RateLimit.Burst
		}
		if cfg.Server.RateLimit.CleanupInterval > 0 {
			rl.CleanupInterval = time.Duration(cfg.Server.RateLimit.CleanupInterval) * time.Second
		}
		if cfg.Server.RateLimit.MaxAge > 0 {
			rl.MaxAge = time.Duration(cfg.Server.RateLimit.MaxAge) * time.Second
		}
		s.limiter = ratelimit.NewPerClient(rl)
		router.Use(s.limiter.Middleware())
		log.Infow("Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	router.Use(middleware.ErrorMiddleware())

	if handler != nil {
		handler.RegisterRoutes(router)
	}

	router.GET("/health", func(c *gin.Context) {
		h := checks.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.Cleanup(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "Server listening", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		s.logger.Infow("Shutting down server")
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
