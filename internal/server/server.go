package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"designlens/internal/config"
	"designlens/internal/handler"
	"designlens/internal/middleware"
	"designlens/internal/transport/httpdto"
	"designlens/internal/websocket"
	"designlens/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	health     map[string]HealthCheck
}

var (
	ReleaseMode = "production"
	TestMode    = "test"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	Sessions  *handler.SessionHandler
	Workspace *handler.WorkspaceHandler
	Credits   *handler.CreditHandler
	Socket    *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.Server.Environment {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
		health: make(map[string]HealthCheck),
	}
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// AddHealthCheck registers a dependency reported by /health.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.health[name] = check
}

func (s *Server) SetupRoutes(handlers *Handlers, tokens middleware.TokenParser, limiter middleware.SendLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})
	s.engine.GET("/health", s.healthHandler)

	api := s.engine.Group("/api/v1", middleware.AccountMiddleware(tokens))
	{
		api.POST("/sessions", handlers.Sessions.Create)
		api.GET("/sessions", handlers.Sessions.List)
		api.PATCH("/sessions/:id", handlers.Sessions.Rename)
		api.POST("/sessions/:id/switch", handlers.Sessions.Switch)
		api.GET("/sessions/:id/messages", handlers.Sessions.Messages)

		api.GET("/workspace", handlers.Workspace.Get)
		api.POST("/workspace/attachments/url", handlers.Workspace.AddURL)
		api.POST("/workspace/attachments/file", handlers.Workspace.AddFile)
		api.DELETE("/workspace/attachments/:aid", handlers.Workspace.RemoveAttachment)
		api.POST("/workspace/attachments/:aid/recapture", handlers.Workspace.Recapture)
		api.POST("/workspace/send", middleware.SendRateLimitMiddleware(limiter, s.logger), handlers.Workspace.Send)

		api.GET("/credits", handlers.Credits.Credits)
		api.GET("/templates", handlers.Credits.Templates)

		if handlers.Socket != nil {
			api.GET("/ws", handlers.Socket.Connect)
		}
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Success: false, Data: status, Error: "unhealthy", Code: "UNHEALTHY"})
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
}

// Start serves until SIGINT or SIGTERM, then drains for up to five seconds.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		s.logger.Errorf("Error in starting the server: %s", err)
		return err
	case <-quit:
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
