package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"SilentFail/internal/backend/dependencies"
	"SilentFail/internal/backend/handlers"
	"SilentFail/pkg/uuidutil"
	"SilentFail/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
)

type Server struct {
	router     *gin.Engine
	config     *Config
	container  *dependencies.Container
	handlers   *handlers.Handlers
	httpServer *http.Server
}

type Config struct {
	Port int
	Mode string
}

// New создает сервер с dependency injection
func New(config *Config, container *dependencies.Container) *Server {
	switch config.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(config.Mode)
	}

	// ошибки ShouldBindJSON называют поля как в JSON
	if engine, ok := binding.Validator.Engine().(*playground.Validate); ok {
		engine.RegisterTagNameFunc(validator.JSONFieldName)
	}

	server := &Server{
		router:    gin.New(),
		config:    config,
		container: container,
		handlers:  handlers.NewHandlers(container),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddlewares() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	// CORS middleware
	s.router.Use(s.corsMiddleware())

	// Request ID middleware
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)

	// API v1 group
	api := s.router.Group("/api/v1")
	{
		// Heartbeat routes (для наблюдаемых задач)
		ping := api.Group("/ping")
		{
			ping.GET("/:key", s.handlers.Heartbeat)
			ping.POST("/:key", s.handlers.ReportFailure)
		}

		// Cron routes (для внешнего планировщика)
		cron := api.Group("/cron")
		cron.Use(s.handlers.CronAuthMiddleware())
		{
			cron.GET("/check", s.handlers.CronCheck)
		}

		// Monitors routes
		monitors := api.Group("/monitors")
		monitors.Use(s.handlers.OwnerAuthMiddleware())
		{
			monitors.GET("", s.handlers.ListMonitors)
			monitors.POST("", s.handlers.CreateMonitor)
			monitors.GET("/:id", s.handlers.GetMonitor)
			monitors.PATCH("/:id", s.handlers.UpdateMonitor)
			monitors.DELETE("/:id", s.handlers.DeleteMonitor)
			monitors.POST("/:id/rotate-key", s.handlers.RotateMonitorKey)
			monitors.GET("/:id/uptime", s.handlers.GetUptime)
		}

		// Account routes
		account := api.Group("/account")
		account.Use(s.handlers.OwnerAuthMiddleware())
		{
			account.POST("/api-key", s.handlers.RotateAPIKey)
			account.DELETE("", s.handlers.DeleteAccount)
		}
	}

	// WebSocket routes
	ws := s.router.Group("/ws")
	ws.Use(s.handlers.OwnerAuthMiddleware())
	{
		ws.GET("/monitors", s.handlers.MonitorsWebSocket)
	}

	// 404 handler
	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.container.Config.App.Name,
		"version":   s.container.Config.App.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) readyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Проверяем подключение к БД
	if err := s.container.Database.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "dependency", "database", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "Database not connected",
		})
		return
	}

	// Проверяем подключение к Redis
	if err := s.container.Queue.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "dependency", "redis", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "Redis not connected",
		})
		return
	}

	backlog, err := s.container.AlertService.Backlog(ctx)
	if err != nil {
		slog.Warn("readiness check failed", "dependency", "alert_queue", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "Alert queue unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"database":      "connected",
		"redis":         "connected",
		"alert_backlog": backlog,
		"timestamp":     time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Endpoint not found",
		"path":    c.Request.URL.Path,
	})
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQuery(c.Request.URL.Query())

		// Продолжаем обработку
		c.Next()

		// Логируем после обработки
		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if query != "" {
			path = path + "?" + query
		}

		logger := slog.Info
		if statusCode >= 400 {
			logger = slog.Warn
		}
		if statusCode >= 500 {
			logger = slog.Error
		}

		logger("HTTP request",
			"request_id", c.GetString("request_id"),
			"status", statusCode,
			"method", method,
			"path", path,
			"ip", clientIP,
			"latency", latency,
			"error", errorMessage,
		)
	}
}

// redactQuery скрывает секреты мониторов и ключи владельцев в логах
func redactQuery(values url.Values) string {
	for _, key := range []string{"secret", "api_key"} {
		if values.Has(key) {
			values.Set(key, "REDACTED")
		}
	}
	return values.Encode()
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = "req-" + uuidutil.New()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("Starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if s.container != nil {
		if err := s.container.Close(); err != nil {
			slog.Error("Failed to close dependencies", "error", err)
		}
	}

	slog.Info("Server shutdown completed")
	return nil
}

// GetRouter возвращает router для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
