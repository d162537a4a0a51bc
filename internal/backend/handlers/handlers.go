package handlers

import (
	"log/slog"
	"strings"
	"time"

	"SilentFail/internal/backend/dependencies"
	"SilentFail/internal/backend/services"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	heartbeatService *services.HeartbeatService
	sweepService     *services.SweepService
	monitorService   *services.MonitorService
	uptimeService    *services.UptimeService
	ownerService     *services.OwnerService
	events           *services.EventPublisher
	cronSecret       string
	openCron         bool
	now              func() time.Time
	logger           *slog.Logger
}

func NewHandlers(container *dependencies.Container) *Handlers {
	logger := container.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := container.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Handlers{
		heartbeatService: container.HeartbeatService,
		sweepService:     container.SweepService,
		monitorService:   container.MonitorService,
		uptimeService:    container.UptimeService,
		ownerService:     container.OwnerService,
		events:           container.Events,
		cronSecret:       container.Config.Security.CronSecret,
		openCron:         container.Config.Server.Mode != gin.ReleaseMode,
		now:              now,
		logger:           logger.With("component", "http"),
	}
}

// bearerToken токен из заголовка Authorization без префикса Bearer
func bearerToken(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return ""
}
