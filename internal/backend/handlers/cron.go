package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"SilentFail/internal/backend/services"
	sharedmodels "SilentFail/internal/shared/models"

	"github.com/gin-gonic/gin"
)

// CronAuthMiddleware пропускает только запросы с секретом планировщика
func (h *Handlers) CronAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cronSecret == "" {
			if h.openCron {
				c.Next()
				return
			}
			h.logger.Error("cron secret not configured, refusing sweep trigger")
			c.AbortWithStatusJSON(http.StatusUnauthorized, sharedmodels.CronCheckResponse{Error: "Unauthorized"})
			return
		}

		token := bearerToken(c)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
			h.logger.Warn("cron trigger rejected", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, sharedmodels.CronCheckResponse{Error: "Unauthorized"})
			return
		}

		c.Next()
	}
}

// CronCheck запускает проход по просроченным мониторам
func (h *Handlers) CronCheck(c *gin.Context) {
	result, err := h.sweepService.Sweep(c.Request.Context(), h.now())
	if err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			c.JSON(http.StatusConflict, sharedmodels.CronCheckResponse{Error: "sweep already in progress"})
			return
		}
		h.logger.Error("sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, sharedmodels.CronCheckResponse{Error: "sweep failed"})
		return
	}

	c.JSON(http.StatusOK, sharedmodels.CronCheckResponse{
		Success:    true,
		Checked:    result.Checked,
		MarkedDown: result.MarkedDown,
	})
}
