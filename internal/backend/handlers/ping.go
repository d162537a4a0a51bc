package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/services"
	"SilentFail/pkg/validator"

	"github.com/gin-gonic/gin"
)

const terminalContentType = "text/plain; charset=utf-8"

// pingSecret секрет монитора из ?secret= или Authorization: Bearer
func pingSecret(c *gin.Context) string {
	if secret := c.Query("secret"); secret != "" {
		return secret
	}
	return bearerToken(c)
}

func wantsJSON(c *gin.Context) bool {
	if c.Query("format") == "json" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// Heartbeat принимает пинг от задачи
func (h *Handlers) Heartbeat(c *gin.Context) {
	key := c.Param("key")

	result, err := h.heartbeatService.ProcessHeartbeat(c.Request.Context(), key, pingSecret(c), h.now())
	if err != nil {
		h.respondPingError(c, key, err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse("heartbeat_received", result))
		return
	}

	card := renderTerminalCard("ONLINE", []metric{
		{"Monitor Name", result.MonitorName},
		{"Status", "UP 🚀"},
		{"Drift", fmt.Sprintf("%d s", result.DriftSeconds)},
		{"Last Ping", result.ReceivedAt.Format(time.TimeOnly) + " UTC"},
		{"Grace Period", fmt.Sprintf("%d min", result.NewGracePeriod)},
		{"Message", "Heartbeat synced"},
	}, cardSuccess)
	c.Data(http.StatusOK, terminalContentType, []byte(card))
}

// ReportFailure тело запроса лог падения задачи
func (h *Handlers) ReportFailure(c *gin.Context) {
	key := c.Param("key")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, validator.MaxFailureBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Failed to read request body"))
		return
	}

	result, err := h.heartbeatService.ReportFailure(c.Request.Context(), key, pingSecret(c), string(body), h.now())
	if err != nil {
		h.respondPingError(c, key, err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusAccepted, SuccessResponse("failure_recorded", result))
		return
	}

	card := renderTerminalCard("FAILURE RECORDED", []metric{
		{"Monitor Name", result.MonitorName},
		{"Status", string(models.MonitorStatusDown)},
		{"Previous", string(result.PreviousStatus)},
		{"Reported At", result.ReportedAt.Format(time.TimeOnly) + " UTC"},
		{"Message", "Owner will see the incident"},
	}, cardWarning)
	c.Data(http.StatusAccepted, terminalContentType, []byte(card))
}

func (h *Handlers) respondPingError(c *gin.Context, key string, err error) {
	if wantsJSON(c) {
		h.respondError(c, err, "ping")
		return
	}

	switch {
	case errors.Is(err, services.ErrMonitorNotFound):
		c.Data(http.StatusNotFound, terminalContentType, []byte(renderTerminalCard("NOT FOUND", []metric{
			{"Error Code", "404"},
			{"Key Provided", key},
			{"Message", "Invalid Monitor Key"},
			{"Action", "Check configuration"},
		}, cardError)))
	case errors.Is(err, services.ErrUnauthorized):
		c.Data(http.StatusUnauthorized, terminalContentType, []byte("Unauthorized: Invalid Secret\n"))
	default:
		h.logger.Error("ping failed", "error", err)
		c.Data(http.StatusInternalServerError, terminalContentType, []byte(renderTerminalCard("SYSTEM FAILURE", []metric{
			{"Error Code", "500"},
			{"Type", "Internal Server Error"},
			{"Details", "Database or logic failure"},
			{"Timestamp", h.now().Format(time.RFC3339)},
		}, cardError)))
	}
}
