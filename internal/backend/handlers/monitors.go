package handlers

import (
	"net/http"
	"strconv"

	"SilentFail/internal/backend/models"

	"github.com/gin-gonic/gin"
)

const defaultUptimeHours = 24

func (h *Handlers) CreateMonitor(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	var req models.CreateMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create monitor request", "error", err)
		respondBindError(c, err)
		return
	}

	monitor, err := h.monitorService.CreateMonitor(c.Request.Context(), owner.ID, &req, h.now())
	if err != nil {
		h.respondError(c, err, "create monitor")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse("monitor_created", monitor))
}

func (h *Handlers) ListMonitors(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	monitors, err := h.monitorService.ListMonitors(c.Request.Context(), owner.ID)
	if err != nil {
		h.respondError(c, err, "list monitors")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("monitors_retrieved", gin.H{
		"monitors": monitors,
		"count":    len(monitors),
	}))
}

func (h *Handlers) GetMonitor(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	detail, err := h.monitorService.GetMonitorDetail(c.Request.Context(), owner.ID, c.Param("id"), h.now())
	if err != nil {
		h.respondError(c, err, "get monitor")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("monitor_retrieved", detail))
}

func (h *Handlers) UpdateMonitor(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	var req models.UpdateMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	monitor, err := h.monitorService.UpdateMonitor(c.Request.Context(), owner.ID, c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err, "update monitor")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("monitor_updated", monitor))
}

func (h *Handlers) DeleteMonitor(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	if err := h.monitorService.DeleteMonitor(c.Request.Context(), owner.ID, c.Param("id"), h.now()); err != nil {
		h.respondError(c, err, "delete monitor")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("monitor_deleted", nil))
}

func (h *Handlers) RotateMonitorKey(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	monitor, err := h.monitorService.RotateKey(c.Request.Context(), owner.ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "rotate monitor key")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("monitor_key_rotated", monitor))
}

// GetUptime доступность за последние hours часов, по умолчанию сутки
func (h *Handlers) GetUptime(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	hours := defaultUptimeHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse("validation_failed", "hours must be an integer"))
			return
		}
		hours = parsed
	}

	uptime, err := h.uptimeService.GetUptime(c.Request.Context(), owner.ID, c.Param("id"), hours, h.now())
	if err != nil {
		h.respondError(c, err, "get uptime")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("uptime_retrieved", uptime))
}
