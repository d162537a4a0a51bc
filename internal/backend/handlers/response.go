package handlers

import (
	"errors"
	"net/http"
	"time"

	"SilentFail/internal/backend/services"
	"SilentFail/pkg/validator"

	"github.com/gin-gonic/gin"
)

// создает успешный JSON ответ
func SuccessResponse(message string, data interface{}) gin.H {
	response := gin.H{
		"success":   true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	if data != nil {
		response["data"] = data
	}

	return response
}

// создает JSON ответ с ошибкой
func ErrorResponse(code string, message string) gin.H {
	return gin.H{
		"success":   false,
		"error":     code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
}

// respondError переводит ошибку сервиса в HTTP статус
func (h *Handlers) respondError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrMonitorNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", "Monitor not found"))
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse("unauthorized", "Invalid credentials"))
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse("validation_failed", err.Error()))
	case errors.Is(err, services.ErrSweepInProgress):
		c.JSON(http.StatusConflict, ErrorResponse("sweep_in_progress", "Another sweep is running"))
	default:
		h.logger.Error(action+" failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse("internal_error", "Internal server error"))
	}
}

// respondBindError нарушение тегов binding отдается как validation_failed
func respondBindError(c *gin.Context, err error) {
	if msg, ok := validator.DescribeFieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, ErrorResponse("validation_failed", msg))
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
}
