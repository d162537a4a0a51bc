package handlers

import (
	"errors"
	"net/http"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/backend/services"

	"github.com/gin-gonic/gin"
)

const ownerContextKey = "owner"

// OwnerAuthMiddleware аутентифицирует владельца по API ключу
func (h *Handlers) OwnerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			// браузерный WebSocket не умеет ставить заголовки
			token = c.Query("api_key")
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse("missing_token", "Authorization header is required"))
			c.Abort()
			return
		}

		owner, err := h.ownerService.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, ErrorResponse("invalid_token", "Invalid API key"))
				c.Abort()
				return
			}

			h.logger.Error("owner auth failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse("auth_failed", "Authentication failed"))
			c.Abort()
			return
		}

		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

// возвращает владельца из контекста
func (h *Handlers) getOwnerFromContext(c *gin.Context) *models.Owner {
	owner, exists := c.Get(ownerContextKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse("unauthorized", "Owner not authenticated"))
		return nil
	}
	return owner.(*models.Owner)
}
