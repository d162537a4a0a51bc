package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RotateAPIKey выдает новый ключ владельца, старый сразу перестает работать
func (h *Handlers) RotateAPIKey(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	apiKey, err := h.ownerService.RotateAPIKey(c.Request.Context(), owner.ID)
	if err != nil {
		h.respondError(c, err, "rotate api key")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("api_key_rotated", gin.H{
		"owner_id": owner.ID,
		"api_key":  apiKey,
	}))
}

// DeleteAccount удаляет владельца вместе со всеми мониторами
func (h *Handlers) DeleteAccount(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	if err := h.ownerService.DeleteAccount(c.Request.Context(), owner.ID, h.now()); err != nil {
		h.respondError(c, err, "delete account")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("account_deleted", gin.H{
		"owner_id": owner.ID,
	}))
}
