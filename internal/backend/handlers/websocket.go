package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"SilentFail/internal/backend/models"
	"SilentFail/internal/shared/constants"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// доступ ограничен API ключом владельца
		return true
	},
}

// MonitorsWebSocket транслирует владельцу изменения статусов его мониторов
func (h *Handlers) MonitorsWebSocket(c *gin.Context) {
	owner := h.getOwnerFromContext(c)
	if owner == nil {
		return
	}

	sub, err := h.events.Subscribe(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to subscribe to monitor events", "error", err, "owner_id", owner.ID)
		c.JSON(http.StatusInternalServerError, ErrorResponse("subscribe_failed", "Failed to subscribe to events"))
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err, "owner_id", owner.ID)
		return
	}
	defer conn.Close()

	h.logger.Info("websocket connected for monitor events", "owner_id", owner.ID)

	if err := writeJSON(conn, SuccessResponse("connected", gin.H{"owner_id": owner.ID})); err != nil {
		return
	}

	// читаем только чтобы заметить закрытие соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.logger.Debug("monitor websocket disconnected", "owner_id", owner.ID, "error", err)
				return
			}
		}
	}()

	ping := time.NewTicker(constants.WebSocketPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			deadline := time.Now().Add(constants.WebSocketWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case data, ok := <-sub.Messages():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(constants.WebSocketWriteTimeout))
				return
			}

			var event models.MonitorEvent
			if err := json.Unmarshal(data, &event); err != nil {
				h.logger.Warn("skipping malformed monitor event", "error", err)
				continue
			}
			if event.OwnerID != owner.ID {
				continue
			}

			if err := writeJSON(conn, event); err != nil {
				h.logger.Debug("monitor websocket write error", "owner_id", owner.ID, "error", err)
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
	return conn.WriteJSON(v)
}
