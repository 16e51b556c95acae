package handler

import (
	"net/http"

	"notevault-server/internal/middleware"
	"notevault-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
	logger   *zap.SugaredLogger
}

// NewWebSocketHandler upgrades authenticated requests into note event
// subscriptions. Cross-origin upgrades are refused since the session cookie
// rides along with them.
func NewWebSocketHandler(manager *websocket.Manager, readBuffer, writeBuffer int, logger *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Failed to upgrade connection", "user_id", userID, "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, conn, h.manager)
	if !h.manager.Add(client) {
		conn.Close()
		return
	}

	h.logger.Debugw("Websocket client connected", "user_id", userID, "client_id", client.ID)

	go client.WritePump()
	go client.ReadPump()
}
