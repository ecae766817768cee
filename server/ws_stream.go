package server

import (
	"context"
	"net/http"

	"metajuke/core/auth"
	"metajuke/core/jukebox"
	"metajuke/logger"
	"metajuke/model"

	"github.com/gorilla/websocket"
)

// EventStreamHandler 观察者事件推送
type EventStreamHandler struct {
	hub      *jukebox.EventHub
	secret   string
	upgrader websocket.Upgrader
}

// NewEventStreamHandler 创建事件推送处理器
func NewEventStreamHandler(hub *jukebox.EventHub, jwtSecret string) *EventStreamHandler {
	return &EventStreamHandler{
		hub:    hub,
		secret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP GET /ws/events?table=<id>&token=<jwt>
// table 为空时订阅所有桌台；浏览器 WebSocket 无法带 header，所以 token 走查询参数
func (h *EventStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	token := query.Get("token")
	if token == "" {
		if t, ok := bearerToken(r); ok {
			token = t
		}
	}
	claims, err := auth.ParseToken(h.secret, token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid token", Code: "unauthenticated"})
		return
	}

	tableID := query.Get("table")
	if tableID != "" {
		id, err := model.ParseID(tableID)
		if err != nil {
			badRequest(w, "invalid table")
			return
		}
		tableID = id.String()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := &jukebox.Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		TableID:  tableID,
		Observer: claims.Address,
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background())

	logger.Info("事件订阅建立",
		logger.String("table", tableID),
		logger.String("observer", claims.Address))
}
