package jukebox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"metajuke/logger"

	"github.com/gorilla/websocket"
)

// allTables 订阅全部桌台事件的 key
const allTables = "*"

// FeedMessage 推送给观察者的消息
type FeedMessage struct {
	Type      string `json:"type"` // event, ping, pong, error
	Event     *Event `json:"event,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Client 事件订阅连接
type Client struct {
	Hub      *EventHub
	Conn     *websocket.Conn
	Send     chan []byte
	TableID  string // 为空表示订阅所有桌台
	Observer string
}

// EventHub 按桌台分发事件的 WebSocket 中心，实现 Emitter
type EventHub struct {
	// 桌台 -> 客户端集合
	tables map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewEventHub 创建 Hub
func NewEventHub() *EventHub {
	return &EventHub{
		tables:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
		done:       make(chan struct{}),
	}
}

// Run 主循环
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case evt := <-h.broadcast:
			h.dispatch(evt)
		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *EventHub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Emit 实现 Emitter。缓冲满时丢弃，事件只保证尽力送达
func (h *EventHub) Emit(_ context.Context, evt *Event) {
	select {
	case h.broadcast <- evt:
	case <-h.done:
	default:
		logger.Warn("事件广播缓冲已满，丢弃事件", logger.String("type", string(evt.Type)))
	}
}

func key(tableID string) string {
	if tableID == "" {
		return allTables
	}
	return tableID
}

func (h *EventHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := key(client.TableID)
	if h.tables[k] == nil {
		h.tables[k] = make(map[*Client]bool)
	}
	h.tables[k][client] = true
	logger.Info("observer registered", logger.String("table", k), logger.String("observer", client.Observer))
}

func (h *EventHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClient(client)
}

// removeClient 需要持有锁
func (h *EventHub) removeClient(client *Client) {
	k := key(client.TableID)
	if clients, ok := h.tables[k]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				delete(h.tables, k)
			}
		}
	}
}

func (h *EventHub) dispatch(evt *Event) {
	data, err := json.Marshal(&FeedMessage{Type: "event", Event: evt, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		logger.Warn("事件序列化失败", logger.ErrorField(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0)
	for client := range h.tables[allTables] {
		targets = append(targets, client)
	}
	if evt.TableID != "" {
		for client := range h.tables[evt.TableID] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range targets {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	if len(slow) > 0 {
		// 发送缓冲区满，移除客户端
		h.mu.Lock()
		for _, client := range slow {
			h.removeClient(client)
		}
		h.mu.Unlock()
	}
}

func (h *EventHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.tables {
		for client := range clients {
			close(client.Send)
		}
	}
	h.tables = make(map[string]map[*Client]bool)
}

// Register 注册客户端
func (h *EventHub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *EventHub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount 某个桌台（空为全局）的订阅数
func (h *EventHub) ClientCount(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables[key(tableID)])
}

// ========== Client 方法 ==========

// ReadPump 只处理心跳，订阅流是只读的
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.String("table", c.TableID))
			}
			return
		}

		var msg FeedMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "ping" {
			continue
		}
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if data, err := json.Marshal(&FeedMessage{Type: "pong", Timestamp: time.Now().UnixMilli()}); err == nil {
			select {
			case c.Send <- data:
			default:
			}
		}
	}
}

// WritePump 写入循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
