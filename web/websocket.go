package web

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"bet-manager/logger"
)

// WSMessage WebSocket消息结构
type WSMessage struct {
	Type      string      `json:"type"`
	LeagueID  int64       `json:"league_id,omitempty"`
	UserID    int64       `json:"user_id,omitempty"`
	Username  string      `json:"username,omitempty"`
	Content   string      `json:"content,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Client WebSocket客户端
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	filters   map[string]bool // 消息类型过滤器
	leagueIDs map[int64]bool  // 联盟过滤器
}

// Hub WebSocket Hub
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub 创建新的Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Printf("[WebSocket] Client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Printf("[WebSocket] Client unregistered. Total clients: %d", len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.shouldReceive(message) {
					continue
				}

				select {
				case client.send <- h.marshalMessage(message):
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast 广播消息（实现EventBroadcaster接口）
func (h *Hub) Broadcast(message interface{}) {
	if wsMsg, ok := message.(*WSMessage); ok {
		h.broadcast <- wsMsg
		return
	}

	if msgMap, ok := message.(map[string]interface{}); ok {
		wsMsg := &WSMessage{}

		if v, ok := msgMap["type"].(string); ok {
			wsMsg.Type = v
		}
		if v, ok := msgMap["league_id"].(int64); ok {
			wsMsg.LeagueID = v
		}
		if v, ok := msgMap["user_id"].(int64); ok {
			wsMsg.UserID = v
		}
		if v, ok := msgMap["username"].(string); ok {
			wsMsg.Username = v
		}
		if v, ok := msgMap["content"].(string); ok {
			wsMsg.Content = v
		}
		if v, ok := msgMap["timestamp"].(string); ok {
			wsMsg.Timestamp = v
		}
		if v, ok := msgMap["data"]; ok {
			wsMsg.Data = v
		}

		h.broadcast <- wsMsg
	}
}

// marshalMessage 序列化消息
func (h *Hub) marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("[WebSocket] Failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}

// shouldReceive 检查客户端是否应该接收消息
func (c *Client) shouldReceive(message *WSMessage) bool {
	// 没有设置过滤器的客户端接收所有消息
	if len(c.filters) == 0 && len(c.leagueIDs) == 0 {
		return true
	}

	if len(c.filters) > 0 {
		if _, ok := c.filters[message.Type]; !ok {
			return false
		}
	}

	if len(c.leagueIDs) > 0 {
		if message.LeagueID == 0 {
			return false
		}
		if _, ok := c.leagueIDs[message.LeagueID]; !ok {
			return false
		}
	}

	return true
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("[WebSocket] Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage 处理客户端发送的消息（订阅过滤器）
func (c *Client) handleMessage(message []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Errorf("[WebSocket] Failed to unmarshal client message: %v", err)
		return
	}

	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	switch msgType {
	case "subscribe":
		if filters, ok := msg["message_types"].([]interface{}); ok {
			c.filters = make(map[string]bool)
			for _, f := range filters {
				if filter, ok := f.(string); ok {
					c.filters[filter] = true
				}
			}
		}

		if leagueIDs, ok := msg["league_ids"].([]interface{}); ok {
			c.leagueIDs = make(map[int64]bool)
			for _, l := range leagueIDs {
				if leagueID, ok := l.(float64); ok {
					c.leagueIDs[int64(leagueID)] = true
				}
			}
		}

		logger.Printf("[WebSocket] Client subscribed with filters: %v, leagues: %v", c.filters, c.leagueIDs)

	case "unsubscribe":
		c.filters = make(map[string]bool)
		c.leagueIDs = make(map[int64]bool)
		logger.Println("[WebSocket] Client unsubscribed")
	}
}
