package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"DemoCrate/cache"
	"DemoCrate/logger"
	"DemoCrate/model"

	"github.com/gorilla/websocket"
)

// EventType 看板事件类型
type EventType string

const (
	EvtTrackCreated    EventType = "track_created"    // 新投稿进入inbox
	EvtTrackMoved      EventType = "track_moved"      // 阶段流转（advance/move/release setup）
	EvtTrackRejected   EventType = "track_rejected"   // 淘汰归档
	EvtVoteCast        EventType = "vote_cast"        // 投票
	EvtContractToggled EventType = "contract_toggled" // 合同状态变化
	EvtTrackEdited     EventType = "track_edited"     // 描述性字段编辑
	EvtPing            EventType = "ping"             // 心跳
	EvtPong            EventType = "pong"             // 心跳响应
)

// Event 推送给已打开看板的浏览器的事件
type Event struct {
	Type      EventType        `json:"type"`
	OrgID     int64            `json:"orgId,omitempty"`
	StaffID   int64            `json:"staffId,omitempty"`
	StaffName string           `json:"staffName,omitempty"`
	Track     *model.DemoTrack `json:"track,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// Client 一条已连接的看板WebSocket
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	OrgID     int64
	StaffID   int64
	StaffName string
}

// Hub 看板 WebSocket 管理中心：按厂牌分组，
// 每次提交成功的流转向同厂牌的所有连接广播，免轮询。
type Hub struct {
	// 厂牌 -> 客户端集合
	orgs map[int64]map[*Client]bool

	// 员工 -> 客户端（一个员工在一个厂牌看板只保留一个连接）
	staffClients map[string]*Client // key: orgID:staffID

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event

	mu   sync.RWMutex
	done chan struct{}
}

// NewHub 创建看板 Hub
func NewHub() *Hub {
	return &Hub{
		orgs:         make(map[int64]map[*Client]bool),
		staffClients: make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan *Event, 256),
		done:         make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case evt := <-h.broadcast:
			h.broadcastToOrg(evt)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish 向厂牌看板广播事件
func (h *Hub) Publish(evt *Event) {
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case h.broadcast <- evt:
	default:
		logger.Warn("board event dropped, broadcast buffer full",
			logger.Int64("org", evt.OrgID),
			logger.String("type", string(evt.Type)))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := h.staffKey(client.OrgID, client.StaffID)

	// 同一员工重复打开看板时踢掉旧连接
	if old, exists := h.staffClients[key]; exists {
		h.removeClient(old)
	}

	if h.orgs[client.OrgID] == nil {
		h.orgs[client.OrgID] = make(map[*Client]bool)
	}
	h.orgs[client.OrgID][client] = true
	h.staffClients[key] = client

	// 更新 Redis 中的在线状态
	ctx := context.Background()
	boardCache := cache.NewBoardCache()
	if err := boardCache.UpdateStaffPresence(ctx, client.OrgID, client.StaffID); err != nil {
		logger.Warn("failed to update staff presence on register",
			logger.ErrorField(err),
			logger.Int64("org", client.OrgID),
			logger.Int64("staff", client.StaffID))
	}

	logger.Info("board client registered",
		logger.Int64("org", client.OrgID),
		logger.Int64("staff", client.StaffID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeClient(client)
}

// removeClient 移除客户端（内部方法，需要持有锁）
func (h *Hub) removeClient(client *Client) {
	orgID := client.OrgID
	key := h.staffKey(orgID, client.StaffID)

	if _, ok := h.orgs[orgID]; ok {
		if _, ok := h.orgs[orgID][client]; ok {
			delete(h.orgs[orgID], client)
			close(client.Send)

			if len(h.orgs[orgID]) == 0 {
				delete(h.orgs, orgID)
			}
		}
	}
	delete(h.staffClients, key)

	ctx := context.Background()
	boardCache := cache.NewBoardCache()
	if err := boardCache.RemoveStaffPresence(ctx, orgID, client.StaffID); err != nil {
		logger.Warn("failed to remove staff presence on unregister",
			logger.ErrorField(err),
			logger.Int64("org", orgID),
			logger.Int64("staff", client.StaffID))
	}

	logger.Info("board client unregistered",
		logger.Int64("org", orgID),
		logger.Int64("staff", client.StaffID))
}

func (h *Hub) broadcastToOrg(evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Error("failed to marshal board event", logger.ErrorField(err))
		return
	}

	h.mu.RLock()
	clients, ok := h.orgs[evt.OrgID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// 复制客户端列表以避免长时间持有锁
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满，直接摘除客户端。不能走 unregister 通道：
			// 本方法运行在 Run 协程上，往自己消费的通道发送会把 Hub 卡死
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.orgs {
		for client := range clients {
			close(client.Send)
		}
	}
	h.orgs = make(map[int64]map[*Client]bool)
	h.staffClients = make(map[string]*Client)
}

func (h *Hub) staffKey(orgID, staffID int64) string {
	return fmt.Sprintf("%d:%d", orgID, staffID)
}

// GetOrgClientCount 获取厂牌看板当前连接数
func (h *Hub) GetOrgClientCount(orgID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环。看板连接是单向推送为主，
// 客户端只发心跳，其余消息忽略。
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("board websocket read error",
						logger.ErrorField(err),
						logger.Int64("org", c.OrgID),
						logger.Int64("staff", c.StaffID))
				}
				return
			}

			var evt Event
			if err := json.Unmarshal(message, &evt); err != nil {
				continue
			}

			if evt.Type == EvtPing {
				boardCache := cache.NewBoardCache()
				if err := boardCache.UpdateStaffPresence(ctx, c.OrgID, c.StaffID); err != nil {
					logger.Warn("failed to update staff presence",
						logger.ErrorField(err),
						logger.Int64("org", c.OrgID),
						logger.Int64("staff", c.StaffID))
				}

				pong := &Event{Type: EvtPong, Timestamp: time.Now().UnixMilli()}
				if data, err := json.Marshal(pong); err == nil {
					select {
					case c.Send <- data:
					default:
					}
				}
			}
		}
	}
}

// WritePump 写入消息循环
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

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
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
