package server

import (
	"context"
	"net/http"

	"DemoCrate/core/auth"
	"DemoCrate/core/board"
	"DemoCrate/logger"

	"github.com/gorilla/websocket"
)

var boardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 看板页面与API可能不同源，鉴权靠token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BoardFeedHandler 看板 WebSocket 入口。浏览器原生 WebSocket 不能带
// Authorization 头，token 放在查询参数里。
func (h *APIHandler) BoardFeedHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := boardUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("board websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &board.Client{
		Hub:       h.hub,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		OrgID:     claims.OrgID,
		StaffID:   claims.StaffID,
		StaffName: claims.Username,
	}
	h.hub.Register(client)

	// 升级后的连接生命周期独立于本次HTTP请求
	go client.WritePump()
	go client.ReadPump(context.Background())
}
