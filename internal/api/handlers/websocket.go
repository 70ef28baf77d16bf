package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"linguameet/internal/service"
)

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	conference  *service.ConferenceService
	roomService *service.RoomService
	upgrader    websocket.Upgrader
	readLimit   int64
}

// NewWebSocketHandler allowedOrigins 為空時接受所有來源
func NewWebSocketHandler(conference *service.ConferenceService, roomService *service.RoomService, allowedOrigins []string, readLimit int64) *WebSocketHandler {
	return &WebSocketHandler{
		conference:  conference,
		roomService: roomService,
		readLimit:   readLimit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket 確認房間可用後升級連線，連線的生命週期交給 ConferenceService
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("id")
	if _, err := h.roomService.ActiveRoom(c.Request.Context(), roomID); err != nil {
		respondError(c, err)
		return
	}

	// 升級 HTTP 連接為 WebSocket 連接，失敗時 upgrader 已回應錯誤
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}

	// 斷線後仍要完成進行中的紀錄寫入
	ctx := context.WithoutCancel(c.Request.Context())
	h.conference.HandleConnection(ctx, conn, roomID, h.readLimit)
}
