package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256

	// 房間不存在或已停用時的關閉代碼
	CloseRoomUnavailable = 4004
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	conn      *websocket.Conn
	id        string      // 連線 token，綁定到與會者
	send      chan []byte // 消息發送通道，用於異步傳送消息
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send 將訊息放入發送隊列，隊列已滿或連線已關閉時回傳 false
func (c *Client) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close 可以重複呼叫；send 通道不會被關閉，避免廣播時寫入已關閉的通道
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// HandleConnection 處理新的 WebSocket 連線直到斷線
func (c *ConferenceService) HandleConnection(ctx context.Context, conn *websocket.Conn, roomID string, readLimit int64) {
	client := NewClient(conn)

	session, err := c.Connect(ctx, roomID, client)
	if err != nil {
		msg := websocket.FormatCloseMessage(CloseRoomUnavailable, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		client.Close()
		return
	}

	// 確保連接關閉時清理資源
	defer func() {
		session.Disconnect(ctx)
		client.Close()
	}()

	go client.writePump()
	client.readPump(ctx, session, readLimit)
}

// readPump 持續讀取訊息並依序交給 session 處理
func (c *Client) readPump(ctx context.Context, session *Session, readLimit int64) {
	if readLimit > 0 {
		c.conn.SetReadLimit(readLimit)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", c.id).Msg("websocket unexpected close error")
			}
			return
		}

		// 同一連線的訊息在這裡同步處理，下一則訊息要等上一則處理完才會讀取
		session.HandleMessage(ctx, message)
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (c *Client) writePump() {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
