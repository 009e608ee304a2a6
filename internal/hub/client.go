package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// MessageHandler 处理一条客户端上行消息。
type MessageHandler interface {
	HandleMessage(ctx context.Context, c *Client, data []byte)
}

// HeartbeatFunc 在收到客户端 pong 时刷新玩家在线时间戳。
type HeartbeatFunc func(ctx context.Context, code string, playerID uint)

// Client 代表一条接入 Hub 的 WebSocket 连接。
// 每条连接持有自己的对账会话: 玩家面板与标记网格的权威副本在服务端。
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	roomCode   string
	playerID   uint
	send       chan []byte
	reconciler *session.Reconciler
	heartbeat  HeartbeatFunc
}

// NewClient 创建客户端并绑定对账会话。
func NewClient(h *Hub, conn *websocket.Conn, roomCode string, playerID uint, rec *session.Reconciler, heartbeat HeartbeatFunc) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		roomCode:   roomCode,
		playerID:   playerID,
		send:       make(chan []byte, sendBufferSize),
		reconciler: rec,
		heartbeat:  heartbeat,
	}
}

// RoomCode 返回连接所在的房间号。
func (c *Client) RoomCode() string { return c.roomCode }

// PlayerID 返回连接绑定的玩家 ID。
func (c *Client) PlayerID() uint { return c.playerID }

// Reconciler 返回连接的对账会话。
func (c *Client) Reconciler() *session.Reconciler { return c.reconciler }

// Send 向该连接投递一帧。连接已关闭或缓冲已满时丢弃。
func (c *Client) Send(frame []byte) {
	defer func() {
		// send 通道可能已被 Hub 关闭
		_ = recover()
	}()
	select {
	case c.send <- frame:
	default:
	}
}

// ReadPump 读取上行消息并交给 handler，pong 刷新玩家心跳。
// 读出错即注销连接，每条连接只允许一个读协程。
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.heartbeat != nil {
			c.heartbeat(ctx, c.roomCode, c.playerID)
		}
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).WithFields(logrus.Fields{
					"room_code": c.roomCode,
					"player_id": c.playerID,
				}).Warn("WebSocket read error")
			}
			return
		}
		handler.HandleMessage(ctx, c, data)
	}
}

// WritePump 把 send 通道上的帧写入连接，定期发 ping 维持活性。
// 每条连接只允许一个写协程。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
