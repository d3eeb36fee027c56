package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// RoomAuthorizer decide si un usuario puede escuchar una sala.
type RoomAuthorizer interface {
	CanJoin(ctx context.Context, room, userID string) (bool, error)
}

// Client es una conexion websocket autenticada.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type clientCommand struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type controlMessage struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Error string `json:"error,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump lee comandos join/leave hasta que la conexion se cierra.
func (c *Client) ReadPump(ctx context.Context, auth RoomAuthorizer, logger *zap.Logger) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handleCommand(ctx, payload, auth, logger)
	}
}

func (c *Client) handleCommand(ctx context.Context, payload []byte, auth RoomAuthorizer, logger *zap.Logger) {
	var cmd clientCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.reply(controlMessage{Event: "error", Error: "invalid payload"})
		return
	}
	room := strings.TrimSpace(cmd.Room)
	if room == "" {
		c.reply(controlMessage{Event: "error", Error: "room required"})
		return
	}

	switch cmd.Action {
	case "join":
		ok, err := auth.CanJoin(ctx, room, c.userID)
		if err != nil {
			logger.Warn("websocket join check failed", zap.String("user_id", c.userID), zap.String("room", room), zap.Error(err))
			c.reply(controlMessage{Event: "error", Room: room, Error: "join failed"})
			return
		}
		if !ok {
			c.reply(controlMessage{Event: "error", Room: room, Error: "forbidden"})
			return
		}
		c.hub.Join(c, room)
		c.reply(controlMessage{Event: "joined", Room: room})
	case "leave":
		c.hub.Leave(c, room)
		c.reply(controlMessage{Event: "left", Room: room})
	default:
		c.reply(controlMessage{Event: "error", Error: "unsupported action"})
	}
}

// WritePump envia los mensajes encolados y mantiene vivo el socket con pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply pasa por el hub: solo la goroutine del hub escribe o cierra c.send.
func (c *Client) reply(msg controlMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.sendTo(c, payload)
}
