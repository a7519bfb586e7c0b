package ws

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// UserClient is one live WebSocket connection bound to an authenticated
// user. A user may hold several clients at once (multiple devices).
type UserClient struct {
	UserId string

	hub    IHub
	conn   *websocket.Conn
	Send   chan []byte
	joined atomic.Bool
}

func NewClient(userId string, hub IHub, conn *websocket.Conn) *UserClient {
	return &UserClient{
		UserId: userId,
		hub:    hub,
		conn:   conn,
		Send:   make(chan []byte, 256),
	}
}

// MarkJoined records that the client completed the join handshake and is
// registered in the routing table.
func (c *UserClient) MarkJoined() { c.joined.Store(true) }

// Joined reports whether messaging operations are allowed on this client.
func (c *UserClient) Joined() bool { return c.joined.Load() }

// ReadPump drives the connection's inbound events. onMessage is called for
// every frame, onPong on every heartbeat response. Blocks until the
// transport tears down, then unregisters the client.
func (c *UserClient) ReadPump(onMessage func(data []byte), onPong func()) {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onPong != nil {
			onPong()
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		onMessage(message)
	}
}

// WritePump drains the send channel onto the wire and keeps the heartbeat
// going. Exits when the channel closes or a write fails.
func (c *UserClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
