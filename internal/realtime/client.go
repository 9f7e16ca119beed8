package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/skilllink/skilllink-api/internal/models"
)

const (
	pingEvery  = 30 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// Client is one websocket connection. Its rooms are owned by the hub.
type Client struct {
	ID        string
	Principal models.Principal
	Send      chan []byte

	rooms map[string]struct{}

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewClient(p models.Principal) *Client {
	return &Client{
		ID:        uuid.NewString(),
		Principal: p,
		Send:      make(chan []byte, sendBuffer),
		rooms:     make(map[string]struct{}),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Stop asks WritePump to return. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// Done is closed once WritePump has returned and no longer touches its
// connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// WritePump drains Send to the connection and pings it until Send is closed,
// Stop is called or a write fails. The connection must stay valid until Done
// is closed.
func (c *Client) WritePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.quit:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

