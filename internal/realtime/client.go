package realtime

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// Cliente is one live websocket connection bound to a user group. The
// channel carries no client-to-server protocol beyond connect and
// disconnect; the read pump exists only to notice the peer going away.
type Cliente struct {
	hub    *Hub
	conn   *websocket.Conn
	grupo  string
	salida chan []byte
	logger *slog.Logger
}

func NewCliente(hub *Hub, conn *websocket.Conn, grupo string, logger *slog.Logger) *Cliente {
	return &Cliente{
		hub:    hub,
		conn:   conn,
		grupo:  grupo,
		salida: make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// writePump streams queued messages to the peer and keeps the connection
// alive with pings. One writer goroutine per connection; the websocket
// library forbids concurrent writers.
func (c *Cliente) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.salida:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the buffer: the connection was dropped or
				// the group was torn down.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// readPump discards anything the peer sends and unregisters the connection
// when the read side fails, which is how both orderly and abrupt
// disconnects surface.
func (c *Cliente) readPump() {
	defer func() {
		c.hub.Leave(c.grupo, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("realtime connection closed abruptly", "grupo", c.grupo, "error", err)
			}
			return
		}
	}
}
