package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one connected WebSocket subscriber.
type client struct {
	srv  *Server
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(s *Server, conn *websocket.Conn) *client {
	return &client{
		srv:  s,
		conn: conn,
		send: make(chan []byte, s.cfg.SendQueue),
		done: make(chan struct{}),
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writeLoop drains the send buffer onto the connection. A write error
// disconnects the client.
func (c *client) writeLoop() {
	defer c.srv.unregister(c)

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// readLoop consumes and discards inbound messages so control frames are
// processed and disconnects are noticed.
func (c *client) readLoop() {
	defer c.srv.unregister(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.srv.log.Error("read error", "error", err)
			}
			return
		}
	}
}
