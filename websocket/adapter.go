package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shasan419/maktab/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // audio chunks, not just control frames
	sendBuffer     = 256
)

// frame is one queued outbound message with its websocket type.
type frame struct {
	kind int
	data []byte
}

// Conn adapts a gorilla websocket connection to domain.Connection. One
// goroutine reads inbound frames in arrival order and feeds the handler; one
// goroutine drains the outbound buffer. Send methods enqueue without
// blocking: when the buffer is full the frame is dropped for this peer only.
type Conn struct {
	id      string
	role    domain.Role
	ws      *websocket.Conn
	send    chan frame
	handler domain.MessageHandler
}

func NewConn(id string, ws *websocket.Conn, h domain.MessageHandler) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan frame, sendBuffer),
		handler: h,
	}
}

func (c *Conn) ID() string { return c.id }

// Role is only mutated from the connection's own read loop; the dispatcher
// sets it once when the peer registers.
func (c *Conn) Role() domain.Role     { return c.role }
func (c *Conn) SetRole(r domain.Role) { c.role = r }

func (c *Conn) SendControl(data []byte) error {
	return c.enqueue(frame{kind: websocket.TextMessage, data: data})
}

func (c *Conn) SendAudio(data []byte) error {
	return c.enqueue(frame{kind: websocket.BinaryMessage, data: data})
}

func (c *Conn) enqueue(f frame) error {
	select {
	case c.send <- f:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.handler.HandleClose(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		switch kind {
		case websocket.TextMessage:
			c.handler.HandleControl(c, data)
		case websocket.BinaryMessage:
			c.handler.HandleAudio(c, data)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
