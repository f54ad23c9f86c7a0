package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/price-relay/internal/model"
)

// initialOutboxSize is the starting outbox capacity; it grows on demand.
const initialOutboxSize = 16

// Conn is one downstream subscriber connection.
// Send is safe for concurrent use and never blocks on the network.
type Conn struct {
	id     model.ConnID
	ws     *websocket.Conn
	cfg    ConnConfig
	logger *slog.Logger

	out *outbox

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, cfg ConnConfig, logger *slog.Logger) *Conn {
	id := model.NewConnID()
	return &Conn{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		logger: logger.With("conn_id", id),
		out:    newOutbox(initialOutboxSize, cfg.MaxPending),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() model.ConnID {
	return c.id
}

// Send queues a frame for the writer goroutine.
// A connection whose queue overflows is closed.
func (c *Conn) Send(data []byte) error {
	err := c.out.Push(data)
	if errors.Is(err, ErrSlowConsumer) {
		c.logger.Warn("dropping slow consumer", "pending", c.out.Len())
		c.Close()
	}
	return err
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.out.Close()
		close(c.done)
		c.ws.Close()
	})
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// writeLoop is the only goroutine writing data frames to the socket.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-c.out.Ready():
			for _, frame := range c.out.DrainTo(0) {
				c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.logger.Debug("write failed", "error", err)
					c.Close()
					return
				}
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// readLoop hands each inbound frame to dispatch until the peer goes away.
func (c *Conn) readLoop(dispatch func(data []byte)) error {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		dispatch(data)
	}
}
