package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rickgao/price-relay/internal/metrics"
	"github.com/rickgao/price-relay/internal/model"
	"github.com/rickgao/price-relay/internal/protocol"
	"github.com/rickgao/price-relay/internal/registry"
	"github.com/rickgao/price-relay/internal/relay"
)

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	coord    *relay.Coordinator
	cfg      ConnConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[model.ConnID]*Conn
	wg     sync.WaitGroup
	closed bool
}

// NewHandler creates a Handler that routes commands through coord.
func NewHandler(coord *relay.Coordinator, cfg ConnConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		coord:  coord,
		cfg:    cfg,
		logger: logger.With("component", "downstream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[model.ConnID]*Conn),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(ws, h.cfg, h.logger)
	if !h.track(c) {
		c.Close()
		return
	}
	defer h.untrack(c)

	h.serve(c, r.RemoteAddr)
}

// serve runs the connection until it closes, then releases its subscriptions.
func (h *Handler) serve(c *Conn, remote string) {
	h.coord.Attach(c)
	c.logger.Info("client connected", "remote", remote)

	go c.writeLoop()

	err := c.readLoop(func(data []byte) {
		h.dispatch(c, data)
	})

	c.Close()
	released := h.coord.Detach(c.ID())

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.logger.Warn("client connection error", "error", err, "released", len(released))
		return
	}
	c.logger.Info("client disconnected", "released", len(released))
}

// dispatch applies one client frame.
func (h *Handler) dispatch(c *Conn, data []byte) {
	cmd := protocol.DecodeCommand(data)
	metrics.Commands.WithLabelValues(cmd.Kind.String()).Inc()

	switch cmd.Kind {
	case protocol.CommandSubscribe:
		err := h.coord.Subscribe(c.ID(), cmd.Symbol)
		switch {
		case err == nil:
			c.logger.Debug("subscribed", "symbol", cmd.Symbol)
		case errors.Is(err, registry.ErrCapacityExceeded):
			c.logger.Debug("subscribe rejected at capacity", "symbol", cmd.Symbol)
			if err := c.Send(protocol.EncodeCapacityError()); err != nil {
				metrics.SendFailures.Inc()
				c.logger.Debug("capacity notice not queued", "symbol", cmd.Symbol, "error", err)
			}
		default:
			c.logger.Warn("subscribe failed", "symbol", cmd.Symbol, "error", err)
		}

	case protocol.CommandUnsubscribe:
		h.coord.Unsubscribe(c.ID(), cmd.Symbol)
		c.logger.Debug("unsubscribed", "symbol", cmd.Symbol)

	default:
		c.logger.Debug("ignoring frame", "size", len(data))
	}
}

func (h *Handler) track(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c.ID()] = c
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID())
	h.mu.Unlock()
	h.wg.Done()
}

// Len returns the number of live sessions.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every session and waits for their cleanup.
// New connections are refused afterwards.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	h.wg.Wait()
}
