package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rickgao/price-relay/internal/feed"
	"github.com/rickgao/price-relay/internal/metrics"
	"github.com/rickgao/price-relay/internal/model"
	"github.com/rickgao/price-relay/internal/protocol"
	"github.com/rickgao/price-relay/internal/registry"
)

// Sender is a downstream connection that can accept frames.
// Send must not block on the network.
type Sender interface {
	ID() model.ConnID
	Send(data []byte) error
}

// Upstream is the feed side of the relay.
type Upstream interface {
	Subscribe(symbol string) error
	Unsubscribe(symbol string) error
}

// Coordinator routes commands into the registry and prices out to subscribers.
type Coordinator struct {
	registry *registry.Registry
	upstream Upstream
	logger   *slog.Logger

	// upstreamMu serializes reconcile calls so the feed sees them in the
	// same order the registry changed.
	upstreamMu sync.Mutex

	sendersMu sync.RWMutex
	senders   map[model.ConnID]Sender
}

// NewCoordinator creates a Coordinator over reg and up.
func NewCoordinator(reg *registry.Registry, up Upstream, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		registry: reg,
		upstream: up,
		logger:   logger.With("component", "relay"),
		senders:  make(map[model.ConnID]Sender),
	}
}

// Attach registers a new downstream connection.
func (c *Coordinator) Attach(s Sender) {
	c.registry.AddConnection(s.ID())

	c.sendersMu.Lock()
	c.senders[s.ID()] = s
	n := len(c.senders)
	c.sendersMu.Unlock()

	metrics.DownstreamConnections.Set(float64(n))
	c.logger.Debug("connection attached", "conn_id", s.ID())
}

// Detach forgets a downstream connection and releases its symbols.
// It returns the symbols that lost their last subscriber.
func (c *Coordinator) Detach(id model.ConnID) []string {
	c.sendersMu.Lock()
	delete(c.senders, id)
	n := len(c.senders)
	c.sendersMu.Unlock()

	metrics.DownstreamConnections.Set(float64(n))

	released := c.registry.RemoveConnection(id)
	for _, symbol := range released {
		c.UnsubscribeUpstream(symbol)
	}
	c.updateRegistryGauge()

	c.logger.Debug("connection detached", "conn_id", id, "released", released)
	return released
}

// Subscribe adds symbol for id. It returns registry.ErrCapacityExceeded when
// the symbol would exceed the cap; nothing changes in that case.
func (c *Coordinator) Subscribe(id model.ConnID, symbol string) error {
	first, err := c.registry.Subscribe(id, symbol)
	if err != nil {
		if errors.Is(err, registry.ErrCapacityExceeded) {
			metrics.CapacityRejections.Inc()
		}
		return err
	}

	if first {
		c.SubscribeUpstream(symbol)
		c.updateRegistryGauge()
	}
	return nil
}

// Unsubscribe removes symbol for id.
func (c *Coordinator) Unsubscribe(id model.ConnID, symbol string) {
	if c.registry.Unsubscribe(id, symbol) {
		c.UnsubscribeUpstream(symbol)
		c.updateRegistryGauge()
	}
}

// SubscribeUpstream asks the feed for symbol if the registry still holds it.
func (c *Coordinator) SubscribeUpstream(symbol string) {
	c.upstreamMu.Lock()
	defer c.upstreamMu.Unlock()

	if !c.registry.HasSymbol(symbol) {
		return
	}
	c.subscribeLocked(symbol)
}

// UnsubscribeUpstream releases symbol on the feed if the registry no longer holds it.
func (c *Coordinator) UnsubscribeUpstream(symbol string) {
	c.upstreamMu.Lock()
	defer c.upstreamMu.Unlock()

	if c.registry.HasSymbol(symbol) {
		return
	}

	if err := c.upstream.Unsubscribe(symbol); err != nil {
		if errors.Is(err, feed.ErrNotConnected) {
			c.logger.Debug("feed offline, unsubscribe dropped", "symbol", symbol)
			return
		}
		c.logger.Warn("upstream unsubscribe failed", "symbol", symbol, "error", err)
	}
}

// Resync requests every registry symbol from the feed.
// Run it after each upstream connect.
func (c *Coordinator) Resync() {
	c.upstreamMu.Lock()
	defer c.upstreamMu.Unlock()

	symbols := c.registry.Symbols()
	for _, symbol := range symbols {
		c.subscribeLocked(symbol)
	}

	if len(symbols) > 0 {
		c.logger.Info("resubscribed upstream", "symbols", len(symbols))
	}
}

func (c *Coordinator) subscribeLocked(symbol string) {
	if err := c.upstream.Subscribe(symbol); err != nil {
		if errors.Is(err, feed.ErrNotConnected) {
			c.logger.Debug("feed offline, subscribe deferred to resync", "symbol", symbol)
			return
		}
		c.logger.Warn("upstream subscribe failed", "symbol", symbol, "error", err)
	}
}

// Publish queues u to every subscriber of its symbol.
// A failing subscriber is logged and skipped.
func (c *Coordinator) Publish(u model.PriceUpdate) {
	ids := c.registry.SubscribersFor(u.Symbol)
	if len(ids) == 0 {
		return
	}

	frame := protocol.EncodeTrade(u)

	c.sendersMu.RLock()
	defer c.sendersMu.RUnlock()

	for _, id := range ids {
		s, ok := c.senders[id]
		if !ok {
			continue
		}
		if err := s.Send(frame); err != nil {
			metrics.SendFailures.Inc()
			c.logger.Warn("send failed",
				"conn_id", id,
				"symbol", u.Symbol,
				"error", err,
			)
			continue
		}
		metrics.FramesSent.Inc()
	}
}

// Connections returns the number of attached connections.
func (c *Coordinator) Connections() int {
	c.sendersMu.RLock()
	defer c.sendersMu.RUnlock()
	return len(c.senders)
}

func (c *Coordinator) updateRegistryGauge() {
	metrics.RegistrySymbols.Set(float64(c.registry.Stats().Symbols))
}
