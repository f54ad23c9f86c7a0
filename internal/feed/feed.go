package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/price-relay/internal/metrics"
	"github.com/rickgao/price-relay/internal/model"
	"github.com/rickgao/price-relay/internal/protocol"
)

// Option configures a Feed.
type Option func(*Feed)

// WithDialer replaces the WebSocket client factory.
func WithDialer(d Dialer) Option {
	return func(f *Feed) {
		f.dial = d
	}
}

// WithBackOff sets the reconnect policy.
func WithBackOff(b backoff.BackOff) Option {
	return func(f *Feed) {
		f.backoff = b
	}
}

// WithSleeper replaces the wait used between reconnect attempts.
func WithSleeper(s Sleeper) Option {
	return func(f *Feed) {
		f.sleep = s
	}
}

// Feed owns the single upstream connection and its subscription set.
type Feed struct {
	cfg    ClientConfig
	logger *slog.Logger

	dial    Dialer
	backoff backoff.BackOff
	sleep   Sleeper

	// mu guards the live client and the upstream subscription set.
	// Commands are written while holding it so frames leave in call order.
	mu     sync.Mutex
	client Client
	subs   map[string]struct{}

	handlerMu sync.RWMutex
	onPrice   func(model.PriceUpdate)
	onConnect func()

	state    atomic.Int32
	connects atomic.Int64
	updates  atomic.Int64
}

// New creates a Feed. It does nothing until Run is called.
func New(cfg ClientConfig, logger *slog.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Feed{
		cfg:     cfg,
		logger:  logger,
		dial:    NewClient,
		backoff: backoff.NewConstantBackOff(DefaultReconnectDelay),
		sleep:   sleepContext,
		subs:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetPriceHandler sets the callback for trade updates.
// It runs on the feed's receive goroutine, in arrival order.
func (f *Feed) SetPriceHandler(fn func(model.PriceUpdate)) {
	f.handlerMu.Lock()
	defer f.handlerMu.Unlock()
	f.onPrice = fn
}

// SetConnectHandler sets the callback run after every successful connect,
// once the subscription set has been reset.
func (f *Feed) SetConnectHandler(fn func()) {
	f.handlerMu.Lock()
	defer f.handlerMu.Unlock()
	f.onConnect = fn
}

// Subscribe asks the feed to stream symbol. No-op if already subscribed.
// The symbol is recorded only once the frame has been written.
func (f *Feed) Subscribe(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[symbol]; ok {
		return nil
	}
	if !f.liveLocked() {
		return ErrNotConnected
	}

	if err := f.client.Send(protocol.EncodeSubscribe(symbol)); err != nil {
		return fmt.Errorf("send subscribe %s: %w", symbol, err)
	}
	f.subs[symbol] = struct{}{}
	metrics.UpstreamSymbols.Set(float64(len(f.subs)))

	f.logger.Debug("subscribed upstream", "symbol", symbol)
	return nil
}

// Unsubscribe asks the feed to stop streaming symbol. No-op if not subscribed.
// The symbol is dropped only once the frame has been written; while
// disconnected it stays until the next connect clears the set.
func (f *Feed) Unsubscribe(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[symbol]; !ok {
		return nil
	}
	if !f.liveLocked() {
		return ErrNotConnected
	}

	if err := f.client.Send(protocol.EncodeUnsubscribe(symbol)); err != nil {
		return fmt.Errorf("send unsubscribe %s: %w", symbol, err)
	}
	delete(f.subs, symbol)
	metrics.UpstreamSymbols.Set(float64(len(f.subs)))

	f.logger.Debug("unsubscribed upstream", "symbol", symbol)
	return nil
}

// liveLocked reports whether a session client is up. Caller holds f.mu.
func (f *Feed) liveLocked() bool {
	return f.client != nil && f.client.IsConnected()
}

// Subscriptions returns the symbols currently requested from the feed, sorted.
func (f *Feed) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]string, 0, len(f.subs))
	for symbol := range f.subs {
		result = append(result, symbol)
	}
	sort.Strings(result)
	return result
}

// State returns the current connection state.
func (f *Feed) State() State {
	return State(f.state.Load())
}

// Stats returns current statistics.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	subs := len(f.subs)
	f.mu.Unlock()

	return Stats{
		State:         f.State(),
		Subscriptions: subs,
		Connects:      f.connects.Load(),
		Updates:       f.updates.Load(),
	}
}

func (f *Feed) setState(s State) {
	f.state.Store(int32(s))
	if s == StateConnected {
		metrics.UpstreamConnected.Set(1)
	} else {
		metrics.UpstreamConnected.Set(0)
	}
}

// Run drives Disconnected -> Connecting -> Connected -> Backoff -> Connecting
// until ctx is cancelled. It never gives up on the feed.
func (f *Feed) Run(ctx context.Context) error {
	defer f.setState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return nil
		}

		f.setState(StateConnecting)
		f.logger.Info("connecting to feed")

		err := f.session(ctx)
		if ctx.Err() != nil {
			f.logger.Info("feed stopped")
			return nil
		}

		f.setState(StateBackoff)
		delay := f.backoff.NextBackOff()
		if delay == backoff.Stop {
			delay = DefaultReconnectDelay
		}

		f.logger.Warn("feed connection lost",
			"error", err,
			"retry_in", delay,
		)

		if err := f.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// session runs one connection from dial to failure.
func (f *Feed) session(ctx context.Context) error {
	client := f.dial(f.cfg, f.logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	// The feed keeps no subscriptions across connections.
	f.mu.Lock()
	f.client = client
	f.subs = make(map[string]struct{})
	f.mu.Unlock()
	metrics.UpstreamSymbols.Set(0)

	defer func() {
		f.mu.Lock()
		if f.client == client {
			f.client = nil
		}
		f.mu.Unlock()
	}()

	f.backoff.Reset()
	f.setState(StateConnected)
	if f.connects.Add(1) > 1 {
		metrics.UpstreamReconnects.Inc()
	}
	f.logger.Info("connected to feed")

	f.handlerMu.RLock()
	onConnect := f.onConnect
	f.handlerMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-client.Errors():
			if err == nil {
				err = errors.New("connection closed")
			}
			return err

		case msg := <-client.Messages():
			f.handleMessage(msg)
		}
	}
}

// handleMessage forwards trade frames and ignores everything else.
func (f *Feed) handleMessage(msg TimestampedMessage) {
	typ, err := protocol.MessageType(msg.Data)
	if err != nil {
		f.logger.Warn("failed to extract message type", "error", err)
		return
	}

	switch typ {
	case protocol.TypeTrade:
	case protocol.TypePing:
		return
	default:
		f.logger.Debug("skipping message type", "type", typ)
		return
	}

	sample, err := protocol.DecodeLastTrade(msg.Data)
	if err != nil {
		f.logger.Warn("failed to parse trade", "error", err)
		return
	}

	f.updates.Add(1)
	metrics.PriceUpdates.Inc()

	f.handlerMu.RLock()
	onPrice := f.onPrice
	f.handlerMu.RUnlock()
	if onPrice != nil {
		onPrice(model.NewPriceUpdate(sample.Symbol, sample.Price, msg.ReceivedAt))
	}
}
