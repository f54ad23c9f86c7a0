package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/rickgao/price-relay/internal/model"
)

// DefaultCapacity is the distinct-symbol limit imposed by the upstream feed.
const DefaultCapacity = 50

// Errors
var (
	ErrCapacityExceeded  = errors.New("symbol capacity exceeded")
	ErrUnknownConnection = errors.New("unknown connection")
)

// Stats is a point-in-time view of registry size.
type Stats struct {
	Connections int
	Symbols     int
	Capacity    int
}

// Registry tracks which connections subscribe to which symbols.
//
// Both maps are kept mutually consistent: id is in subscribersOf[sym]
// iff sym is in symbolsOf[id], and a symbol key exists only while its
// subscriber set is non-empty.
type Registry struct {
	mu       sync.RWMutex
	capacity int

	subscribersOf map[string]map[model.ConnID]struct{}
	symbolsOf     map[model.ConnID]map[string]struct{}
}

// New creates a registry with the given distinct-symbol capacity.
// A capacity <= 0 disables the limit.
func New(capacity int) *Registry {
	return &Registry{
		capacity:      capacity,
		subscribersOf: make(map[string]map[model.ConnID]struct{}),
		symbolsOf:     make(map[model.ConnID]map[string]struct{}),
	}
}

// AddConnection registers a connection with an empty symbol set.
// Re-adding a known connection leaves its subscriptions untouched.
func (r *Registry) AddConnection(id model.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.symbolsOf[id]; ok {
		return
	}
	r.symbolsOf[id] = make(map[string]struct{})
}

// Subscribe pairs a connection with a symbol.
//
// first is true when the connection became the symbol's only subscriber.
// Returns ErrCapacityExceeded without mutating anything when the symbol is
// new and the registry is already tracking capacity distinct symbols.
func (r *Registry) Subscribe(id model.ConnID, symbol string) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, ok := r.symbolsOf[id]
	if !ok {
		return false, ErrUnknownConnection
	}

	subscribers, exists := r.subscribersOf[symbol]
	if !exists {
		if r.capacity > 0 && len(r.subscribersOf) >= r.capacity {
			return false, ErrCapacityExceeded
		}
		subscribers = make(map[model.ConnID]struct{})
		r.subscribersOf[symbol] = subscribers
	}

	if _, already := subscribers[id]; already {
		return false, nil
	}

	subscribers[id] = struct{}{}
	symbols[symbol] = struct{}{}

	return len(subscribers) == 1, nil
}

// Unsubscribe removes the pairing between a connection and a symbol.
//
// last is true when the symbol lost its final subscriber and was pruned.
// Unsubscribing a pairing that does not exist is a no-op.
func (r *Registry) Unsubscribe(id model.ConnID, symbol string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.unsubscribeLocked(id, symbol)
}

// unsubscribeLocked removes one pairing (caller must hold write lock).
func (r *Registry) unsubscribeLocked(id model.ConnID, symbol string) bool {
	subscribers, ok := r.subscribersOf[symbol]
	if !ok {
		return false
	}
	if _, ok := subscribers[id]; !ok {
		return false
	}

	delete(subscribers, id)
	if symbols, ok := r.symbolsOf[id]; ok {
		delete(symbols, symbol)
	}

	if len(subscribers) == 0 {
		delete(r.subscribersOf, symbol)
		return true
	}
	return false
}

// RemoveConnection unsubscribes a connection from every symbol it held and
// forgets it. Returns the symbols that lost their last subscriber, sorted.
func (r *Registry) RemoveConnection(id model.ConnID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols, ok := r.symbolsOf[id]
	if !ok {
		return nil
	}

	held := make([]string, 0, len(symbols))
	for symbol := range symbols {
		held = append(held, symbol)
	}

	var released []string
	for _, symbol := range held {
		if r.unsubscribeLocked(id, symbol) {
			released = append(released, symbol)
		}
	}
	delete(r.symbolsOf, id)

	sort.Strings(released)
	return released
}

// SubscribersFor returns a snapshot of the connections subscribed to symbol.
func (r *Registry) SubscribersFor(symbol string) []model.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscribers := r.subscribersOf[symbol]
	result := make([]model.ConnID, 0, len(subscribers))
	for id := range subscribers {
		result = append(result, id)
	}
	return result
}

// SymbolsOf returns the symbols a connection is subscribed to, sorted.
func (r *Registry) SymbolsOf(id model.ConnID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := r.symbolsOf[id]
	result := make([]string, 0, len(symbols))
	for symbol := range symbols {
		result = append(result, symbol)
	}
	sort.Strings(result)
	return result
}

// Symbols returns every symbol with at least one subscriber, sorted.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.subscribersOf))
	for symbol := range r.subscribersOf {
		result = append(result, symbol)
	}
	sort.Strings(result)
	return result
}

// HasSymbol reports whether any connection subscribes to symbol.
func (r *Registry) HasSymbol(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.subscribersOf[symbol]
	return ok
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Connections: len(r.symbolsOf),
		Symbols:     len(r.subscribersOf),
		Capacity:    r.capacity,
	}
}
