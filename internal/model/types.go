package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlaceholderVolume is the volume reported on every relayed trade.
// The relay forwards last-price samples, not executions.
const PlaceholderVolume = "0.01"

// ConnID identifies one downstream subscriber session.
type ConnID = uuid.UUID

// NewConnID returns a fresh connection identifier.
func NewConnID() ConnID {
	return uuid.New()
}

// PriceUpdate is a single last-price sample for a symbol.
type PriceUpdate struct {
	Symbol    string          // Instrument identifier as sent by the feed
	Price     decimal.Decimal // Last traded price
	Volume    string          // Always PlaceholderVolume
	Timestamp int64           // Relay receive time (seconds since epoch)
}

// NewPriceUpdate builds an update stamped with the relay's receive time.
func NewPriceUpdate(symbol string, price decimal.Decimal, receivedAt time.Time) PriceUpdate {
	return PriceUpdate{
		Symbol:    symbol,
		Price:     price,
		Volume:    PlaceholderVolume,
		Timestamp: receivedAt.Unix(),
	}
}
