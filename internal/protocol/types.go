// Package protocol defines the JSON text frames exchanged with downstream
// clients and with the upstream feed.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Frame types
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeTrade       = "trade"
	TypeError       = "error"
	TypePing        = "ping"
)

// CapacityMessage is sent to a client whose subscribe would exceed the symbol cap.
const CapacityMessage = "The system is at maximum capacity.  Please try again later."

// Trade decode errors
var (
	ErrEmptyTrade    = errors.New("trade frame has no data")
	ErrMissingPrice  = errors.New("trade sample has no price")
	ErrMissingSymbol = errors.New("trade sample has no symbol")
)

// CommandKind tags a decoded client command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSubscribe
	CommandUnsubscribe
)

// String returns the wire name of the command.
func (k CommandKind) String() string {
	switch k {
	case CommandSubscribe:
		return TypeSubscribe
	case CommandUnsubscribe:
		return TypeUnsubscribe
	default:
		return "unknown"
	}
}

// Command is a decoded subscribe/unsubscribe request.
type Command struct {
	Kind   CommandKind
	Symbol string
}

// commandWire is the wire format for subscribe/unsubscribe frames (both directions).
type commandWire struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// TradeSample is one element of a trade frame's data array.
type TradeSample struct {
	Symbol string
	Price  decimal.Decimal
}

// tradeInSample keeps p nullable so an absent price is not read as zero.
type tradeInSample struct {
	Symbol string              `json:"s"`
	Price  decimal.NullDecimal `json:"p"`
}

// tradeInWire is the wire format for upstream trade frames.
// Only s and p are consumed; the feed sends more fields.
type tradeInWire struct {
	Type string          `json:"type"`
	Data []tradeInSample `json:"data"`
}

// tradeOutSample is one element of a downstream trade frame.
type tradeOutSample struct {
	Symbol    string          `json:"s"`
	Price     json.RawMessage `json:"p"`
	Volume    string          `json:"v"`
	Timestamp string          `json:"t"`
}

// tradeOutWire is the wire format for downstream trade frames.
type tradeOutWire struct {
	Type string           `json:"type"`
	Data []tradeOutSample `json:"data"`
}

// errorWire is the wire format for downstream error frames.
type errorWire struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// envelope is used for fast type extraction.
type envelope struct {
	Type string `json:"type"`
}
