package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/rickgao/price-relay/internal/model"
)

// DecodeCommand parses a client frame.
//
// Anything that is not a well-formed subscribe/unsubscribe with a non-empty
// symbol decodes to CommandUnknown; callers ignore those.
func DecodeCommand(data []byte) Command {
	var wire commandWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Command{Kind: CommandUnknown}
	}
	if wire.Symbol == "" {
		return Command{Kind: CommandUnknown}
	}

	switch wire.Type {
	case TypeSubscribe:
		return Command{Kind: CommandSubscribe, Symbol: wire.Symbol}
	case TypeUnsubscribe:
		return Command{Kind: CommandUnsubscribe, Symbol: wire.Symbol}
	default:
		return Command{Kind: CommandUnknown, Symbol: wire.Symbol}
	}
}

// EncodeSubscribe builds the subscribe frame sent to the feed.
func EncodeSubscribe(symbol string) []byte {
	return encodeCommand(TypeSubscribe, symbol)
}

// EncodeUnsubscribe builds the unsubscribe frame sent to the feed.
func EncodeUnsubscribe(symbol string) []byte {
	return encodeCommand(TypeUnsubscribe, symbol)
}

func encodeCommand(typ, symbol string) []byte {
	data, _ := json.Marshal(commandWire{Type: typ, Symbol: symbol})
	return data
}

// EncodeTrade builds the downstream price update frame.
// The price is written as a bare JSON number.
func EncodeTrade(u model.PriceUpdate) []byte {
	wire := tradeOutWire{
		Type: TypeTrade,
		Data: []tradeOutSample{{
			Symbol:    u.Symbol,
			Price:     json.RawMessage(u.Price.String()),
			Volume:    u.Volume,
			Timestamp: strconv.FormatInt(u.Timestamp, 10),
		}},
	}
	data, _ := json.Marshal(wire)
	return data
}

// EncodeCapacityError builds the frame sent when the symbol cap is reached.
func EncodeCapacityError() []byte {
	data, _ := json.Marshal(errorWire{Type: TypeError, Data: CapacityMessage})
	return data
}

// MessageType extracts the type field without decoding the payload.
func MessageType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

// DecodeLastTrade returns the last sample of an upstream trade frame.
// A last sample without a symbol or price is rejected rather than
// replaced by an earlier one.
func DecodeLastTrade(data []byte) (TradeSample, error) {
	var wire tradeInWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return TradeSample{}, err
	}
	if len(wire.Data) == 0 {
		return TradeSample{}, ErrEmptyTrade
	}

	last := wire.Data[len(wire.Data)-1]
	if last.Symbol == "" {
		return TradeSample{}, ErrMissingSymbol
	}
	if !last.Price.Valid {
		return TradeSample{}, ErrMissingPrice
	}
	return TradeSample{Symbol: last.Symbol, Price: last.Price.Decimal}, nil
}
