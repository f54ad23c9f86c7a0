package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/price-relay/internal/model"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Command
	}{
		{"subscribe", `{"type": "subscribe", "symbol": "AAPL"}`, Command{Kind: CommandSubscribe, Symbol: "AAPL"}},
		{"unsubscribe", `{"type": "unsubscribe", "symbol": "BINANCE:BTCUSDT"}`, Command{Kind: CommandUnsubscribe, Symbol: "BINANCE:BTCUSDT"}},
		{"extra fields", `{"type": "subscribe", "symbol": "MSFT", "id": 7}`, Command{Kind: CommandSubscribe, Symbol: "MSFT"}},
		{"unknown type", `{"type": "unsubscribe_all", "symbol": "AAPL"}`, Command{Kind: CommandUnknown, Symbol: "AAPL"}},
		{"missing symbol", `{"type": "subscribe"}`, Command{Kind: CommandUnknown}},
		{"empty symbol", `{"type": "subscribe", "symbol": ""}`, Command{Kind: CommandUnknown}},
		{"invalid json", `{"type": `, Command{Kind: CommandUnknown}},
		{"not an object", `"subscribe"`, Command{Kind: CommandUnknown}},
		{"wrong symbol type", `{"type": "subscribe", "symbol": 5}`, Command{Kind: CommandUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeCommand([]byte(tt.data))
			if got != tt.want {
				t.Errorf("DecodeCommand(%s) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}
}

func TestCommandKind_String(t *testing.T) {
	tests := map[CommandKind]string{
		CommandSubscribe:   "subscribe",
		CommandUnsubscribe: "unsubscribe",
		CommandUnknown:     "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}

func TestEncodeUpstreamCommands(t *testing.T) {
	if got := string(EncodeSubscribe("AAPL")); got != `{"type":"subscribe","symbol":"AAPL"}` {
		t.Errorf("EncodeSubscribe = %s", got)
	}
	if got := string(EncodeUnsubscribe("AAPL")); got != `{"type":"unsubscribe","symbol":"AAPL"}` {
		t.Errorf("EncodeUnsubscribe = %s", got)
	}
}

func TestEncodeTrade(t *testing.T) {
	u := model.NewPriceUpdate("AAPL", decimal.RequireFromString("187.2500"), time.Unix(1705314645, 0))

	data := EncodeTrade(u)

	var decoded struct {
		Type string `json:"type"`
		Data []struct {
			S string      `json:"s"`
			P json.Number `json:"p"`
			V string      `json:"v"`
			T string      `json:"t"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("frame is not valid JSON: %v (%s)", err, data)
	}

	if decoded.Type != "trade" {
		t.Errorf("type = %q, want trade", decoded.Type)
	}
	if len(decoded.Data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(decoded.Data))
	}
	sample := decoded.Data[0]
	if sample.S != "AAPL" {
		t.Errorf("s = %q, want AAPL", sample.S)
	}
	if sample.P.String() != "187.25" {
		t.Errorf("p = %s, want 187.25", sample.P)
	}
	if sample.V != "0.01" {
		t.Errorf("v = %q, want 0.01", sample.V)
	}
	if sample.T != "1705314645" {
		t.Errorf("t = %q, want 1705314645", sample.T)
	}
}

func TestEncodeTrade_PriceIsNumber(t *testing.T) {
	u := model.NewPriceUpdate("X", decimal.RequireFromString("0.5"), time.Unix(0, 0))
	want := `{"type":"trade","data":[{"s":"X","p":0.5,"v":"0.01","t":"0"}]}`
	if got := string(EncodeTrade(u)); got != want {
		t.Errorf("EncodeTrade = %s, want %s", got, want)
	}
}

func TestEncodeCapacityError(t *testing.T) {
	want := `{"type":"error","data":"The system is at maximum capacity.  Please try again later."}`
	if got := string(EncodeCapacityError()); got != want {
		t.Errorf("EncodeCapacityError = %s, want %s", got, want)
	}
}

func TestMessageType(t *testing.T) {
	typ, err := MessageType([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("MessageType failed: %v", err)
	}
	if typ != TypePing {
		t.Errorf("type = %q, want ping", typ)
	}

	if _, err := MessageType([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestDecodeLastTrade(t *testing.T) {
	data := []byte(`{"type":"trade","data":[
		{"s":"AAPL","p":187.1,"v":10,"t":1705314645000},
		{"s":"AAPL","p":187.35,"v":5,"t":1705314645100}
	]}`)

	sample, err := DecodeLastTrade(data)
	if err != nil {
		t.Fatalf("DecodeLastTrade failed: %v", err)
	}
	if sample.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", sample.Symbol)
	}
	if !sample.Price.Equal(decimal.RequireFromString("187.35")) {
		t.Errorf("Price = %s, want 187.35", sample.Price)
	}
}

func TestDecodeLastTrade_Errors(t *testing.T) {
	if _, err := DecodeLastTrade([]byte(`{"type":"trade","data":[]}`)); !errors.Is(err, ErrEmptyTrade) {
		t.Errorf("empty data err = %v, want ErrEmptyTrade", err)
	}
	if _, err := DecodeLastTrade([]byte(`{"type":"trade"}`)); !errors.Is(err, ErrEmptyTrade) {
		t.Errorf("missing data err = %v, want ErrEmptyTrade", err)
	}
	if _, err := DecodeLastTrade([]byte(`{"type":"trade","data":"x"}`)); err == nil {
		t.Error("expected error for malformed data")
	}
}

func TestDecodeLastTrade_IncompleteSample(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"missing price", `{"type":"trade","data":[{"s":"AAPL","v":10}]}`, ErrMissingPrice},
		{"null price", `{"type":"trade","data":[{"s":"AAPL","p":null}]}`, ErrMissingPrice},
		{"missing symbol", `{"type":"trade","data":[{"p":187.35}]}`, ErrMissingSymbol},
		{"empty symbol", `{"type":"trade","data":[{"s":"","p":187.35}]}`, ErrMissingSymbol},
		{"last sample incomplete", `{"type":"trade","data":[{"s":"AAPL","p":187.1},{"s":"AAPL"}]}`, ErrMissingPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, err := DecodeLastTrade([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if sample.Symbol != "" || !sample.Price.IsZero() {
				t.Errorf("sample = %+v, want zero value", sample)
			}
		})
	}
}

func TestDecodeLastTrade_ZeroPrice(t *testing.T) {
	sample, err := DecodeLastTrade([]byte(`{"type":"trade","data":[{"s":"AAPL","p":0}]}`))
	if err != nil {
		t.Fatalf("DecodeLastTrade failed: %v", err)
	}
	if !sample.Price.IsZero() {
		t.Errorf("Price = %s, want 0", sample.Price)
	}
}
