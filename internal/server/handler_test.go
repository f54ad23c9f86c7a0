package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/rickgao/price-relay/internal/metrics"
	"github.com/rickgao/price-relay/internal/model"
	"github.com/rickgao/price-relay/internal/protocol"
	"github.com/rickgao/price-relay/internal/registry"
	"github.com/rickgao/price-relay/internal/relay"
)

// recordingUpstream records upstream calls.
type recordingUpstream struct {
	mu    sync.Mutex
	calls []string
}

func (u *recordingUpstream) Subscribe(symbol string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, "sub:"+symbol)
	return nil
}

func (u *recordingUpstream) Unsubscribe(symbol string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, "unsub:"+symbol)
	return nil
}

func (u *recordingUpstream) Calls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

type testRelay struct {
	reg      *registry.Registry
	upstream *recordingUpstream
	coord    *relay.Coordinator
	handler  *Handler
	server   *httptest.Server
}

func newTestRelay(t *testing.T, capacity int, cfg ConnConfig) *testRelay {
	t.Helper()

	reg := registry.New(capacity)
	up := &recordingUpstream{}
	coord := relay.NewCoordinator(reg, up, nil)
	handler := NewHandler(coord, cfg, nil)
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		handler.CloseAll()
		server.Close()
	})

	return &testRelay{
		reg:      reg,
		upstream: up,
		coord:    coord,
		handler:  handler,
		server:   server,
	}
}

func (r *testRelay) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ, symbol string) {
	t.Helper()
	data, _ := json.Marshal(map[string]string{"type": typ, "symbol": symbol})
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestHandler_SubscribeAndReceive(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	ws := r.dial(t)

	send(t, ws, protocol.TypeSubscribe, "AAPL")
	waitFor(t, "registry subscribe", func() bool { return r.reg.HasSymbol("AAPL") })

	r.coord.Publish(model.NewPriceUpdate("AAPL", decimal.RequireFromString("189.3"), time.Unix(1700000000, 0)))

	want := `{"type":"trade","data":[{"s":"AAPL","p":189.3,"v":"0.01","t":"1700000000"}]}`
	if got := readFrame(t, ws); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}

	calls := r.upstream.Calls()
	if len(calls) != 1 || calls[0] != "sub:AAPL" {
		t.Errorf("upstream calls = %v, want [sub:AAPL]", calls)
	}
}

func TestHandler_UnsubscribeStopsDelivery(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	ws := r.dial(t)

	send(t, ws, protocol.TypeSubscribe, "AAPL")
	send(t, ws, protocol.TypeSubscribe, "MSFT")
	send(t, ws, protocol.TypeUnsubscribe, "AAPL")
	waitFor(t, "unsubscribe", func() bool {
		return !r.reg.HasSymbol("AAPL") && r.reg.HasSymbol("MSFT")
	})

	r.coord.Publish(model.NewPriceUpdate("AAPL", decimal.NewFromInt(1), time.Unix(1, 0)))
	r.coord.Publish(model.NewPriceUpdate("MSFT", decimal.NewFromInt(2), time.Unix(2, 0)))

	got := readFrame(t, ws)
	if !strings.Contains(got, `"s":"MSFT"`) {
		t.Errorf("first frame = %s, want MSFT update", got)
	}

	calls := r.upstream.Calls()
	want := []string{"sub:AAPL", "sub:MSFT", "unsub:AAPL"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("upstream calls = %v, want %v", calls, want)
	}
}

func TestHandler_CapacityRejection(t *testing.T) {
	r := newTestRelay(t, 2, DefaultConnConfig())
	ws := r.dial(t)
	other := r.dial(t)

	send(t, ws, protocol.TypeSubscribe, "A")
	send(t, ws, protocol.TypeSubscribe, "B")
	send(t, ws, protocol.TypeSubscribe, "C")

	want := `{"type":"error","data":"The system is at maximum capacity.  Please try again later."}`
	if got := readFrame(t, ws); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}

	if r.reg.HasSymbol("C") {
		t.Error("rejected symbol C present in registry")
	}

	// Existing keys are still accepted at the cap.
	send(t, other, protocol.TypeSubscribe, "A")
	waitFor(t, "second subscriber", func() bool { return len(r.reg.SubscribersFor("A")) == 2 })

	// The other connection saw nothing.
	other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, data, err := other.ReadMessage(); err == nil {
		t.Errorf("other connection received %s", data)
	}
}

func TestHandler_CapacityNoticeOnClosedConn(t *testing.T) {
	reg := registry.New(1)
	coord := relay.NewCoordinator(reg, &recordingUpstream{}, nil)
	if err := coord.Subscribe(model.NewConnID(), "A"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewHandler(coord, DefaultConnConfig(), logger)

	// A connection whose queue was shut by a concurrent close.
	c := &Conn{
		id:     model.NewConnID(),
		cfg:    DefaultConnConfig(),
		logger: logger,
		out:    newOutbox(1, 0),
		done:   make(chan struct{}),
	}
	c.out.Close()

	before := testutil.ToFloat64(metrics.SendFailures)
	h.dispatch(c, []byte(`{"type":"subscribe","symbol":"B"}`))

	if got := testutil.ToFloat64(metrics.SendFailures); got != before+1 {
		t.Errorf("SendFailures = %v, want %v", got, before+1)
	}
	if !strings.Contains(logs.String(), "capacity notice not queued") {
		t.Errorf("missing log line, got:\n%s", logs.String())
	}
	if reg.HasSymbol("B") {
		t.Error("rejected symbol B present in registry")
	}
}

func TestHandler_IgnoresUnknownFrames(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	ws := r.dial(t)

	for _, raw := range []string{
		`not json`,
		`{"type":"subscribe"}`,
		`{"type":"subscribe","symbol":""}`,
		`{"type":"history","symbol":"AAPL"}`,
	} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	send(t, ws, protocol.TypeSubscribe, "OK")

	waitFor(t, "valid subscribe", func() bool { return r.reg.HasSymbol("OK") })

	if syms := r.reg.Symbols(); len(syms) != 1 {
		t.Errorf("registry symbols = %v, want [OK]", syms)
	}
	if r.handler.Len() != 1 {
		t.Errorf("sessions = %d, want 1 (connection must stay open)", r.handler.Len())
	}
}

func TestHandler_DisconnectCleansUp(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	c1 := r.dial(t)
	c2 := r.dial(t)

	send(t, c1, protocol.TypeSubscribe, "A")
	send(t, c1, protocol.TypeSubscribe, "B")
	send(t, c2, protocol.TypeSubscribe, "B")
	waitFor(t, "subscriptions", func() bool { return len(r.reg.SubscribersFor("B")) == 2 })

	c1.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c1.Close()

	waitFor(t, "cleanup", func() bool { return r.handler.Len() == 1 })

	if r.reg.HasSymbol("A") {
		t.Error("A still registered after sole subscriber left")
	}
	if got := r.reg.SubscribersFor("B"); len(got) != 1 {
		t.Errorf("B subscribers = %d, want 1", len(got))
	}

	calls := r.upstream.Calls()
	want := []string{"sub:A", "sub:B", "unsub:A"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("upstream calls = %v, want %v", calls, want)
	}

	// The surviving connection still receives updates.
	r.coord.Publish(model.NewPriceUpdate("B", decimal.NewFromInt(7), time.Unix(7, 0)))
	if got := readFrame(t, c2); !strings.Contains(got, `"s":"B"`) {
		t.Errorf("c2 frame = %s, want B update", got)
	}
}

func TestHandler_OrderedDelivery(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	ws := r.dial(t)

	send(t, ws, protocol.TypeSubscribe, "X")
	waitFor(t, "subscribe", func() bool { return r.reg.HasSymbol("X") })

	const n = 200
	for i := 0; i < n; i++ {
		r.coord.Publish(model.NewPriceUpdate("X", decimal.NewFromInt(int64(i)), time.Unix(1, 0)))
	}

	for i := 0; i < n; i++ {
		var frame struct {
			Data []struct {
				P json.Number `json:"p"`
			} `json:"data"`
		}
		if err := json.Unmarshal([]byte(readFrame(t, ws)), &frame); err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if got := frame.Data[0].P.String(); got != decimal.NewFromInt(int64(i)).String() {
			t.Fatalf("frame %d price = %s, want %d", i, got, i)
		}
	}
}

func TestHandler_DropsUnresponsivePeer(t *testing.T) {
	cfg := DefaultConnConfig()
	cfg.PongWait = 100 * time.Millisecond
	cfg.PingPeriod = 50 * time.Millisecond

	r := newTestRelay(t, registry.DefaultCapacity, cfg)
	ws := r.dial(t)

	send(t, ws, protocol.TypeSubscribe, "A")
	waitFor(t, "subscribe", func() bool { return r.reg.HasSymbol("A") })

	// Never read, so pings go unanswered and the read deadline lapses.
	waitFor(t, "stale peer dropped", func() bool { return r.handler.Len() == 0 })

	if r.reg.HasSymbol("A") {
		t.Error("A still registered after stale peer dropped")
	}
}

func TestHandler_CloseAllRefusesNewSessions(t *testing.T) {
	r := newTestRelay(t, registry.DefaultCapacity, DefaultConnConfig())
	ws := r.dial(t)
	send(t, ws, protocol.TypeSubscribe, "A")
	waitFor(t, "subscribe", func() bool { return r.reg.HasSymbol("A") })

	r.handler.CloseAll()

	if r.handler.Len() != 0 {
		t.Errorf("sessions = %d, want 0", r.handler.Len())
	}
	if r.reg.Stats().Connections != 0 {
		t.Errorf("registry connections = %d, want 0", r.reg.Stats().Connections)
	}

	late := r.dial(t)
	late.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late connection to be closed")
	}
}
