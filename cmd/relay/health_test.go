package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/price-relay/internal/feed"
	"github.com/rickgao/price-relay/internal/model"
	"github.com/rickgao/price-relay/internal/registry"
)

type stubFeed struct{ stats feed.Stats }

func (s stubFeed) Stats() feed.Stats { return s.stats }

type stubConns int

func (s stubConns) Connections() int { return int(s) }

func getHealth(t *testing.T, h http.Handler) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler(t *testing.T) {
	reg := registry.New(50)
	id := model.NewConnID()
	reg.AddConnection(id)
	reg.Subscribe(id, "AAPL")

	tests := []struct {
		name       string
		state      feed.State
		wantStatus string
	}{
		{"connected", feed.StateConnected, "healthy"},
		{"backoff", feed.StateBackoff, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHealthHandler(stubFeed{feed.Stats{State: tt.state, Subscriptions: 1}}, reg, stubConns(1), "/metrics")

			code, body := getHealth(t, h)
			if code != http.StatusOK {
				t.Errorf("code = %d, want 200", code)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %q", body["status"], tt.wantStatus)
			}

			components := body["components"].(map[string]any)
			feedInfo := components["feed"].(map[string]any)
			if feedInfo["state"] != tt.state.String() {
				t.Errorf("feed.state = %v, want %q", feedInfo["state"], tt.state.String())
			}
			regInfo := components["registry"].(map[string]any)
			if regInfo["symbols"] != float64(1) || regInfo["capacity"] != float64(50) {
				t.Errorf("registry = %v", regInfo)
			}
		})
	}
}

func TestHealthHandler_Metrics(t *testing.T) {
	h := newHealthHandler(stubFeed{}, registry.New(1), stubConns(0), "/metrics")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics code = %d, want 200", rec.Code)
	}
}
