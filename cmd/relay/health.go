package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/price-relay/internal/feed"
	"github.com/rickgao/price-relay/internal/metrics"
	"github.com/rickgao/price-relay/internal/registry"
	"github.com/rickgao/price-relay/internal/version"
)

type feedStatus interface {
	Stats() feed.Stats
}

type connCounter interface {
	Connections() int
}

// newHealthHandler serves /health and the Prometheus endpoint.
func newHealthHandler(up feedStatus, reg *registry.Registry, conns connCounter, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		// Upstream feed
		fs := up.Stats()
		health.Components["feed"] = map[string]any{
			"state":         fs.State.String(),
			"subscriptions": fs.Subscriptions,
			"connects":      fs.Connects,
			"updates":       fs.Updates,
		}
		if fs.State != feed.StateConnected {
			health.Status = "degraded"
		}

		// Subscription registry
		rs := reg.Stats()
		health.Components["registry"] = map[string]any{
			"connections": rs.Connections,
			"symbols":     rs.Symbols,
			"capacity":    rs.Capacity,
		}

		health.Components["downstream"] = map[string]any{
			"connections": conns.Connections(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
