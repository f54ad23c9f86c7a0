package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "price_relay"

// Upstream feed
var (
	UpstreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "connected",
		Help:      "1 while the feed connection is established",
	})
	UpstreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "reconnects_total",
		Help:      "Successful connects after the first",
	})
	UpstreamSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "subscriptions",
		Help:      "Symbols currently subscribed on the feed",
	})
	PriceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "price_updates_total",
		Help:      "Trade frames received from the feed",
	})
)

// Downstream
var (
	DownstreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "downstream",
		Name:      "connections",
		Help:      "Open subscriber connections",
	})
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "downstream",
		Name:      "frames_sent_total",
		Help:      "Price frames queued to subscribers",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "downstream",
		Name:      "send_failures_total",
		Help:      "Price frames that could not be queued to a subscriber",
	})
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "downstream",
		Name:      "capacity_rejections_total",
		Help:      "Subscribe requests refused because the symbol cap was reached",
	})
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "downstream",
		Name:      "commands_total",
		Help:      "Client commands received by kind",
	}, []string{"kind"})
)

// Registry
var (
	RegistrySymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "symbols",
		Help:      "Distinct symbols with at least one subscriber",
	})
)

// Handler returns the HTTP handler that serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
