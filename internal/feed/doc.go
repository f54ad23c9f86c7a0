// Package feed implements the Upstream Feed Client component.
//
// The Feed Client:
//   - Holds one WebSocket connection to the market-data feed
//   - Tracks the symbols it has asked the feed to stream (deduplicated)
//   - Translates trade frames into price updates
//   - Probes the connection after an idle window and reconnects on failure
//     after a policy-driven backoff (constant 5s by default)
package feed
