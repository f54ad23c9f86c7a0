// Package server implements the Downstream Connection Handler.
//
// Each accepted WebSocket connection gets:
//   - A read loop that decodes subscribe/unsubscribe commands
//   - An ordered outbox drained by a single writer goroutine
//   - Server pings every PingPeriod; a peer silent for PongWait is dropped
//
// Closing a connection, for any reason, releases its subscriptions.
package server
