// Package relay implements the Relay Coordinator.
//
// The Coordinator joins the downstream and upstream sides:
//   - First/last subscriber transitions in the registry become upstream
//     subscribe/unsubscribe calls
//   - Each upstream price update is encoded once and queued to every
//     subscriber of its symbol
//   - After an upstream reconnect every registry symbol is requested again
package relay
