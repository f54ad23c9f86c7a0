// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Upstream feed connection state, reconnects and update rate
//   - Downstream connection count and delivered frames
//   - Send failures and capacity rejections
//   - Registry size
package metrics
