// Package model defines shared data types used across the price relay.
//
// Conventions:
//   - Symbols: opaque strings, never parsed
//   - Prices: decimal.Decimal, carried exactly as the feed sent them
//   - Timestamps: int64 whole seconds since Unix epoch (relay receive time)
//   - Connection IDs: uuid.UUID, generated on accept
package model
