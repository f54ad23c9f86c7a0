// Package registry implements the Subscription Registry component.
//
// The Subscription Registry:
//   - Maps symbols to subscribed connections and connections to their symbols
//   - Reports 0->1 and 1->0 subscriber transitions so the caller can drive the upstream feed
//   - Caps the number of distinct symbols (new symbols only; shared symbols are never capped)
//   - Serializes all mutations behind a single lock
package registry
