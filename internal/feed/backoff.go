package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

// Reconnect policies
const (
	PolicyConstant    = "constant"
	PolicyExponential = "exponential"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// NewBackOff builds the reconnect policy named by policy.
// For PolicyExponential, delay is the initial interval and maxDelay the cap.
func NewBackOff(policy string, delay, maxDelay time.Duration) (backoff.BackOff, error) {
	switch policy {
	case "", PolicyConstant:
		return backoff.NewConstantBackOff(delay), nil
	case PolicyExponential:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = delay
		b.MaxInterval = maxDelay
		b.Reset()
		return b, nil
	default:
		return nil, fmt.Errorf("unknown reconnect policy %q", policy)
	}
}

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
