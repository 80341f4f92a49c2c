package identity

import (
	"context"
	"math/rand"
	"time"
)

// Latency simulates a network round trip with a uniform delay in [Min, Max].
type Latency struct {
	Min time.Duration
	Max time.Duration
}

func (l Latency) Wait(ctx context.Context) error {
	delay := l.next()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l Latency) next() time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + time.Duration(rand.Int63n(int64(l.Max - l.Min)))
}
