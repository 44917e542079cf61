// Package waitfor provides a polling-with-timeout primitive for
// settlement confirmation. Instead of sleeping a fixed wall-clock delay
// after submitting an order, callers poll the venue state at an interval
// until it is confirmed or the deadline passes, which keeps the
// controller portable across venues with different finality latency.
package waitfor

import (
	"context"
	"errors"
	"time"
)

// ErrDeadlineExceeded is returned when the condition did not hold before
// the timeout elapsed.
var ErrDeadlineExceeded = errors.New("waitfor: deadline exceeded")

// Probe checks once whether the awaited condition holds. Returning an
// error aborts the wait immediately; transient probe failures should be
// swallowed by the probe itself if polling should continue.
type Probe func(ctx context.Context) (done bool, err error)

// Poll invokes probe immediately and then every interval until the probe
// reports done, returns an error, the timeout elapses, or ctx is
// cancelled.
func Poll(ctx context.Context, interval, timeout time.Duration, probe Probe) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrDeadlineExceeded
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
// Used for the short fixed settlement delays between collateral pipeline
// steps, where there is no venue state to poll.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
