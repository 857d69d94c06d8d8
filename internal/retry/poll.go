package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Poll when the policy timeout elapses before the
// condition is met.
var ErrTimeout = errors.New("timed out")

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultPollMaxInterval = 30 * time.Second
	DefaultPollMultiplier  = 1.5
	DefaultPollTimeout     = 10 * time.Minute
)

// PollPolicy controls a status poll loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	// Timeout bounds the whole loop. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// DefaultPollPolicy returns the policy used for DNS change propagation.
func DefaultPollPolicy() *PollPolicy {
	return &PollPolicy{
		Interval:    DefaultPollInterval,
		MaxInterval: DefaultPollMaxInterval,
		Multiplier:  DefaultPollMultiplier,
		Timeout:     DefaultPollTimeout,
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll calls check until it reports done, sleeping between calls. The first
// call happens immediately; waits then grow by the policy multiplier up to
// MaxInterval.
func Poll(ctx context.Context, policy *PollPolicy, sleep Sleeper, check func(ctx context.Context) (bool, error)) error {
	if policy == nil {
		policy = DefaultPollPolicy()
	}
	if sleep == nil {
		sleep = Sleep
	}

	ctx, cancel := WithTimeout(ctx, policy.Timeout)
	defer cancel()

	interval := policy.Interval
	for {
		done, err := check(ctx)
		if err != nil {
			return classify(ctx, policy, err)
		}
		if done {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return classify(ctx, policy, err)
		}
		interval = NextInterval(interval, policy)
	}
}

// NextInterval returns the wait following cur under policy.
func NextInterval(cur time.Duration, policy *PollPolicy) time.Duration {
	m := policy.Multiplier
	if m < 1 {
		m = 1
	}
	next := time.Duration(float64(cur) * m)
	if policy.MaxInterval > 0 && next > policy.MaxInterval {
		next = policy.MaxInterval
	}
	return next
}

func classify(ctx context.Context, policy *PollPolicy, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, policy.Timeout, err)
	}
	return err
}
