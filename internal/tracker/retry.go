package tracker

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Policy retries a fetch with exponential backoff and jitter. Only
// failures the Retryable classifier accepts are retried; everything else
// surfaces immediately. A nil Sleep uses a context-aware real sleep.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Retryable  func(error) bool
	Sleep      func(ctx context.Context, d time.Duration) error
}

// Delay computes the backoff before retrying after the given attempt
// (counted from 0), randomized by a jitter factor in [0.5, 1.0].
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	d = math.Min(d, float64(p.MaxDelay))
	return time.Duration(d * (0.5 + 0.5*rand.Float64()))
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "backoff sleep cancelled")
	case <-t.C:
		return nil
	}
}

// Do runs fn under the retry policy, passing every attempt through the
// rate limiter gate first. A gate timeout is transient but does not
// consume a provider attempt: the attempt counter stays put and the call
// re-queues. Consecutive gate timeouts are bounded by MaxRetries+1 so the
// loop always terminates.
func (p Policy) Do(ctx context.Context, gate *Limiter, log logger, fn func(context.Context) error) error {
	attempt := 0
	gateStrikes := 0
	for {
		if gate != nil {
			if err := gate.Acquire(ctx); err != nil {
				if !errors.Is(err, ErrRateLimited) {
					return err
				}
				gateStrikes++
				if gateStrikes > p.MaxRetries {
					return err
				}
				log.Debugf("retry: Rate limiter gate timed out, re-queueing attempt %d", attempt)
				if serr := p.sleep(ctx, p.Delay(attempt)); serr != nil {
					return serr
				}
				continue
			}
			gateStrikes = 0
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			log.Infof("retry: All %d attempt(s) failed, err: %v", attempt+1, err)
			return err
		}
		d := p.Delay(attempt)
		log.Infof("retry: Attempt %d/%d failed, retrying in %v, err: %v", attempt+1, p.MaxRetries+1, d, err)
		attempt++
		if serr := p.sleep(ctx, d); serr != nil {
			return serr
		}
	}
}
