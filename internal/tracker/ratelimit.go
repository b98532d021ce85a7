package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrRateLimited = errors.New("rate limited")

// Limiter is a sliding-window rate gate shared by all outbound quote
// fetches. At most maxRequests acquisitions succeed within any rolling
// window, and blocked callers are granted slots in arrival order.
type Limiter struct {
	maxRequests int
	window      time.Duration
	waitTimeout time.Duration

	mu      sync.Mutex
	grants  []time.Time
	waiters []*waiter
	timer   *time.Timer
}

type waiter struct {
	ready   chan struct{}
	granted bool
	gone    bool
}

func NewLimiter(maxRequests int, window time.Duration, waitTimeout time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until a request slot is available, the wait timeout
// elapses (ErrRateLimited), or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	l.expireLocked(now)
	if len(l.waiters) == 0 && len(l.grants) < l.maxRequests {
		l.grants = append(l.grants, now)
		l.mu.Unlock()
		return nil
	}
	w := &waiter{ready: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.scheduleLocked(now)
	l.mu.Unlock()

	timeout := time.NewTimer(l.waitTimeout)
	defer timeout.Stop()
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		l.abandon(w)
		return errors.Wrap(ctx.Err(), "rate limiter wait cancelled")
	case <-timeout.C:
		if l.abandon(w) {
			// Granted between the timer firing and us noticing.
			return nil
		}
		return errors.Wrapf(ErrRateLimited, "timed out after %v waiting for a request slot", l.waitTimeout)
	}
}

func (l *Limiter) abandon(w *waiter) (granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.granted {
		return true
	}
	w.gone = true
	return false
}

// expireLocked drops grants that have left the rolling window.
func (l *Limiter) expireLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	l.grants = l.grants[i:]
}

// scheduleLocked arms the dispatch timer for the moment the oldest grant
// leaves the window.
func (l *Limiter) scheduleLocked(now time.Time) {
	wait := time.Millisecond
	if len(l.grants) > 0 {
		if d := l.grants[0].Add(l.window).Sub(now); d > wait {
			wait = d
		}
	}
	if l.timer == nil {
		l.timer = time.AfterFunc(wait, l.dispatch)
	} else {
		l.timer.Reset(wait)
	}
}

// dispatch hands freed slots to waiters in FIFO order.
func (l *Limiter) dispatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.expireLocked(now)
	for len(l.waiters) > 0 {
		w := l.waiters[0]
		if w.gone {
			l.waiters = l.waiters[1:]
			continue
		}
		if len(l.grants) >= l.maxRequests {
			break
		}
		l.grants = append(l.grants, now)
		w.granted = true
		close(w.ready)
		l.waiters = l.waiters[1:]
	}
	if len(l.waiters) > 0 {
		l.scheduleLocked(now)
	}
}
