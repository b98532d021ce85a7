package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"flighttracker/internal/database"
	"flighttracker/internal/model"
)

// Start launches the background dispatch loop. Starting an already
// running tracker is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.logger.Warn("tracker: Already running")
		return
	}
	loopCtx, loopCancel := context.WithCancel(context.Background())
	checkCtx, checkCancel := context.WithCancel(context.Background())
	t.loopCancel = loopCancel
	t.checkCancel = checkCancel
	t.done = make(chan struct{})
	t.running = true
	go t.dispatchLoop(loopCtx, checkCtx)
	t.logger.Info("tracker: Scheduler started")
}

// Stop signals the dispatch loop to exit and waits for in-flight checks
// to finish; after the grace period they are cancelled.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	loopCancel, checkCancel, done := t.loopCancel, t.checkCancel, t.done
	t.mu.Unlock()

	loopCancel()
	select {
	case <-done:
	case <-time.After(t.opts.ShutdownGrace):
		t.logger.Warnf("tracker: In-flight checks still running after %v, cancelling", t.opts.ShutdownGrace)
		checkCancel()
		<-done
	}
	checkCancel()
	t.logger.Info("tracker: Scheduler stopped")
}

func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// dispatchLoop finds due routes and hands them to the worker pool. The
// pool bounds how many checks run at once; the rate limiter inside each
// check bounds how fast fetches start. The loop only blocks waiting for
// the next due time or for pool capacity, so one slow check never delays
// discovery of other due routes.
func (t *Tracker) dispatchLoop(loopCtx context.Context, checkCtx context.Context) {
	defer close(t.done)

	checks := make(chan model.TrackedRoute)
	var wg sync.WaitGroup
	for i := 0; i < t.opts.WorkerPoolSize; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for r := range checks {
				if _, err := t.runCheck(checkCtx, r); err != nil {
					t.logger.Errorf("tracker: Scheduled check failed for route %s (%s -> %s), err: %v",
						r.ID.Hex(), r.Origin, r.Destination, err)
				}
				t.clearInFlight(r.ID)
			}
			t.logger.Debugf("tracker: Worker %d stopped", id)
		}(i)
	}

loop:
	for {
		now := time.Now()
		due, err := t.db.RoutesFindDue(loopCtx, now)
		if err != nil && loopCtx.Err() == nil {
			t.logger.Errorf("tracker: Error finding due routes, err: %v", err)
		}
		if len(due) > 0 {
			t.logger.Debugf("tracker: %d route(s) due", len(due))
		}

		for _, r := range due {
			if r.Departed(now) {
				t.logger.Infof("tracker: Route %s (%s -> %s) departed on %s, deactivating",
					r.ID.Hex(), r.Origin, r.Destination, r.DepartureDate)
				if err := t.db.RouteSetActive(loopCtx, r.ID.Hex(), false); err != nil {
					t.logger.Errorf("tracker: Error deactivating departed route %s, err: %v", r.ID.Hex(), err)
				}
				continue
			}
			if !t.markInFlight(r.ID) {
				continue
			}
			select {
			case checks <- r:
			case <-loopCtx.Done():
				t.clearInFlight(r.ID)
				break loop
			}
		}
		if loopCtx.Err() != nil {
			break
		}

		wait := t.opts.PollInterval
		next, err := t.db.RouteNextDueTime(loopCtx)
		if err == nil {
			if d := time.Until(next); d < wait {
				wait = d
			}
		} else if !errors.Is(err, database.ErrNotFound) && loopCtx.Err() == nil {
			t.logger.Errorf("tracker: Error finding next due time, err: %v", err)
		}
		// Routes stay due while their check is in flight; the floor keeps
		// the loop from spinning on them.
		if wait < time.Second {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-loopCtx.Done():
			timer.Stop()
			break loop
		case <-timer.C:
		}
	}

	close(checks)
	wg.Wait()
}
