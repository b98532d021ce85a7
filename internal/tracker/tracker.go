package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flighttracker/internal/client"
	"flighttracker/internal/model"
)

// ErrCheckInFlight is returned when a manual check is requested for a
// route that already has a check running.
var ErrCheckInFlight = errors.New("a check for this route is already in flight")

type store interface {
	RouteFindOne(ctx context.Context, routeID string) (model.TrackedRoute, error)
	RoutesFindDue(ctx context.Context, now time.Time) ([]model.TrackedRoute, error)
	RouteNextDueTime(ctx context.Context) (time.Time, error)
	RouteSetActive(ctx context.Context, routeID string, active bool) error
	RouteCheckFailed(ctx context.Context, routeID primitive.ObjectID, at time.Time, interval time.Duration) error
	RecordPrice(ctx context.Context, pr model.PriceRecord) (model.PriceRecord, error)
	AlertsFindArmed(ctx context.Context, routeID primitive.ObjectID) ([]model.PriceAlert, error)
	AlertMarkTriggered(ctx context.Context, alertID primitive.ObjectID, at time.Time) error
}

type quoteProvider interface {
	GetQuote(ctx context.Context, qr client.QuoteRequest) (client.Quote, error)
}

type notifier interface {
	NotifyWebhook(ctx context.Context, webhookURL string, n client.AlertNotification) error
	NotifyEmail(ctx context.Context, addr string, n client.AlertNotification) error
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Warn(v ...any)
	Error(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

type Options struct {
	PollInterval   time.Duration
	WorkerPoolSize int
	ShutdownGrace  time.Duration
}

// Tracker owns the set of tracked routes: it decides when each route is
// re-checked, runs checks through the rate limiter and retry policy,
// records results, and evaluates alerts. Construct one per store; there is
// no process-wide instance.
type Tracker struct {
	db       store
	provider quoteProvider
	notifier notifier
	limiter  *Limiter
	retry    Policy
	logger   logger
	opts     Options

	mu          sync.Mutex
	running     bool
	loopCancel  context.CancelFunc
	checkCancel context.CancelFunc
	done        chan struct{}
	inFlight    map[primitive.ObjectID]bool
}

func New(db store, provider quoteProvider, nt notifier, limiter *Limiter, retry Policy, log logger, opts Options) *Tracker {
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool {
			return errors.Is(err, client.ErrQuoteTransient)
		}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = 4
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 30 * time.Second
	}
	return &Tracker{
		db:       db,
		provider: provider,
		notifier: nt,
		limiter:  limiter,
		retry:    retry,
		logger:   log,
		opts:     opts,
		inFlight: make(map[primitive.ObjectID]bool),
	}
}

func (t *Tracker) markInFlight(routeID primitive.ObjectID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight[routeID] {
		return false
	}
	t.inFlight[routeID] = true
	return true
}

func (t *Tracker) clearInFlight(routeID primitive.ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, routeID)
}

// CheckNow runs a check for a route immediately, bypassing the due-time
// gate but not the rate limiter or retry policy. A terminal fetch failure
// is returned to the caller with its classification intact.
func (t *Tracker) CheckNow(ctx context.Context, routeID string) (model.PriceRecord, error) {
	r, err := t.db.RouteFindOne(ctx, routeID)
	if err != nil {
		return model.PriceRecord{}, err
	}
	if !t.markInFlight(r.ID) {
		return model.PriceRecord{}, errors.Wrapf(ErrCheckInFlight, "route ID: %s", routeID)
	}
	defer t.clearInFlight(r.ID)
	return t.runCheck(ctx, r)
}

func (t *Tracker) fetchQuote(ctx context.Context, r model.TrackedRoute) (client.Quote, error) {
	qr := client.QuoteRequest{
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: r.DepartureDate,
		ReturnDate:    r.ReturnDate,
		SeatClass:     r.SeatClass,
	}
	var q client.Quote
	err := t.retry.Do(ctx, t.limiter, t.logger, func(ctx context.Context) error {
		var err error
		q, err = t.provider.GetQuote(ctx, qr)
		return err
	})
	return q, err
}

// runCheck performs one check execution: fetch, record, evaluate. On a
// terminal fetch failure no PriceRecord is written but the route's
// last-checked time is still advanced, so a perpetually failing route
// cannot stay due forever.
func (t *Tracker) runCheck(ctx context.Context, r model.TrackedRoute) (model.PriceRecord, error) {
	q, err := t.fetchQuote(ctx, r)
	if err != nil {
		if dbErr := t.db.RouteCheckFailed(ctx, r.ID, time.Now(), r.CheckInterval); dbErr != nil {
			t.logger.Errorf("check: Error advancing check time after failed fetch for route %s, err: %v", r.ID.Hex(), dbErr)
		}
		return model.PriceRecord{}, err
	}

	pr, err := t.db.RecordPrice(ctx, model.PriceRecord{
		RouteID:  r.ID,
		Price:    q.Price,
		Currency: q.Currency,
		Level:    q.Level,
		Airline:  q.Airline,
	})
	if err != nil {
		return pr, err
	}

	if r.LastPrice != nil && *r.LastPrice != pr.Price {
		pct := (pr.Price - *r.LastPrice) / *r.LastPrice * 100
		t.logger.Infof("check: Price changed for route %s (%s -> %s): %.0f -> %.0f (%+.1f%%)",
			r.ID.Hex(), r.Origin, r.Destination, *r.LastPrice, pr.Price, pct)
	}

	if _, err := t.EvaluateAlerts(ctx, r, pr); err != nil {
		t.logger.Errorf("check: Error evaluating alerts for route %s, err: %v", r.ID.Hex(), err)
	}
	return pr, nil
}
