package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"flighttracker/internal/client"
	"flighttracker/internal/database"
	"flighttracker/internal/model"
)

// EvaluateAlerts decides which of a route's armed alerts the new price
// triggers, and returns the IDs of the alerts this evaluation transitioned.
// The triggered transition goes through the store's conditional update, so
// when two evaluations race on the same alert exactly one wins; the loser's
// Conflict is swallowed here, which is what makes delivery at-most-once per
// threshold crossing.
func (t *Tracker) EvaluateAlerts(ctx context.Context, r model.TrackedRoute, pr model.PriceRecord) ([]string, error) {
	alerts, err := t.db.AlertsFindArmed(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	var triggered []string
	for _, a := range alerts {
		if !a.Qualifies(pr.Price) {
			continue
		}
		if err := t.db.AlertMarkTriggered(ctx, a.ID, time.Now()); err != nil {
			if errors.Is(err, database.ErrAlertTriggered) {
				t.logger.Debugf("evaluate: Lost trigger race for alert %s, another check fired it", a.ID.Hex())
				continue
			}
			t.logger.Errorf("evaluate: Error marking alert %s triggered, err: %v", a.ID.Hex(), err)
			continue
		}
		triggered = append(triggered, a.ID.Hex())
		t.logger.Infof("evaluate: Alert %s triggered for route %s (%s -> %s), price: %.0f, target: %.0f",
			a.ID.Hex(), r.ID.Hex(), r.Origin, r.Destination, pr.Price, a.TargetPrice)
		t.deliver(ctx, r, a, pr)
	}
	return triggered, nil
}

// deliver sends the notification for a freshly triggered alert. Delivery
// failures never roll the trigger back; they are reported as delivery
// failures and the alert stays fired.
func (t *Tracker) deliver(ctx context.Context, r model.TrackedRoute, a model.PriceAlert, pr model.PriceRecord) {
	n := client.AlertNotification{
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: r.DepartureDate,
		Price:         pr.Price,
		TargetPrice:   a.TargetPrice,
		Currency:      pr.Currency,
		OldPrice:      r.LastPrice,
		Message: fmt.Sprintf("Price alert triggered! %s -> %s on %s is now %.0f %s (target: %.0f)",
			r.Origin, r.Destination, r.DepartureDate, pr.Price, pr.Currency, a.TargetPrice),
	}

	if a.WebhookURL != "" {
		if err := t.notifier.NotifyWebhook(ctx, a.WebhookURL, n); err != nil {
			t.logger.Errorf("deliver: Webhook delivery failed for alert %s, URL: %s, err: %v",
				a.ID.Hex(), a.WebhookURL, err)
		}
	}
	if a.Email != "" {
		if err := t.notifier.NotifyEmail(ctx, a.Email, n); err != nil {
			t.logger.Errorf("deliver: Email delivery failed for alert %s, to: %s, err: %v",
				a.ID.Hex(), a.Email, err)
		}
	}
}
