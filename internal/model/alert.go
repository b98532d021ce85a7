package model

import (
	"net/url"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PriceAlert fires when an observed price for its route drops to or below
// TargetPrice. Once TriggeredAt is set the alert is terminal until
// explicitly re-armed.
type PriceAlert struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"-"`
	RouteID     primitive.ObjectID  `bson:"route_id" json:"-"`
	TargetPrice float64             `bson:"target_price" json:"target_price"`
	WebhookURL  string              `bson:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	Email       string              `bson:"email,omitempty" json:"email,omitempty"`
	Active      bool                `bson:"active" json:"active"`
	CreatedAt   primitive.DateTime  `bson:"created_at" json:"-"`
	TriggeredAt *primitive.DateTime `bson:"triggered_at,omitempty" json:"triggered_at,omitempty"`
}

func (a PriceAlert) Validate() error {
	if a.TargetPrice <= 0 {
		return errors.Wrapf(ErrValidation, "target price must be positive, got: %v", a.TargetPrice)
	}
	if a.WebhookURL != "" {
		u, err := url.Parse(a.WebhookURL)
		if err != nil || u.Scheme != "http" && u.Scheme != "https" {
			return errors.Wrapf(ErrValidation, "invalid webhook URL: %#v", a.WebhookURL)
		}
	}
	return nil
}

// Qualifies reports whether a newly observed price satisfies the alert
// threshold.
func (a PriceAlert) Qualifies(price float64) bool {
	return a.Active && a.TriggeredAt == nil && price <= a.TargetPrice
}
