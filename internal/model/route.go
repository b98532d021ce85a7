package model

import (
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DateLayout = "2006-01-02"

var iataRe = regexp.MustCompile(`^[A-Z]{3}$`)

var ErrValidation = errors.New("validation failed")

// TrackedRoute is a flight route being monitored for price changes.
// NextCheckAt drives scheduling and is advanced every time a check
// completes, whether or not the fetch succeeded.
type TrackedRoute struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"-"`
	Origin        string              `bson:"origin" json:"origin"`
	Destination   string              `bson:"destination" json:"destination"`
	DepartureDate string              `bson:"departure_date" json:"departure_date"`
	ReturnDate    string              `bson:"return_date,omitempty" json:"return_date,omitempty"`
	SeatClass     string              `bson:"seat_class" json:"seat_class"`
	CheckInterval time.Duration       `bson:"check_interval" json:"check_interval"`
	Active        bool                `bson:"active" json:"active"`
	LastChecked   *primitive.DateTime `bson:"last_checked,omitempty" json:"last_checked,omitempty"`
	LastPrice     *float64            `bson:"last_price,omitempty" json:"last_price,omitempty"`
	LastLevel     PriceLevel          `bson:"last_level,omitempty" json:"last_level,omitempty"`
	NextCheckAt   primitive.DateTime  `bson:"next_check_at" json:"-"`
	CreatedAt     primitive.DateTime  `bson:"created_at" json:"-"`
	UpdatedAt     primitive.DateTime  `bson:"updated_at" json:"-"`
}

func (r TrackedRoute) Validate(minInterval time.Duration) error {
	if !iataRe.MatchString(r.Origin) {
		return errors.Wrapf(ErrValidation, "invalid origin airport code: %#v", r.Origin)
	}
	if !iataRe.MatchString(r.Destination) {
		return errors.Wrapf(ErrValidation, "invalid destination airport code: %#v", r.Destination)
	}
	if _, err := time.Parse(DateLayout, r.DepartureDate); err != nil {
		return errors.Wrapf(ErrValidation, "invalid departure date: %#v", r.DepartureDate)
	}
	if r.ReturnDate != "" {
		if _, err := time.Parse(DateLayout, r.ReturnDate); err != nil {
			return errors.Wrapf(ErrValidation, "invalid return date: %#v", r.ReturnDate)
		}
	}
	if r.CheckInterval < minInterval {
		return errors.Wrapf(ErrValidation, "check interval too short (%v), minimum: %v", r.CheckInterval, minInterval)
	}
	return nil
}

// Departed reports whether the route's departure date is in the past,
// in which case there is nothing left to track.
func (r TrackedRoute) Departed(now time.Time) bool {
	d, err := time.Parse(DateLayout, r.DepartureDate)
	if err != nil {
		return false
	}
	return d.Before(now.Truncate(24 * time.Hour))
}
