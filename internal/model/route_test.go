package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRoute() TrackedRoute {
	return TrackedRoute{
		Origin:        "LAX",
		Destination:   "JFK",
		DepartureDate: "2026-11-20",
		CheckInterval: time.Hour,
	}
}

func TestRouteValidate(t *testing.T) {
	minInterval := 15 * time.Minute

	require.NoError(t, validRoute().Validate(minInterval))

	tests := []struct {
		name   string
		modify func(*TrackedRoute)
	}{
		{"lowercase origin", func(r *TrackedRoute) { r.Origin = "lax" }},
		{"origin too long", func(r *TrackedRoute) { r.Origin = "LAXX" }},
		{"empty destination", func(r *TrackedRoute) { r.Destination = "" }},
		{"bad departure date", func(r *TrackedRoute) { r.DepartureDate = "20-11-2026" }},
		{"bad return date", func(r *TrackedRoute) { r.ReturnDate = "someday" }},
		{"interval below minimum", func(r *TrackedRoute) { r.CheckInterval = time.Minute }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRoute()
			tt.modify(&r)
			err := r.Validate(minInterval)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestRouteDeparted(t *testing.T) {
	now := time.Now()

	r := validRoute()
	r.DepartureDate = now.AddDate(0, 0, -2).Format(DateLayout)
	assert.True(t, r.Departed(now))

	r.DepartureDate = now.AddDate(0, 0, 2).Format(DateLayout)
	assert.False(t, r.Departed(now))

	// An unparseable date never counts as departed.
	r.DepartureDate = "garbage"
	assert.False(t, r.Departed(now))
}
