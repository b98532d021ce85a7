package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAlertValidate(t *testing.T) {
	require.NoError(t, PriceAlert{TargetPrice: 200}.Validate())
	require.NoError(t, PriceAlert{TargetPrice: 200, WebhookURL: "https://example.com/hook"}.Validate())

	tests := []struct {
		name  string
		alert PriceAlert
	}{
		{"zero target", PriceAlert{TargetPrice: 0}},
		{"negative target", PriceAlert{TargetPrice: -50}},
		{"webhook without scheme", PriceAlert{TargetPrice: 200, WebhookURL: "example.com/hook"}},
		{"webhook bad scheme", PriceAlert{TargetPrice: 200, WebhookURL: "ftp://example.com/hook"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alert.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestAlertQualifies(t *testing.T) {
	a := PriceAlert{TargetPrice: 200, Active: true}

	assert.True(t, a.Qualifies(150))
	assert.True(t, a.Qualifies(200), "boundary price should qualify")
	assert.False(t, a.Qualifies(201))

	a.Active = false
	assert.False(t, a.Qualifies(150))

	a.Active = true
	ta := primitive.NewDateTimeFromTime(time.Now())
	a.TriggeredAt = &ta
	assert.False(t, a.Qualifies(150), "already triggered alerts never qualify")
}
