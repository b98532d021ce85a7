package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotification() AlertNotification {
	old := 350.0
	return AlertNotification{
		Origin:        "LAX",
		Destination:   "JFK",
		DepartureDate: "2026-11-20",
		Price:         180,
		TargetPrice:   200,
		Currency:      "USD",
		OldPrice:      &old,
		Message:       "Price alert triggered! LAX -> JFK on 2026-11-20 is now 180 USD (target: 200)",
	}
}

func TestWebhookPayloadShaping(t *testing.T) {
	n := testNotification()

	generic, err := json.Marshal(webhookPayload("https://example.com/hook", n))
	require.NoError(t, err)
	assert.Contains(t, string(generic), `"type":"flight_price_alert"`)
	assert.Contains(t, string(generic), `"current_price":180`)
	assert.Contains(t, string(generic), `"old_price":350`)

	discord, err := json.Marshal(webhookPayload("https://discord.com/api/webhooks/123/abc", n))
	require.NoError(t, err)
	assert.Contains(t, string(discord), `"embeds"`)
	assert.Contains(t, string(discord), "Flight Price Alert")
	assert.Contains(t, string(discord), "LAX -> JFK")
}

func TestNotifyWebhook(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c := Client{Client: &http.Client{Timeout: 5 * time.Second}, Logger: testLogger{t}}
	require.NoError(t, c.NotifyWebhook(context.Background(), srv.URL, testNotification()))
	assert.Contains(t, string(received), `"flight_price_alert"`)
}

func TestNotifyWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := Client{Client: &http.Client{Timeout: 5 * time.Second}, Logger: testLogger{t}}
	err := c.NotifyWebhook(context.Background(), srv.URL, testNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
