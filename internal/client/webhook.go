package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"flighttracker/internal/misc"
)

// AlertNotification is the payload delivered to an alert's notification
// targets when the alert fires.
type AlertNotification struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departure_date"`
	Price         float64  `json:"current_price"`
	TargetPrice   float64  `json:"target_price"`
	Currency      string   `json:"currency"`
	OldPrice      *float64 `json:"old_price,omitempty"`
	Message       string   `json:"message"`
}

func (n AlertNotification) RouteLabel() string {
	return n.Origin + " -> " + n.Destination
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields"`
	Timestamp   string              `json:"timestamp"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// webhookPayload shapes the body per target: Discord webhooks get an embed,
// everything else gets the generic JSON document.
func webhookPayload(webhookURL string, n AlertNotification) any {
	if strings.Contains(webhookURL, "discord.com/api/webhooks") {
		return struct {
			Embeds []discordEmbed `json:"embeds"`
		}{
			Embeds: []discordEmbed{{
				Title:       "Flight Price Alert",
				Description: n.Message,
				Color:       0x00FF00,
				Fields: []discordEmbedField{
					{Name: "Route", Value: n.RouteLabel(), Inline: true},
					{Name: "Date", Value: n.DepartureDate, Inline: true},
					{Name: "Current Price", Value: fmt.Sprintf("%.0f %s", n.Price, n.Currency), Inline: true},
					{Name: "Target Price", Value: fmt.Sprintf("%.0f %s", n.TargetPrice, n.Currency), Inline: true},
				},
				Timestamp: time.Now().Format(time.RFC3339),
			}},
		}
	}
	return struct {
		Type string `json:"type"`
		AlertNotification
	}{
		Type:              "flight_price_alert",
		AlertNotification: n,
	}
}

func (c Client) NotifyWebhook(ctx context.Context, webhookURL string, n AlertNotification) error {
	payload := webhookPayload(webhookURL, n)
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "NotifyWebhook: error marshalling payload: %+v", payload)
	}

	req, err := newRequest(http.MethodPost, webhookURL, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrapf(err, "NotifyWebhook: error creating HTTP request from body: %s", reqBody)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "NotifyWebhook: error doing request to URL: %s", webhookURL)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("NotifyWebhook: Error closing response body, URL: %s, err: %v", webhookURL, err)
		}
	}()

	body, _ := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 10*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("NotifyWebhook: webhook returned status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 500))
	}
	return nil
}
