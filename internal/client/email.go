package client

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	mail "gopkg.in/mail.v2"
)

// NotifyEmail sends the alert notification to an email address over SMTP.
func (c Client) NotifyEmail(_ context.Context, addr string, n AlertNotification) error {
	if c.SMTP.Host == "" {
		return errors.New("NotifyEmail: SMTP is not configured")
	}

	m := mail.NewMessage()
	m.SetHeader("From", c.SMTP.From)
	m.SetHeader("To", addr)
	m.SetHeader("Subject", fmt.Sprintf("Flight Price Alert: %s - %.0f %s", n.RouteLabel(), n.Price, n.Currency))

	body := fmt.Sprintf(
		"%s\n\nRoute: %s\nDate: %s\nCurrent Price: %.0f %s\nTarget Price: %.0f %s\n",
		n.Message, n.RouteLabel(), n.DepartureDate, n.Price, n.Currency, n.TargetPrice, n.Currency,
	)
	if n.OldPrice != nil {
		body += fmt.Sprintf("Previous Price: %.0f %s\n", *n.OldPrice, n.Currency)
	}
	m.SetBody("text/plain", body)

	dialer := mail.NewDialer(c.SMTP.Host, c.SMTP.Port, c.SMTP.Username, c.SMTP.Password)
	return errors.Wrapf(dialer.DialAndSend(m), "NotifyEmail: error sending to: %s", addr)
}
