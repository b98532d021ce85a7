package client

import (
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v9"
)

// Client talks to the external quote provider and delivers alert
// notifications. Redis, when configured, is used as a short-lived
// read-through cache for quotes so bursts of checks for the same route do
// not hammer the provider.
type Client struct {
	*http.Client
	Redis         *redis.Client
	QuoteBaseURL  string
	QuoteCacheTTL time.Duration
	Currency      string
	SMTP          SMTPConfig
	Logger        logger
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

func newRequest(method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent", "flighttracker/1.0")
	r.Header.Set("Accept", "application/json")
}
