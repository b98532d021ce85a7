package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flighttracker/internal/model"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debugf(format string, v ...any) { l.t.Logf(format, v...) }
func (l testLogger) Infof(format string, v ...any)  { l.t.Logf(format, v...) }
func (l testLogger) Errorf(format string, v ...any) { l.t.Logf(format, v...) }

func testClient(t *testing.T, baseURL string) Client {
	return Client{
		Client:        &http.Client{Timeout: 5 * time.Second},
		QuoteBaseURL:  baseURL,
		QuoteCacheTTL: time.Minute,
		Currency:      "USD",
		Logger:        testLogger{t},
	}
}

var testQuoteRequest = QuoteRequest{
	Origin:        "LAX",
	Destination:   "JFK",
	DepartureDate: "2026-11-20",
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "LAX", r.URL.Query().Get("origin"))
		assert.Equal(t, "JFK", r.URL.Query().Get("destination"))
		_, _ = w.Write([]byte(`{"price": 320.5, "currency": "USD", "price_level": "typical", "airline": "Delta"}`))
	}))
	defer srv.Close()

	q, err := testClient(t, srv.URL).GetQuote(context.Background(), testQuoteRequest)
	require.NoError(t, err)
	assert.Equal(t, 320.5, q.Price)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, model.PriceLevelTypical, q.Level)
	assert.Equal(t, "Delta", q.Airline)
}

func TestGetQuoteDefaultsCurrencyAndLevel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price": 200}`))
	}))
	defer srv.Close()

	q, err := testClient(t, srv.URL).GetQuote(context.Background(), testQuoteRequest)
	require.NoError(t, err)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, model.PriceLevelUnknown, q.Level)
}

func TestGetQuoteClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited upstream", http.StatusTooManyRequests, "slow down", ErrQuoteTransient},
		{"server error", http.StatusBadGateway, "bad gateway", ErrQuoteTransient},
		{"client error", http.StatusBadRequest, "bad request", ErrQuotePermanent},
		{"provider error field", http.StatusOK, `{"error": "unknown airport code"}`, ErrQuotePermanent},
		{"missing price", http.StatusOK, `{"currency": "USD"}`, ErrQuoteTransient},
		{"malformed body", http.StatusOK, `{"price":`, ErrQuoteTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(t, srv.URL).GetQuote(context.Background(), testQuoteRequest)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got: %v", err)
		})
	}
}

func TestGetQuoteNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := testClient(t, srv.URL).GetQuote(context.Background(), testQuoteRequest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuoteTransient))
}
