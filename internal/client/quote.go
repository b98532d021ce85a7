package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"

	"flighttracker/internal/misc"
	"flighttracker/internal/model"
)

// Failure classification for quote fetches. Transient failures (network
// errors, upstream rate limiting, temporary blocks) are safe to retry;
// permanent failures (unknown airport, malformed date) are not.
var (
	ErrQuoteTransient = errors.New("transient quote provider failure")
	ErrQuotePermanent = errors.New("permanent quote provider failure")
)

type QuoteRequest struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	SeatClass     string
}

type Quote struct {
	Price    float64          `json:"price"`
	Currency string           `json:"currency"`
	Level    model.PriceLevel `json:"price_level"`
	Airline  string           `json:"airline"`
}

type quoteResponse struct {
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
	PriceLevel string  `json:"price_level"`
	Airline    string  `json:"airline"`
	Error      string  `json:"error"`
}

func (q QuoteRequest) apiURL(base string) string {
	v := url.Values{}
	v.Set("origin", q.Origin)
	v.Set("destination", q.Destination)
	v.Set("departure_date", q.DepartureDate)
	if q.ReturnDate != "" {
		v.Set("return_date", q.ReturnDate)
	}
	if q.SeatClass != "" {
		v.Set("seat_class", q.SeatClass)
	}
	return base + "/quote?" + v.Encode()
}

// GetQuote asks the provider for the current price of a route. A cached
// quote newer than QuoteCacheTTL is served without touching the provider.
func (c Client) GetQuote(ctx context.Context, qr QuoteRequest) (Quote, error) {
	apiURL := qr.apiURL(c.QuoteBaseURL)
	cacheKey := "QTE-" + apiURL
	if c.Redis != nil {
		cached, err := c.Redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var q Quote
			if err = json.Unmarshal([]byte(cached), &q); err == nil {
				c.Logger.Debugf("GetQuote: Cache found, key: %s", cacheKey)
				return q, nil
			}
			c.Logger.Errorf("GetQuote: Error unmarshalling cache, key: %s, err: %v", cacheKey, err)
		} else if err != redis.Nil {
			c.Logger.Errorf("GetQuote: Error getting Redis cache with key: %s, err: %v", cacheKey, err)
		}
	}

	req, err := newRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrQuotePermanent, "error creating request from apiURL: %s, err: %v", apiURL, err)
	}
	req = req.WithContext(ctx)

	c.Logger.Debugf("GetQuote: Sending request to %s", apiURL)
	resp, err := c.Do(req)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrQuoteTransient, "error doing request to apiURL: %s, err: %v", apiURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.Logger.Errorf("GetQuote: Error closing response body on request to URL: %s, err: %v", req.URL, err)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 300*1024))
	if err != nil {
		return Quote{}, errors.Wrapf(ErrQuoteTransient,
			"error reading QuoteAPI response body, status: %s, err: %v", resp.Status, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := ErrQuotePermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = ErrQuoteTransient
		}
		return Quote{}, errors.Wrapf(kind, "QuoteAPI status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 2000))
	}

	var qResp quoteResponse
	if err = json.Unmarshal(body, &qResp); err != nil {
		return Quote{}, errors.Wrapf(ErrQuoteTransient,
			"error unmarshalling QuoteAPI response body, status: %s, body:\n%s,\nerr: %v",
			resp.Status, misc.BytesLimit(body, 2000), err)
	}
	if qResp.Error != "" {
		return Quote{}, errors.Wrapf(ErrQuotePermanent, "QuoteAPI error: %s", misc.StringLimit(qResp.Error, 500))
	}
	if qResp.Price <= 0 {
		return Quote{}, errors.Wrapf(ErrQuoteTransient, "QuoteAPI returned no price, body:\n%s", misc.BytesLimit(body, 2000))
	}

	q := Quote{
		Price:    qResp.Price,
		Currency: qResp.Currency,
		Level:    model.ParsePriceLevel(qResp.PriceLevel),
		Airline:  qResp.Airline,
	}
	if q.Currency == "" {
		q.Currency = c.Currency
	}

	if c.Redis != nil {
		if qJSON, err := json.Marshal(q); err == nil {
			if err = c.Redis.Set(ctx, cacheKey, qJSON, c.QuoteCacheTTL).Err(); err != nil {
				c.Logger.Errorf("GetQuote: Error setting Redis cache with key: %s, err: %v", cacheKey, err)
			}
		}
	}
	return q, nil
}
