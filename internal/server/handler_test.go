package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flighttracker/internal/client"
	"flighttracker/internal/database"
	logpkg "flighttracker/internal/logger"
	"flighttracker/internal/model"
	"flighttracker/internal/tracker"
)

type fakeStore struct {
	routes []model.TrackedRoute
	alerts []model.PriceAlert
	latest *model.PriceRecord

	records []model.PriceRecord
	stats   model.PriceStats

	insertRouteErr error
	insertAlertErr error
	setActiveErr   error
	rearmErr       error

	insertedRoute *model.TrackedRoute
	insertedAlert *model.PriceAlert
	activeSet     map[string]bool
}

func (s *fakeStore) RouteInsert(_ context.Context, r model.TrackedRoute) (string, error) {
	if s.insertRouteErr != nil {
		return "", s.insertRouteErr
	}
	s.insertedRoute = &r
	return primitive.NewObjectID().Hex(), nil
}

func (s *fakeStore) RouteFindOne(_ context.Context, routeID string) (model.TrackedRoute, error) {
	for _, r := range s.routes {
		if r.ID.Hex() == routeID {
			return r, nil
		}
	}
	return model.TrackedRoute{}, errors.Wrapf(database.ErrNotFound, "route ID: %s", routeID)
}

func (s *fakeStore) RoutesFindAll(_ context.Context, activeOnly bool) ([]model.TrackedRoute, error) {
	if !activeOnly {
		return s.routes, nil
	}
	var active []model.TrackedRoute
	for _, r := range s.routes {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *fakeStore) RouteSetActive(_ context.Context, routeID string, active bool) error {
	if s.setActiveErr != nil {
		return s.setActiveErr
	}
	if s.activeSet == nil {
		s.activeSet = make(map[string]bool)
	}
	s.activeSet[routeID] = active
	return nil
}

func (s *fakeStore) History(_ context.Context, routeID string, _ string, _ time.Duration) ([]model.PriceRecord, model.PriceStats, error) {
	return s.records, s.stats, nil
}

func (s *fakeStore) PriceRecordFindLatest(_ context.Context, _ primitive.ObjectID) (model.PriceRecord, error) {
	if s.latest == nil {
		return model.PriceRecord{}, database.ErrNotFound
	}
	return *s.latest, nil
}

func (s *fakeStore) AlertInsert(_ context.Context, a model.PriceAlert) (string, error) {
	if s.insertAlertErr != nil {
		return "", s.insertAlertErr
	}
	s.insertedAlert = &a
	return primitive.NewObjectID().Hex(), nil
}

func (s *fakeStore) AlertsFindAll(_ context.Context, activeOnly bool) ([]model.PriceAlert, error) {
	if !activeOnly {
		return s.alerts, nil
	}
	var active []model.PriceAlert
	for _, a := range s.alerts {
		if a.Active {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *fakeStore) AlertRearm(_ context.Context, alertID string) error {
	return s.rearmErr
}

func (s *fakeStore) AlertSetActive(_ context.Context, alertID string, active bool) error {
	if s.setActiveErr != nil {
		return s.setActiveErr
	}
	if s.activeSet == nil {
		s.activeSet = make(map[string]bool)
	}
	s.activeSet[alertID] = active
	return nil
}

type fakeTrackerSvc struct {
	record  model.PriceRecord
	err     error
	running bool
}

func (f *fakeTrackerSvc) CheckNow(context.Context, string) (model.PriceRecord, error) {
	return f.record, f.err
}
func (f *fakeTrackerSvc) Start()        { f.running = true }
func (f *fakeTrackerSvc) Stop()         { f.running = false }
func (f *fakeTrackerSvc) Running() bool { return f.running }

func newTestServer(db *fakeStore, trk *fakeTrackerSvc) Server {
	return Server{
		DB:      db,
		Tracker: trk,
		Logger:  logpkg.NewLogger(logpkg.LevelOff, io.Discard),
	}
}

func doRequest(t *testing.T, s Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRouteTrack(t *testing.T) {
	db := &fakeStore{}
	trk := &fakeTrackerSvc{record: model.PriceRecord{Price: 320, Currency: "USD", Level: model.PriceLevelTypical}}
	s := newTestServer(db, trk)

	rec := doRequest(t, s, http.MethodPost, "/api/route/track",
		`{"origin":"LAX","destination":"JFK","departure_date":"2026-11-20","check_interval":"1h"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RouteID string   `json:"route_id"`
		Price   *float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RouteID)
	require.NotNil(t, resp.Price)
	assert.Equal(t, 320.0, *resp.Price)

	require.NotNil(t, db.insertedRoute)
	assert.Equal(t, "LAX", db.insertedRoute.Origin)
	assert.Equal(t, time.Hour, db.insertedRoute.CheckInterval)
}

func TestRouteTrackInitialCheckFailureStillTracks(t *testing.T) {
	db := &fakeStore{}
	trk := &fakeTrackerSvc{err: errors.Wrap(client.ErrQuoteTransient, "upstream 503")}
	s := newTestServer(db, trk)

	rec := doRequest(t, s, http.MethodPost, "/api/route/track",
		`{"origin":"LAX","destination":"JFK","departure_date":"2026-11-20","check_interval":"1h"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RouteID string   `json:"route_id"`
		Price   *float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RouteID)
	assert.Nil(t, resp.Price)
}

func TestRouteTrackBadInterval(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodPost, "/api/route/track",
		`{"origin":"LAX","destination":"JFK","departure_date":"2026-11-20","check_interval":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouteTrackValidationFailure(t *testing.T) {
	db := &fakeStore{insertRouteErr: errors.Wrap(model.ErrValidation, "invalid origin airport code")}
	s := newTestServer(db, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodPost, "/api/route/track",
		`{"origin":"bad","destination":"JFK","departure_date":"2026-11-20","check_interval":"1h"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid origin airport code")
}

func TestRouteCheckClassifiedFailure(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		classification string
	}{
		{"transient", errors.Wrap(client.ErrQuoteTransient, "upstream 503"), "transient"},
		{"permanent", errors.Wrap(client.ErrQuotePermanent, "unknown airport"), "permanent"},
		{"rate limited", errors.Wrap(tracker.ErrRateLimited, "timed out"), "rate_limited"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeStore{}, &fakeTrackerSvc{err: tt.err})
			rec := doRequest(t, s, http.MethodPost, "/api/route/check/"+primitive.NewObjectID().Hex(), "")
			require.Equal(t, http.StatusBadGateway, rec.Code)

			var resp struct {
				Classification string `json:"classification"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.classification, resp.Classification)
		})
	}
}

func TestRouteCheckConflict(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{err: errors.Wrap(tracker.ErrCheckInFlight, "route busy")})
	rec := doRequest(t, s, http.MethodPost, "/api/route/check/"+primitive.NewObjectID().Hex(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouteCheckNotFound(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{err: errors.Wrap(database.ErrNotFound, "route")})
	rec := doRequest(t, s, http.MethodPost, "/api/route/check/"+primitive.NewObjectID().Hex(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteRemoveAndResume(t *testing.T) {
	db := &fakeStore{}
	s := newTestServer(db, &fakeTrackerSvc{})
	routeID := primitive.NewObjectID().Hex()

	rec := doRequest(t, s, http.MethodPost, "/api/route/remove", `{"route_id":"`+routeID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, db.activeSet[routeID])

	rec = doRequest(t, s, http.MethodPost, "/api/route/resume", `{"route_id":"`+routeID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, db.activeSet[routeID])
}

func TestRouteHistory(t *testing.T) {
	db := &fakeStore{
		records: []model.PriceRecord{{Price: 280}, {Price: 320}},
		stats:   model.PriceStats{Min: 280, Max: 320, Mean: 300, Count: 2},
	}
	s := newTestServer(db, &fakeTrackerSvc{})

	rec := doRequest(t, s, http.MethodGet, "/api/route/history/"+primitive.NewObjectID().Hex()+"?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []model.PriceRecord `json:"records"`
		Stats   model.PriceStats    `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 2)
	assert.Equal(t, 2, resp.Stats.Count)
}

func TestRouteHistoryBadDays(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodGet, "/api/route/history/"+primitive.NewObjectID().Hex()+"?days=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertAddWillTrigger(t *testing.T) {
	routeID := primitive.NewObjectID()

	db := &fakeStore{latest: &model.PriceRecord{Price: 150}}
	s := newTestServer(db, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodPost, "/api/alert/add",
		`{"route_id":"`+routeID.Hex()+`","target_price":200}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AlertID     string `json:"alert_id"`
		WillTrigger bool   `json:"will_trigger"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AlertID)
	assert.True(t, resp.WillTrigger)

	// No price history yet means no prediction.
	db = &fakeStore{}
	s = newTestServer(db, &fakeTrackerSvc{})
	rec = doRequest(t, s, http.MethodPost, "/api/alert/add",
		`{"route_id":"`+routeID.Hex()+`","target_price":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.WillTrigger)
}

func TestAlertAddUnknownRoute(t *testing.T) {
	db := &fakeStore{insertAlertErr: errors.Wrap(database.ErrNotFound, "route")}
	s := newTestServer(db, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodPost, "/api/alert/add",
		`{"route_id":"`+primitive.NewObjectID().Hex()+`","target_price":200}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlertRearmConflict(t *testing.T) {
	db := &fakeStore{rearmErr: errors.Wrap(database.ErrAlertTriggered, "alert")}
	s := newTestServer(db, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodPost, "/api/alert/rearm",
		`{"alert_id":"`+primitive.NewObjectID().Hex()+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrackerStartStop(t *testing.T) {
	trk := &fakeTrackerSvc{}
	s := newTestServer(&fakeStore{}, trk)

	rec := doRequest(t, s, http.MethodPost, "/api/tracker/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":true`)

	rec = doRequest(t, s, http.MethodPost, "/api/tracker/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running":false`)
}

func TestHealth(t *testing.T) {
	db := &fakeStore{routes: []model.TrackedRoute{
		{ID: primitive.NewObjectID(), Active: true},
		{ID: primitive.NewObjectID(), Active: false},
	}}
	s := newTestServer(db, &fakeTrackerSvc{running: true})

	rec := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status       string `json:"status"`
		Running      bool   `json:"tracker_running"`
		ActiveRoutes int    `json:"active_routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Running)
	assert.Equal(t, 1, resp.ActiveRoutes)
}

func TestUnknownPathIs404(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{})
	rec := doRequest(t, s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	key, err := jwk.FromRaw([]byte("test-secret-key"))
	require.NoError(t, err)

	s := newTestServer(&fakeStore{}, &fakeTrackerSvc{})
	s.AuthSecretKey = key

	req := httptest.NewRequest(http.MethodGet, "/api/route/get", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing token should be rejected")

	req = httptest.NewRequest(http.MethodGet, "/api/route/get", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "garbage token should be rejected")

	tok, err := jwt.NewBuilder().
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/route/get", nil)
	req.Header.Set("Authorization", "Bearer "+string(signed))
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open even with auth configured.
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
