package server

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"flighttracker/internal/model"
)

// Server is the HTTP front end over the tracking engine. It talks to the
// store for CRUD and to the tracker for check execution and lifecycle.
type Server struct {
	DB            store
	Tracker       trackerService
	Logger        logger
	AuthSecretKey jwk.Key
}

type store interface {
	RouteInsert(ctx context.Context, r model.TrackedRoute) (string, error)
	RouteFindOne(ctx context.Context, routeID string) (model.TrackedRoute, error)
	RoutesFindAll(ctx context.Context, activeOnly bool) ([]model.TrackedRoute, error)
	RouteSetActive(ctx context.Context, routeID string, active bool) error
	History(ctx context.Context, routeID string, onDate string, since time.Duration) ([]model.PriceRecord, model.PriceStats, error)
	PriceRecordFindLatest(ctx context.Context, routeID primitive.ObjectID) (model.PriceRecord, error)
	AlertInsert(ctx context.Context, a model.PriceAlert) (string, error)
	AlertsFindAll(ctx context.Context, activeOnly bool) ([]model.PriceAlert, error)
	AlertRearm(ctx context.Context, alertID string) error
	AlertSetActive(ctx context.Context, alertID string, active bool) error
}

type trackerService interface {
	CheckNow(ctx context.Context, routeID string) (model.PriceRecord, error)
	Start()
	Stop()
	Running() bool
}

type logger interface {
	Debug(v ...any)
	Info(v ...any)
	Error(v ...any)
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}
