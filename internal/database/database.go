package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	Name                   = "flight_tracker_db"
	CollectionRoutes       = "routes"
	CollectionPriceRecords = "price_records"
	CollectionAlerts       = "alerts"
)

// Database owns all durable state: tracked routes, their append-only price
// history, and price alerts. Every mutation is durable before the call
// returns.
type Database struct {
	*mongo.Database
	MinCheckInterval time.Duration
}

var (
	ErrNotFound       = errors.New("not found")
	ErrAlertTriggered = errors.New("alert already triggered")
)

func ConnectDB(ctx context.Context, dbURI string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionRoutes).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "active", Value: 1},
				{Key: "next_check_at", Value: 1},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionPriceRecords).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "route_id", Value: 1},
				{Key: "ts", Value: 1},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionAlerts).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "route_id", Value: 1},
				{Key: "active", Value: 1},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}
