package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flighttracker/internal/model"
)

// RecordPrice appends a PriceRecord and updates the owning route's
// last-checked/last-observed fields in the same transaction, so a reader
// can never observe a route whose last price disagrees with its latest
// record.
func (db Database) RecordPrice(ctx context.Context, pr model.PriceRecord) (model.PriceRecord, error) {
	pr.ID = primitive.NilObjectID
	if pr.RecordedAt == 0 {
		pr.RecordedAt = primitive.NewDateTimeFromTime(time.Now())
	}

	sess, err := db.Client().StartSession()
	if err != nil {
		return pr, errors.Wrap(err, "error starting session to record price")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var r model.TrackedRoute
		err := db.Collection(CollectionRoutes).FindOne(sc, bson.M{"_id": pr.RouteID}).Decode(&r)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "no TrackedRoute with ID: %s", pr.RouteID.Hex())
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error finding TrackedRoute with ID: %s", pr.RouteID.Hex())
		}

		res, err := db.Collection(CollectionPriceRecords).InsertOne(sc, pr)
		if err != nil {
			return nil, errors.Wrapf(err, "error inserting PriceRecord: %+v", pr)
		}
		pr.ID = res.InsertedID.(primitive.ObjectID)

		at := pr.RecordedAt.Time()
		_, err = db.Collection(CollectionRoutes).UpdateOne(
			sc,
			bson.M{"_id": pr.RouteID},
			bson.M{"$set": bson.M{
				"last_checked":  pr.RecordedAt,
				"last_price":    pr.Price,
				"last_level":    pr.Level,
				"next_check_at": primitive.NewDateTimeFromTime(at.Add(r.CheckInterval)),
				"updated_at":    pr.RecordedAt,
			}},
		)
		if err != nil {
			return nil, errors.Wrapf(err, "error updating TrackedRoute after price record, ID: %s", pr.RouteID.Hex())
		}
		return nil, nil
	})
	return pr, err
}

// PriceRecordsFindRange returns the records for a route within [start, end],
// oldest first.
func (db Database) PriceRecordsFindRange(
	ctx context.Context, routeID primitive.ObjectID, start time.Time, end time.Time,
) ([]model.PriceRecord, error) {
	opts := options.Find().SetSort(bson.M{"ts": 1})
	cur, err := db.Collection(CollectionPriceRecords).Find(ctx, bson.M{
		"route_id": routeID,
		"ts": bson.M{
			"$gte": primitive.NewDateTimeFromTime(start),
			"$lte": primitive.NewDateTimeFromTime(end),
		},
	}, opts)
	if err != nil {
		return nil, errors.Wrapf(err,
			"error getting cursor to find PriceRecords for RouteID: %s, start: %s, end: %s",
			routeID.Hex(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	var prs []model.PriceRecord
	if err = cur.All(ctx, &prs); err != nil {
		return nil, errors.Wrapf(err,
			"error getting PriceRecords from cursor for RouteID: %s, start: %s, end: %s",
			routeID.Hex(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return prs, nil
}

func (db Database) PriceRecordFindLatest(ctx context.Context, routeID primitive.ObjectID) (model.PriceRecord, error) {
	var pr model.PriceRecord
	opts := options.FindOne().SetSort(bson.M{"ts": -1})
	err := db.Collection(CollectionPriceRecords).FindOne(ctx, bson.M{"route_id": routeID}, opts).Decode(&pr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return pr, errors.Wrapf(ErrNotFound, "no PriceRecords for RouteID: %s", routeID.Hex())
	}
	return pr, errors.Wrapf(err, "error finding latest PriceRecord for RouteID: %s", routeID.Hex())
}

// History returns a route's price records for the requested window together
// with aggregate statistics. The stats are folded over the same snapshot
// that is returned, so the sequence and the aggregates cannot disagree.
// A non-empty onDate (YYYY-MM-DD) narrows the window to that single day.
func (db Database) History(
	ctx context.Context, routeID string, onDate string, since time.Duration,
) ([]model.PriceRecord, model.PriceStats, error) {
	objID, err := primitive.ObjectIDFromHex(routeID)
	if err != nil {
		return nil, model.PriceStats{}, errors.Wrapf(ErrNotFound, "invalid route ID: %s", routeID)
	}
	if _, err := db.RouteFindOne(ctx, routeID); err != nil {
		return nil, model.PriceStats{}, err
	}

	end := time.Now()
	start := end.Add(-since)
	if onDate != "" {
		day, err := time.Parse(model.DateLayout, onDate)
		if err != nil {
			return nil, model.PriceStats{}, errors.Wrapf(model.ErrValidation, "invalid date: %#v", onDate)
		}
		start = day
		end = day.Add(24*time.Hour - time.Nanosecond)
	}

	prs, err := db.PriceRecordsFindRange(ctx, objID, start, end)
	if err != nil {
		return nil, model.PriceStats{}, err
	}
	return prs, model.ComputeStats(prs), nil
}
