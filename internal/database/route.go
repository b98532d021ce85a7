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

func (db Database) RouteInsert(ctx context.Context, r model.TrackedRoute) (string, error) {
	if err := r.Validate(db.MinCheckInterval); err != nil {
		return "", err
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	r.Active = true
	r.CreatedAt = now
	r.UpdatedAt = now
	// A route that has never been checked is immediately due.
	r.NextCheckAt = now
	res, err := db.Collection(CollectionRoutes).InsertOne(ctx, r)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting TrackedRoute: %+v", r)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) RouteFindOne(ctx context.Context, routeID string) (model.TrackedRoute, error) {
	var r model.TrackedRoute
	objID, err := primitive.ObjectIDFromHex(routeID)
	if err != nil {
		return r, errors.Wrapf(ErrNotFound, "invalid route ID: %s", routeID)
	}
	err = db.Collection(CollectionRoutes).FindOne(ctx, bson.M{"_id": objID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r, errors.Wrapf(ErrNotFound, "no TrackedRoute with ID: %s", routeID)
	}
	return r, errors.Wrapf(err, "error finding TrackedRoute with ID: %s", routeID)
}

func (db Database) RoutesFindAll(ctx context.Context, activeOnly bool) ([]model.TrackedRoute, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := db.Collection(CollectionRoutes).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find TrackedRoutes")
	}
	var rs []model.TrackedRoute
	if err = cur.All(ctx, &rs); err != nil {
		return nil, errors.Wrap(err, "error getting TrackedRoutes from cursor")
	}
	return rs, nil
}

// RoutesFindDue returns active routes whose next check time has elapsed,
// earliest first.
func (db Database) RoutesFindDue(ctx context.Context, now time.Time) ([]model.TrackedRoute, error) {
	opts := options.Find().SetSort(bson.M{"next_check_at": 1})
	cur, err := db.Collection(CollectionRoutes).Find(ctx, bson.M{
		"active":        true,
		"next_check_at": bson.M{"$lte": primitive.NewDateTimeFromTime(now)},
	}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find due TrackedRoutes")
	}
	var rs []model.TrackedRoute
	if err = cur.All(ctx, &rs); err != nil {
		return nil, errors.Wrap(err, "error getting due TrackedRoutes from cursor")
	}
	return rs, nil
}

// RouteNextDueTime returns the earliest next_check_at among active routes.
// ErrNotFound means there is nothing to schedule.
func (db Database) RouteNextDueTime(ctx context.Context) (time.Time, error) {
	var r model.TrackedRoute
	opts := options.FindOne().SetSort(bson.M{"next_check_at": 1})
	err := db.Collection(CollectionRoutes).FindOne(ctx, bson.M{"active": true}, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, errors.Wrap(ErrNotFound, "no active TrackedRoutes")
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "error finding next due TrackedRoute")
	}
	return r.NextCheckAt.Time(), nil
}

func (db Database) RouteSetActive(ctx context.Context, routeID string, active bool) error {
	objID, err := primitive.ObjectIDFromHex(routeID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid route ID: %s", routeID)
	}
	res, err := db.Collection(CollectionRoutes).UpdateOne(
		ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{
			"active":     active,
			"updated_at": primitive.NewDateTimeFromTime(time.Now()),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error setting active=%t on TrackedRoute with ID: %s", active, routeID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no TrackedRoute with ID: %s", routeID)
	}
	return nil
}

// RouteCheckFailed advances last_checked and next_check_at after a check
// that produced no price, so a failing route cannot monopolize the worker
// pool by staying permanently due.
func (db Database) RouteCheckFailed(ctx context.Context, routeID primitive.ObjectID, at time.Time, interval time.Duration) error {
	res, err := db.Collection(CollectionRoutes).UpdateOne(
		ctx,
		bson.M{"_id": routeID},
		bson.M{"$set": bson.M{
			"last_checked":  primitive.NewDateTimeFromTime(at),
			"next_check_at": primitive.NewDateTimeFromTime(at.Add(interval)),
			"updated_at":    primitive.NewDateTimeFromTime(at),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error recording failed check on TrackedRoute with ID: %s", routeID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no TrackedRoute with ID: %s", routeID.Hex())
	}
	return nil
}
