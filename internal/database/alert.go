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

func (db Database) AlertInsert(ctx context.Context, a model.PriceAlert) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	n, err := db.Collection(CollectionRoutes).CountDocuments(ctx, bson.M{"_id": a.RouteID})
	if err != nil {
		return "", errors.Wrapf(err, "error checking TrackedRoute existence for alert, RouteID: %s", a.RouteID.Hex())
	}
	if n == 0 {
		return "", errors.Wrapf(ErrNotFound, "no TrackedRoute with ID: %s", a.RouteID.Hex())
	}

	a.Active = true
	a.TriggeredAt = nil
	a.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	res, err := db.Collection(CollectionAlerts).InsertOne(ctx, a)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting PriceAlert: %+v", a)
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) AlertFindOne(ctx context.Context, alertID string) (model.PriceAlert, error) {
	var a model.PriceAlert
	objID, err := primitive.ObjectIDFromHex(alertID)
	if err != nil {
		return a, errors.Wrapf(ErrNotFound, "invalid alert ID: %s", alertID)
	}
	err = db.Collection(CollectionAlerts).FindOne(ctx, bson.M{"_id": objID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return a, errors.Wrapf(ErrNotFound, "no PriceAlert with ID: %s", alertID)
	}
	return a, errors.Wrapf(err, "error finding PriceAlert with ID: %s", alertID)
}

func (db Database) AlertsFindAll(ctx context.Context, activeOnly bool) ([]model.PriceAlert, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cur, err := db.Collection(CollectionAlerts).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find PriceAlerts")
	}
	var as []model.PriceAlert
	if err = cur.All(ctx, &as); err != nil {
		return nil, errors.Wrap(err, "error getting PriceAlerts from cursor")
	}
	return as, nil
}

// AlertsFindArmed returns the alerts for a route that are active and have
// not fired yet.
func (db Database) AlertsFindArmed(ctx context.Context, routeID primitive.ObjectID) ([]model.PriceAlert, error) {
	cur, err := db.Collection(CollectionAlerts).Find(ctx, bson.M{
		"route_id":     routeID,
		"active":       true,
		"triggered_at": nil,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find armed PriceAlerts for RouteID: %s", routeID.Hex())
	}
	var as []model.PriceAlert
	if err = cur.All(ctx, &as); err != nil {
		return nil, errors.Wrapf(err, "error getting armed PriceAlerts from cursor for RouteID: %s", routeID.Hex())
	}
	return as, nil
}

// AlertMarkTriggered transitions an alert from armed to triggered. The
// filter only matches an armed alert, so of two racing evaluations exactly
// one wins; the loser gets ErrAlertTriggered.
func (db Database) AlertMarkTriggered(ctx context.Context, alertID primitive.ObjectID, at time.Time) error {
	res, err := db.Collection(CollectionAlerts).UpdateOne(
		ctx,
		bson.M{
			"_id":          alertID,
			"active":       true,
			"triggered_at": nil,
		},
		bson.M{"$set": bson.M{
			"active":       false,
			"triggered_at": primitive.NewDateTimeFromTime(at),
		}},
	)
	if err != nil {
		return errors.Wrapf(err, "error marking PriceAlert triggered, ID: %s", alertID.Hex())
	}
	if res.MatchedCount == 0 {
		n, err := db.Collection(CollectionAlerts).CountDocuments(ctx, bson.M{"_id": alertID})
		if err != nil {
			return errors.Wrapf(err, "error checking PriceAlert existence, ID: %s", alertID.Hex())
		}
		if n == 0 {
			return errors.Wrapf(ErrNotFound, "no PriceAlert with ID: %s", alertID.Hex())
		}
		return errors.Wrapf(ErrAlertTriggered, "PriceAlert already triggered or inactive, ID: %s", alertID.Hex())
	}
	return nil
}

// AlertRearm reactivates a triggered alert and clears its trigger time so
// it can fire again on the next qualifying price.
func (db Database) AlertRearm(ctx context.Context, alertID string) error {
	objID, err := primitive.ObjectIDFromHex(alertID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid alert ID: %s", alertID)
	}
	res, err := db.Collection(CollectionAlerts).UpdateOne(
		ctx,
		bson.M{"_id": objID},
		bson.M{
			"$set":   bson.M{"active": true},
			"$unset": bson.M{"triggered_at": ""},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "error re-arming PriceAlert with ID: %s", alertID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no PriceAlert with ID: %s", alertID)
	}
	return nil
}

func (db Database) AlertSetActive(ctx context.Context, alertID string, active bool) error {
	objID, err := primitive.ObjectIDFromHex(alertID)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "invalid alert ID: %s", alertID)
	}
	res, err := db.Collection(CollectionAlerts).UpdateOne(
		ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{"active": active}},
	)
	if err != nil {
		return errors.Wrapf(err, "error setting active=%t on PriceAlert with ID: %s", active, alertID)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNotFound, "no PriceAlert with ID: %s", alertID)
	}
	return nil
}
