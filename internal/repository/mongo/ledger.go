package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LedgerRepository holds the stats counters and the operator settings, both
// keyed by name. Counter bumps are $inc upserts so concurrent writers never
// lose increments.
type LedgerRepository struct {
	stats    *mongo.Collection
	settings *mongo.Collection
}

type statDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

type settingDoc struct {
	ID        string `bson:"_id"`
	Value     string `bson:"value"`
	UpdatedAt int64  `bson:"updatedAt"`
}

func NewLedgerRepository(client *mongo.Client, dbName string) *LedgerRepository {
	db := client.Database(dbName)
	return &LedgerRepository{
		stats:    db.Collection("stats"),
		settings: db.Collection("settings"),
	}
}

func (r *LedgerRepository) IncrementStat(ctx context.Context, key string, delta int64) error {
	update := bson.M{"$inc": bson.M{"value": delta}}
	_, err := r.stats.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}

// Stat returns the counter value, zero when the counter has never been
// incremented.
func (r *LedgerRepository) Stat(ctx context.Context, key string) (int64, error) {
	var doc statDoc
	if err := r.stats.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return doc.Value, nil
}

// Setting returns the stored value and whether the key exists.
func (r *LedgerRepository) Setting(ctx context.Context, key string) (string, bool, error) {
	var doc settingDoc
	if err := r.settings.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, err
	}
	return doc.Value, true, nil
}

func (r *LedgerRepository) SetSetting(ctx context.Context, key, value string) error {
	update := bson.M{"$set": bson.M{
		"value":     value,
		"updatedAt": time.Now().UTC().Unix(),
	}}
	_, err := r.settings.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}

// SeedSetting creates the key iff it is absent. An operator-modified value
// is never overwritten, no matter how often the service restarts.
func (r *LedgerRepository) SeedSetting(ctx context.Context, key, value string) error {
	update := bson.M{"$setOnInsert": bson.M{
		"value":     value,
		"updatedAt": time.Now().UTC().Unix(),
	}}
	_, err := r.settings.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}
