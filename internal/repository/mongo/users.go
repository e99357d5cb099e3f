package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"subtitlehub/internal/domain"
)

type UserRepository struct {
	collection *mongo.Collection
}

type userDoc struct {
	ID            int64  `bson:"_id"`
	Username      string `bson:"username,omitempty"`
	FirstName     string `bson:"firstName,omitempty"`
	Language      string `bson:"language,omitempty"`
	IsActive      bool   `bson:"isActive"`
	BlockedBot    bool   `bson:"blockedBot"`
	DownloadCount int64  `bson:"downloadCount"`
	RequestCount  int64  `bson:"requestCount"`
	JoinedAt      int64  `bson:"joinedAt"`
	LastActiveAt  int64  `bson:"lastActiveAt"`
}

func NewUserRepository(client *mongo.Client, dbName string) *UserRepository {
	return &UserRepository{collection: client.Database(dbName).Collection("users")}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "blockedBot", Value: 1}}},
		{Keys: bson.D{{Key: "lastActiveAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Touch upserts the user on any interaction: first contact creates the
// document, later contacts refresh profile fields and activity. Counters are
// only seeded on insert so they survive every touch.
func (r *UserRepository) Touch(ctx context.Context, user domain.User) error {
	now := time.Now().UTC().Unix()

	set := bson.M{
		"isActive":     true,
		"blockedBot":   false,
		"lastActiveAt": now,
	}
	if user.Username != "" {
		set["username"] = user.Username
	}
	if user.FirstName != "" {
		set["firstName"] = user.FirstName
	}
	if user.Language != "" {
		set["language"] = user.Language
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"joinedAt":      now,
			"downloadCount": int64(0),
			"requestCount":  int64(0),
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *UserRepository) IncrementDownloads(ctx context.Context, userID int64) error {
	return r.incrementCounter(ctx, userID, "downloadCount")
}

func (r *UserRepository) IncrementRequests(ctx context.Context, userID int64) error {
	return r.incrementCounter(ctx, userID, "requestCount")
}

func (r *UserRepository) incrementCounter(ctx context.Context, userID int64, field string) error {
	now := time.Now().UTC().Unix()
	update := bson.M{
		"$inc": bson.M{field: int64(1)},
		"$set": bson.M{"lastActiveAt": now},
		"$setOnInsert": bson.M{
			"joinedAt":   now,
			"isActive":   true,
			"blockedBot": false,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update().SetUpsert(true))
	return err
}

// SetBlocked marks a user as unreachable (or reachable again) without
// deleting anything.
func (r *UserRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	update := bson.M{"$set": bson.M{
		"blockedBot": blocked,
		"isActive":   !blocked,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, userID int64) (domain.User, error) {
	var doc userDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return fromUserDoc(doc), nil
}

// Count returns the user total; with activeOnly set, only users that are
// active and have not blocked the bot are counted.
func (r *UserRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	filter := bson.M{}
	if activeOnly {
		filter = bson.M{"isActive": true, "blockedBot": false}
	}
	return r.collection.CountDocuments(ctx, filter)
}

func fromUserDoc(doc userDoc) domain.User {
	return domain.User{
		ID:            doc.ID,
		Username:      doc.Username,
		FirstName:     doc.FirstName,
		Language:      doc.Language,
		IsActive:      doc.IsActive,
		BlockedBot:    doc.BlockedBot,
		DownloadCount: doc.DownloadCount,
		RequestCount:  doc.RequestCount,
		JoinedAt:      timeFromUnix(doc.JoinedAt),
		LastActiveAt:  timeFromUnix(doc.LastActiveAt),
	}
}
