package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"subtitlehub/internal/domain"
)

type RequestRepository struct {
	collection *mongo.Collection
}

type titleMetaDoc struct {
	TMDBID    int     `bson:"tmdbId,omitempty"`
	Title     string  `bson:"title"`
	Year      int     `bson:"year,omitempty"`
	Kind      string  `bson:"kind,omitempty"`
	Overview  string  `bson:"overview,omitempty"`
	PosterURL string  `bson:"posterUrl,omitempty"`
	Rating    float64 `bson:"rating,omitempty"`
}

type requestDoc struct {
	ID              string        `bson:"_id"`
	UserID          int64         `bson:"userId"`
	Title           string        `bson:"title"`
	Meta            *titleMetaDoc `bson:"meta,omitempty"`
	Status          string        `bson:"status"`
	FulfilledFileID string        `bson:"fulfilledFileId,omitempty"`
	CreatedAt       int64         `bson:"createdAt"`
	UpdatedAt       int64         `bson:"updatedAt"`
}

func NewRequestRepository(client *mongo.Client, dbName string) *RequestRepository {
	return &RequestRepository{collection: client.Database(dbName).Collection("requests")}
}

// Collection exposes the underlying collection for the change-stream watcher.
func (r *RequestRepository) Collection() *mongo.Collection {
	return r.collection
}

func (r *RequestRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Insert stores a new request and returns it with the generated id and
// timestamps filled in.
func (r *RequestRepository) Insert(ctx context.Context, request domain.Request) (domain.Request, error) {
	now := time.Now().UTC()
	request.ID = domain.RequestID(primitive.NewObjectID().Hex())
	request.CreatedAt = now
	request.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, toRequestDoc(request)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Request{}, domain.ErrAlreadyExists
		}
		return domain.Request{}, err
	}
	return request, nil
}

func (r *RequestRepository) Get(ctx context.Context, id domain.RequestID) (domain.Request, error) {
	var doc requestDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, err
	}
	return fromRequestDoc(doc), nil
}

// UpdateStatus moves a request from the expected current status to the new
// one in a single conditional write. The status filter closes the window
// between reading the request and writing the transition: if another writer
// changed the status in between, the filter matches nothing and ErrConflict
// is returned instead of overwriting.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.RequestStatus, fulfilledFileID string) error {
	set := bson.M{
		"status":    string(to),
		"updatedAt": time.Now().UTC().Unix(),
	}
	update := bson.M{"$set": set}
	if fulfilledFileID != "" {
		set["fulfilledFileId"] = fulfilledFileID
	} else {
		update["$unset"] = bson.M{"fulfilledFileId": ""}
	}
	filter := bson.M{"_id": string(id), "status": string(from)}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// ListPending returns open requests oldest first, the review order.
func (r *RequestRepository) ListPending(ctx context.Context) ([]domain.Request, error) {
	return r.listByStatus(ctx, domain.RequestPending)
}

func (r *RequestRepository) listByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"status": string(status)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	requests := make([]domain.Request, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, fromRequestDoc(doc))
	}
	return requests, nil
}

func (r *RequestRepository) CountByStatus(ctx context.Context, status domain.RequestStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"status": string(status)})
}

func toRequestDoc(request domain.Request) requestDoc {
	doc := requestDoc{
		ID:              string(request.ID),
		UserID:          request.UserID,
		Title:           request.Title,
		Status:          string(request.Status),
		FulfilledFileID: request.FulfilledFileID,
		CreatedAt:       request.CreatedAt.Unix(),
		UpdatedAt:       request.UpdatedAt.Unix(),
	}
	if request.Meta != nil {
		doc.Meta = &titleMetaDoc{
			TMDBID:    request.Meta.TMDBID,
			Title:     request.Meta.Title,
			Year:      request.Meta.Year,
			Kind:      string(request.Meta.Kind),
			Overview:  request.Meta.Overview,
			PosterURL: request.Meta.PosterURL,
			Rating:    request.Meta.Rating,
		}
	}
	return doc
}

func fromRequestDoc(doc requestDoc) domain.Request {
	request := domain.Request{
		ID:              domain.RequestID(doc.ID),
		UserID:          doc.UserID,
		Title:           doc.Title,
		Status:          domain.RequestStatus(doc.Status),
		FulfilledFileID: doc.FulfilledFileID,
		CreatedAt:       timeFromUnix(doc.CreatedAt),
		UpdatedAt:       timeFromUnix(doc.UpdatedAt),
	}
	if doc.Meta != nil {
		request.Meta = &domain.TitleMeta{
			TMDBID:    doc.Meta.TMDBID,
			Title:     doc.Meta.Title,
			Year:      doc.Meta.Year,
			Kind:      domain.MediaKind(doc.Meta.Kind),
			Overview:  doc.Meta.Overview,
			PosterURL: doc.Meta.PosterURL,
			Rating:    doc.Meta.Rating,
		}
	}
	return request
}
