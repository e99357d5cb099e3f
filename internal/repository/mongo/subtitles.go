package mongo

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"subtitlehub/internal/domain"
)

type SubtitleRepository struct {
	collection *mongo.Collection
}

type subtitleDoc struct {
	ID        string `bson:"_id"`
	Title     string `bson:"title"`
	Year      *int   `bson:"year,omitempty"`
	Language  string `bson:"language"`
	Kind      string `bson:"kind"`
	FileID    string `bson:"fileId"`
	FileName  string `bson:"fileName,omitempty"`
	FileSize  int64  `bson:"fileSize,omitempty"`
	MessageID int64  `bson:"messageId,omitempty"`
	ChannelID int64  `bson:"channelId,omitempty"`
	Caption   string `bson:"caption,omitempty"`
	CreatedAt int64  `bson:"createdAt"`
	UpdatedAt int64  `bson:"updatedAt"`
}

func NewSubtitleRepository(client *mongo.Client, dbName string) *SubtitleRepository {
	return &SubtitleRepository{collection: client.Database(dbName).Collection("subtitles")}
}

// subtitleDocID builds the document key from the (title, year) identity pair.
// A record without a year gets a trailing separator so it never collides with
// a dated record whose title happens to end in digits.
func subtitleDocID(title string, year *int) string {
	if year == nil {
		return title + "|"
	}
	return title + "|" + strconv.Itoa(*year)
}

func (r *SubtitleRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "fileId", Value: 1}}},
		{Keys: bson.D{{Key: "messageId", Value: 1}, {Key: "channelId", Value: 1}}},
		{Keys: bson.D{{Key: "year", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Upsert writes the record in a single atomic round-trip. An existing
// (title, year) entry keeps its identity fields and gets fresh file, source
// and caption data; a new entry is created whole. Safe under re-delivery.
func (r *SubtitleRepository) Upsert(ctx context.Context, record domain.SubtitleRecord) (domain.SubtitleRecord, error) {
	now := time.Now().UTC().Unix()
	id := subtitleDocID(record.Title, record.Year)

	kind := record.Kind
	if kind == "" {
		kind = domain.MediaUnknown
	}

	setOnInsert := bson.M{
		"title":     record.Title,
		"language":  record.Language,
		"kind":      string(kind),
		"createdAt": now,
	}
	if record.Year != nil {
		setOnInsert["year"] = *record.Year
	}

	update := bson.M{
		"$set": bson.M{
			"fileId":    record.File.FileID,
			"fileName":  record.File.FileName,
			"fileSize":  record.File.FileSize,
			"messageId": record.Source.MessageID,
			"channelId": record.Source.ChannelID,
			"caption":   record.Caption,
			"updatedAt": now,
		},
		"$setOnInsert": setOnInsert,
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc subtitleDoc
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return domain.SubtitleRecord{}, err
	}
	return fromSubtitleDoc(doc), nil
}

// Search matches the query as a case-insensitive substring of the stored
// titles, newest year first. The regex is quoted, never interpreted.
func (r *SubtitleRepository) Search(ctx context.Context, query string, limit int) ([]domain.SubtitleRecord, error) {
	filter := bson.M{"title": bson.M{
		"$regex":   regexp.QuoteMeta(strings.TrimSpace(query)),
		"$options": "i",
	}}

	opts := options.Find().SetSort(bson.D{{Key: "year", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []subtitleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return fromSubtitleDocs(docs), nil
}

func (r *SubtitleRepository) GetByFileID(ctx context.Context, fileID string) (domain.SubtitleRecord, error) {
	var doc subtitleDoc
	if err := r.collection.FindOne(ctx, bson.M{"fileId": fileID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.SubtitleRecord{}, domain.ErrNotFound
		}
		return domain.SubtitleRecord{}, err
	}
	return fromSubtitleDoc(doc), nil
}

func (r *SubtitleRepository) GetBySourceMessage(ctx context.Context, messageID, channelID int64) (domain.SubtitleRecord, error) {
	var doc subtitleDoc
	filter := bson.M{"messageId": messageID, "channelId": channelID}
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.SubtitleRecord{}, domain.ErrNotFound
		}
		return domain.SubtitleRecord{}, err
	}
	return fromSubtitleDoc(doc), nil
}

func (r *SubtitleRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func toSubtitleDoc(record domain.SubtitleRecord) subtitleDoc {
	kind := record.Kind
	if kind == "" {
		kind = domain.MediaUnknown
	}
	return subtitleDoc{
		ID:        subtitleDocID(record.Title, record.Year),
		Title:     record.Title,
		Year:      record.Year,
		Language:  record.Language,
		Kind:      string(kind),
		FileID:    record.File.FileID,
		FileName:  record.File.FileName,
		FileSize:  record.File.FileSize,
		MessageID: record.Source.MessageID,
		ChannelID: record.Source.ChannelID,
		Caption:   record.Caption,
		CreatedAt: record.CreatedAt.Unix(),
		UpdatedAt: record.UpdatedAt.Unix(),
	}
}

func fromSubtitleDoc(doc subtitleDoc) domain.SubtitleRecord {
	return domain.SubtitleRecord{
		ID:       domain.SubtitleID(doc.ID),
		Title:    doc.Title,
		Year:     doc.Year,
		Language: doc.Language,
		Kind:     domain.MediaKind(doc.Kind),
		File: domain.FileRef{
			FileID:   doc.FileID,
			FileName: doc.FileName,
			FileSize: doc.FileSize,
		},
		Source: domain.SourceRef{
			MessageID: doc.MessageID,
			ChannelID: doc.ChannelID,
		},
		Caption:   doc.Caption,
		CreatedAt: timeFromUnix(doc.CreatedAt),
		UpdatedAt: timeFromUnix(doc.UpdatedAt),
	}
}

func fromSubtitleDocs(docs []subtitleDoc) []domain.SubtitleRecord {
	records := make([]domain.SubtitleRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromSubtitleDoc(doc))
	}
	return records
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}
