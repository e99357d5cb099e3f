package notify

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	EventRequestCreated    = "request_created"
	EventRequestTransition = "request_transition"
)

// RequestEvent is a simplified change stream event for the requests
// collection, fanned out to websocket subscribers.
type RequestEvent struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	UserID    int64  `json:"userId,omitempty"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status"`
}

// EventFromChange maps a raw change stream document onto a RequestEvent.
// Returns false for operations the feed does not carry.
func EventFromChange(operationType, requestID string, userID int64, title, status string) (RequestEvent, bool) {
	switch operationType {
	case "insert":
		return RequestEvent{
			Type:      EventRequestCreated,
			RequestID: requestID,
			UserID:    userID,
			Title:     title,
			Status:    status,
		}, true
	case "update":
		if status == "" {
			return RequestEvent{}, false
		}
		return RequestEvent{
			Type:      EventRequestTransition,
			RequestID: requestID,
			UserID:    userID,
			Title:     title,
			Status:    status,
		}, true
	default:
		return RequestEvent{}, false
	}
}

// NotifyFunc receives every request event the watcher decodes.
type NotifyFunc func(ctx context.Context, event RequestEvent)

// Watcher tails the requests collection change stream and pushes
// inserts and status transitions to the notify callback.
type Watcher struct {
	col    *mongo.Collection
	notify NotifyFunc
	logger *slog.Logger
}

func NewWatcher(col *mongo.Collection, notify NotifyFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{col: col, notify: notify, logger: logger}
}

// Run starts the change stream loop. Blocks until ctx is cancelled.
// Reconnects automatically on transient errors.
func (w *Watcher) Run(ctx context.Context) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "operationType", Value: "insert"}},
				bson.D{
					{Key: "operationType", Value: "update"},
					{Key: "updateDescription.updatedFields.status", Value: bson.D{{Key: "$exists", Value: true}}},
				},
			}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	for {
		if err := w.watch(ctx, pipeline, opts); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("change stream error, retrying in 5s", slog.String("error", err.Error()))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
		}
		// nil return means cursor closed by server, retry immediately
		if ctx.Err() != nil {
			return
		}
	}
}

func (w *Watcher) watch(ctx context.Context, pipeline mongo.Pipeline, opts *options.ChangeStreamOptions) error {
	cs, err := w.col.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cs.Close(ctx)

	for cs.Next(ctx) {
		var raw struct {
			OperationType string `bson:"operationType"`
			DocumentKey   struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
			FullDocument struct {
				UserID int64  `bson:"userId"`
				Title  string `bson:"title"`
				Status string `bson:"status"`
			} `bson:"fullDocument"`
		}
		if err := cs.Decode(&raw); err != nil {
			w.logger.Warn("change stream decode error", slog.String("error", err.Error()))
			continue
		}
		event, ok := EventFromChange(
			raw.OperationType,
			raw.DocumentKey.ID,
			raw.FullDocument.UserID,
			raw.FullDocument.Title,
			raw.FullDocument.Status,
		)
		if !ok {
			continue
		}
		w.notify(ctx, event)
	}
	return cs.Err()
}
