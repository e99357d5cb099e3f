package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"subtitlehub/internal/domain"
	"subtitlehub/internal/metrics"
)

// transitionRetryLimit bounds the re-read loop when a conditional status
// write loses to a concurrent transition.
const transitionRetryLimit = 3

var (
	ErrEmptyTitle           = errors.New("request title is required")
	ErrUnknownStatus        = errors.New("unknown request status")
	ErrIllegalTransition    = errors.New("illegal status transition")
	ErrMissingFulfilledFile = errors.New("fulfilled status requires a file id")
)

// Store is the request persistence port.
type Store interface {
	Insert(ctx context.Context, request domain.Request) (domain.Request, error)
	Get(ctx context.Context, id domain.RequestID) (domain.Request, error)
	UpdateStatus(ctx context.Context, id domain.RequestID, from, to domain.RequestStatus, fulfilledFileID string) error
	ListPending(ctx context.Context) ([]domain.Request, error)
}

// UserCounter bumps the per-user request counter.
type UserCounter interface {
	IncrementRequests(ctx context.Context, userID int64) error
}

// StatSink receives best-effort global counter bumps.
type StatSink interface {
	IncrementStat(ctx context.Context, key string, delta int64) error
}

type Service struct {
	store  Store
	users  UserCounter
	stats  StatSink
	logger *slog.Logger
}

type Option func(*Service)

func WithUsers(users UserCounter) Option {
	return func(s *Service) { s.users = users }
}

func WithStats(stats StatSink) Option {
	return func(s *Service) { s.stats = stats }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create opens a pending request and bumps the owner's request counter.
// Repeat requests for the same title are allowed on purpose.
func (s *Service) Create(ctx context.Context, userID int64, title string, meta *domain.TitleMeta) (domain.Request, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Request{}, ErrEmptyTitle
	}

	stored, err := s.store.Insert(ctx, domain.Request{
		UserID: userID,
		Title:  title,
		Meta:   meta,
		Status: domain.RequestPending,
	})
	if err != nil {
		return domain.Request{}, err
	}

	if s.users != nil {
		if err := s.users.IncrementRequests(ctx, userID); err != nil {
			s.logger.Warn("request counter bump failed",
				slog.Int64("userId", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.stats != nil {
		if err := s.stats.IncrementStat(ctx, "requests_made", 1); err != nil {
			s.logger.Warn("stat increment failed", slog.String("error", err.Error()))
		}
	}

	metrics.RequestsCreatedTotal.Inc()
	s.logger.Info("request created",
		slog.String("id", string(stored.ID)),
		slog.Int64("userId", userID),
		slog.String("title", title),
	)
	return stored, nil
}

// Transition moves a request along the status machine. Only the edges
// pending->approved, pending->rejected and approved->fulfilled are legal;
// fulfilling records the delivered file handle. The legal-edge check is
// enforced against the status the store actually holds: the write is
// conditional on the status read here, and a lost race re-reads and
// re-validates instead of overwriting what the winner wrote.
func (s *Service) Transition(ctx context.Context, id domain.RequestID, status domain.RequestStatus, fulfilledFileID string) (domain.Request, error) {
	if !status.Valid() {
		return domain.Request{}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	if status == domain.RequestFulfilled && strings.TrimSpace(fulfilledFileID) == "" {
		return domain.Request{}, ErrMissingFulfilledFile
	}
	if status != domain.RequestFulfilled {
		fulfilledFileID = ""
	}

	for attempt := 0; attempt < transitionRetryLimit; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return domain.Request{}, err
		}
		if !current.Status.CanTransitionTo(status) {
			return domain.Request{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, status)
		}

		err = s.store.UpdateStatus(ctx, id, current.Status, status, fulfilledFileID)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.Request{}, err
		}

		metrics.RequestTransitionsTotal.WithLabelValues(string(status)).Inc()
		s.logger.Info("request transitioned",
			slog.String("id", string(id)),
			slog.String("from", string(current.Status)),
			slog.String("to", string(status)),
		)
		return s.store.Get(ctx, id)
	}
	return domain.Request{}, domain.ErrConflict
}

// ListPending returns the review worklist, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]domain.Request, error) {
	return s.store.ListPending(ctx)
}

func (s *Service) Get(ctx context.Context, id domain.RequestID) (domain.Request, error) {
	return s.store.Get(ctx, id)
}
