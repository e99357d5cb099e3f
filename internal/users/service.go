package users

import (
	"context"
	"errors"
	"log/slog"

	"subtitlehub/internal/domain"
	"subtitlehub/internal/metrics"
)

var ErrInvalidUserID = errors.New("user id is required")

// Store is the user directory persistence port.
type Store interface {
	Touch(ctx context.Context, user domain.User) error
	IncrementDownloads(ctx context.Context, userID int64) error
	Get(ctx context.Context, userID int64) (domain.User, error)
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

// StatSink receives best-effort global counter bumps.
type StatSink interface {
	IncrementStat(ctx context.Context, key string, delta int64) error
}

type Service struct {
	store  Store
	stats  StatSink
	logger *slog.Logger
}

type Option func(*Service)

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

// Touch registers an interaction: creates the user on first contact,
// refreshes profile and activity on every later one.
func (s *Service) Touch(ctx context.Context, user domain.User) error {
	if user.ID == 0 {
		return ErrInvalidUserID
	}
	return s.store.Touch(ctx, user)
}

// RecordDownload bumps the user and global download counters after the
// transport delivered a file.
func (s *Service) RecordDownload(ctx context.Context, userID int64) error {
	if userID == 0 {
		return ErrInvalidUserID
	}
	if err := s.store.IncrementDownloads(ctx, userID); err != nil {
		return err
	}
	metrics.DownloadsTotal.Inc()
	if s.stats != nil {
		if err := s.stats.IncrementStat(ctx, "downloads", 1); err != nil {
			s.logger.Warn("stat increment failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// MarkBlocked flags a user the transport can no longer reach. Nothing is
// ever deleted.
func (s *Service) MarkBlocked(ctx context.Context, userID int64, blocked bool) error {
	if userID == 0 {
		return ErrInvalidUserID
	}
	return s.store.SetBlocked(ctx, userID, blocked)
}

func (s *Service) Get(ctx context.Context, userID int64) (domain.User, error) {
	return s.store.Get(ctx, userID)
}

func (s *Service) Count(ctx context.Context, activeOnly bool) (int64, error) {
	return s.store.Count(ctx, activeOnly)
}
