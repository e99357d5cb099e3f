package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"subtitlehub/internal/domain"
	"subtitlehub/internal/metrics"
)

var (
	ErrInvalidQuery = errors.New("query is required")
	ErrEmptyTitle   = errors.New("title is empty after normalization")
	ErrMissingFile  = errors.New("file id is required")
)

// Store is the catalog persistence port.
type Store interface {
	Upsert(ctx context.Context, record domain.SubtitleRecord) (domain.SubtitleRecord, error)
	Search(ctx context.Context, query string, limit int) ([]domain.SubtitleRecord, error)
	GetByFileID(ctx context.Context, fileID string) (domain.SubtitleRecord, error)
	GetBySourceMessage(ctx context.Context, messageID, channelID int64) (domain.SubtitleRecord, error)
	Count(ctx context.Context) (int64, error)
}

// StatSink receives best-effort global counter bumps.
type StatSink interface {
	IncrementStat(ctx context.Context, key string, delta int64) error
}

// IngestInput is one channel post offered to the catalog.
type IngestInput struct {
	RawTitle string
	Year     *int
	Language string
	Kind     domain.MediaKind
	File     domain.FileRef
	Source   domain.SourceRef
	Caption  string
}

type Config struct {
	SearchLimit     int
	FuzzyThreshold  int
	DefaultLanguage string
	CacheTTL        time.Duration
	CacheDisabled   bool
}

type Service struct {
	store     Store
	matcher   Matcher
	stats     StatSink
	logger    *slog.Logger
	limit     int
	threshold int
	language  string

	cacheDisabled bool
	cacheTTL      time.Duration
	redisCache    *RedisCacheBackend
	cacheMu       sync.Mutex
	cache         map[string]*cachedResults
	popular       map[string]*popularQuery
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMatcher(matcher Matcher) Option {
	return func(s *Service) { s.matcher = matcher }
}

func WithStats(stats StatSink) Option {
	return func(s *Service) { s.stats = stats }
}

func WithRedisCache(cache *RedisCacheBackend) Option {
	return func(s *Service) { s.redisCache = cache }
}

func NewService(store Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:         store,
		limit:         cfg.SearchLimit,
		threshold:     cfg.FuzzyThreshold,
		language:      cfg.DefaultLanguage,
		cacheDisabled: cfg.CacheDisabled,
		cacheTTL:      cfg.CacheTTL,
		cache:         make(map[string]*cachedResults),
		popular:       make(map[string]*popularQuery),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.matcher == nil {
		s.matcher = SubstringMatcher{Store: store}
	}
	if s.limit <= 0 {
		s.limit = 50
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	return s
}

// Ingest normalizes the offered title and upserts the record. Re-delivery of
// the same (title, year) refreshes the stored file and never creates a
// duplicate; the winner of a concurrent race is decided by storage.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (domain.SubtitleRecord, error) {
	if input.File.FileID == "" {
		return domain.SubtitleRecord{}, ErrMissingFile
	}
	title := Normalize(input.RawTitle)
	if title == "" {
		return domain.SubtitleRecord{}, ErrEmptyTitle
	}

	record := domain.SubtitleRecord{
		Title:    title,
		Year:     input.Year,
		Language: canonicalLanguage(input.Language, s.language),
		Kind:     input.Kind,
		File:     input.File,
		Source:   input.Source,
		Caption:  input.Caption,
	}
	if err := record.Validate(); err != nil {
		return domain.SubtitleRecord{}, err
	}

	stored, err := s.store.Upsert(ctx, record)
	if err != nil {
		return domain.SubtitleRecord{}, err
	}
	if !s.cacheDisabled {
		s.cacheInvalidateTitle(ctx, stored.Title)
	}

	metrics.IngestsTotal.Inc()
	s.bumpStat(ctx, "subtitles_ingested")
	s.logger.Info("subtitle ingested",
		slog.String("id", string(stored.ID)),
		slog.String("title", stored.Title),
		slog.String("fileId", stored.File.FileID),
	)
	return stored, nil
}

// Search serves a bounded result set for the query. Empty queries are
// rejected before any storage round-trip.
func (s *Service) Search(ctx context.Context, query string) ([]domain.SubtitleRecord, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrInvalidQuery
	}

	metrics.SearchesTotal.Inc()
	now := time.Now()
	key := searchCacheKey(q)

	if !s.cacheDisabled {
		if results, ok := s.cacheLookup(ctx, key, now); ok {
			s.markPopular(key, q, now)
			return results, nil
		}
	}

	results, err := s.matcher.Match(ctx, q, s.threshold, s.limit)
	if err != nil {
		return nil, err
	}
	if len(results) > s.limit {
		results = results[:s.limit]
	}

	if !s.cacheDisabled {
		s.cacheStore(ctx, key, results, now)
		s.markPopular(key, q, now)
	}
	return results, nil
}

// LookupFile resolves a stored file handle back to its catalog record.
func (s *Service) LookupFile(ctx context.Context, fileID string) (domain.SubtitleRecord, error) {
	return s.store.GetByFileID(ctx, fileID)
}

// LookupSource resolves a channel message back to its catalog record, used
// by the transport to detect edits of already-indexed posts.
func (s *Service) LookupSource(ctx context.Context, messageID, channelID int64) (domain.SubtitleRecord, error) {
	return s.store.GetBySourceMessage(ctx, messageID, channelID)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

func (s *Service) bumpStat(ctx context.Context, key string) {
	if s.stats == nil {
		return
	}
	if err := s.stats.IncrementStat(ctx, key, 1); err != nil {
		s.logger.Warn("stat increment failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// canonicalLanguage reduces a transport language tag to its base form
// ("en-US" -> "en"); unparseable or empty tags fall back to the configured
// default.
func canonicalLanguage(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return fallback
	}
	base, conf := tag.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}
