package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"subtitlehub/internal/domain"
	"subtitlehub/internal/metrics"
)

const (
	defaultCacheTTL            = 6 * time.Hour
	defaultWarmInterval        = 5 * time.Minute
	defaultWarmTopQueries      = 8
	defaultCacheMaxEntries     = 256
	defaultPopularMaxEntries   = 128
	maxConcurrentWarmRefreshes = 3
)

type cachedResults struct {
	results   []domain.SubtitleRecord
	updatedAt time.Time
	expiresAt time.Time
}

type popularQuery struct {
	query    string
	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

func searchCacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (s *Service) cacheLookup(ctx context.Context, key string, now time.Time) ([]domain.SubtitleRecord, bool) {
	// Redis first, so replicas share warm results.
	if s.redisCache != nil {
		results, found, err := s.redisCache.Get(ctx, key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			s.cacheStoreMemoryOnly(key, results, now)
			return results, true
		}
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if now.After(entry.expiresAt) {
		metrics.CacheMissesTotal.Inc()
		delete(s.cache, key)
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return cloneRecords(entry.results), true
}

func (s *Service) cacheStore(ctx context.Context, key string, results []domain.SubtitleRecord, now time.Time) {
	if s.redisCache != nil {
		_ = s.redisCache.Set(ctx, key, results, s.cacheTTL)
	}
	s.cacheStoreMemoryOnly(key, results, now)
}

func (s *Service) cacheStoreMemoryOnly(key string, results []domain.SubtitleRecord, now time.Time) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedResults{
		results:   cloneRecords(results),
		updatedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}
	s.trimCacheLocked()
}

// cacheInvalidateTitle drops cached result sets the ingested title could
// appear in, so a refreshed file pointer is served immediately instead of
// after the TTL. A cached query matches when it is a substring of the
// title; popular-query keys are included so Redis entries this replica no
// longer holds in memory are dropped too.
func (s *Service) cacheInvalidateTitle(ctx context.Context, title string) {
	lowered := strings.ToLower(title)

	s.cacheMu.Lock()
	stale := make(map[string]struct{})
	for key := range s.cache {
		if strings.Contains(lowered, key) {
			delete(s.cache, key)
			stale[key] = struct{}{}
		}
	}
	for key := range s.popular {
		if strings.Contains(lowered, key) {
			stale[key] = struct{}{}
		}
	}
	s.cacheMu.Unlock()

	if s.redisCache == nil {
		return
	}
	for key := range stale {
		_ = s.redisCache.Delete(ctx, key)
	}
}

func (s *Service) markPopular(key, query string, now time.Time) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pop, ok := s.popular[key]
	if !ok {
		s.popular[key] = &popularQuery{query: query, hits: 1, lastSeen: now}
	} else {
		pop.hits++
		pop.lastSeen = now
	}

	if len(s.popular) <= defaultPopularMaxEntries {
		return
	}

	// Drop least popular + oldest entries.
	type pair struct {
		key   string
		value *popularQuery
	}
	items := make([]pair, 0, len(s.popular))
	for popKey, value := range s.popular {
		items = append(items, pair{key: popKey, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		left, right := items[i].value, items[j].value
		if left.hits != right.hits {
			return left.hits < right.hits
		}
		return left.lastSeen.Before(right.lastSeen)
	})
	for i := 0; i < len(items)-defaultPopularMaxEntries; i++ {
		delete(s.popular, items[i].key)
	}
}

func (s *Service) trimCacheLocked() {
	if len(s.cache) <= defaultCacheMaxEntries {
		return
	}
	type pair struct {
		key   string
		entry *cachedResults
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-defaultCacheMaxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

// RunWarmer periodically re-runs the most popular queries whose cache entry
// has expired. Blocks until ctx is cancelled.
func (s *Service) RunWarmer(ctx context.Context) {
	if s.cacheDisabled {
		return
	}
	ticker := time.NewTicker(defaultWarmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

func (s *Service) runWarmCycle(ctx context.Context) {
	now := time.Now()
	queries := s.collectWarmQueries(now)
	if len(queries) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup
	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			results, err := s.matcher.Match(refreshCtx, query, s.threshold, s.limit)
			if err != nil {
				return
			}
			s.cacheStore(refreshCtx, searchCacheKey(query), results, time.Now())
		}(query)
	}
	wg.Wait()
}

func (s *Service) collectWarmQueries(now time.Time) []string {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if len(s.popular) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.popular))
	for key := range s.popular {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left, right := s.popular[keys[i]], s.popular[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := defaultWarmTopQueries
	if len(keys) < limit {
		limit = len(keys)
	}

	queries := make([]string, 0, limit)
	for _, key := range keys[:limit] {
		pop := s.popular[key]
		if !pop.lastWarm.IsZero() && now.Sub(pop.lastWarm) < defaultWarmInterval/2 {
			continue
		}
		if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
			continue
		}
		pop.lastWarm = now
		queries = append(queries, pop.query)
	}
	return queries
}

func cloneRecords(records []domain.SubtitleRecord) []domain.SubtitleRecord {
	if records == nil {
		return nil
	}
	cloned := make([]domain.SubtitleRecord, len(records))
	for i, record := range records {
		copied := record
		if record.Year != nil {
			year := *record.Year
			copied.Year = &year
		}
		cloned[i] = copied
	}
	return cloned
}
