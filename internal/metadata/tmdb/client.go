package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"subtitlehub/internal/domain"
	"subtitlehub/internal/metrics"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w300"
	defaultLanguage = "en-US"
	redisKeyPrefix  = "subhub:tmdb:"
)

// Client talks to the TMDB multi-search endpoint and maps hits onto
// title metadata for request enrichment. A client without an API key is
// valid and answers every lookup with no suggestions.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type searchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	MediaType    string  `json:"media_type,omitempty"`
}

func (r searchResult) displayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r searchResult) year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, c := range date[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}

func (r searchResult) posterURL() string {
	if r.PosterPath == "" {
		return ""
	}
	return posterBaseURL + r.PosterPath
}

func (r searchResult) kind() domain.MediaKind {
	switch r.MediaType {
	case "movie":
		return domain.MediaMovie
	case "tv":
		return domain.MediaSeries
	}
	return domain.MediaUnknown
}

func (r searchResult) toTitleMeta() domain.TitleMeta {
	return domain.TitleMeta{
		TMDBID:    r.ID,
		Title:     r.displayTitle(),
		Year:      r.year(),
		Kind:      r.kind(),
		Overview:  r.Overview,
		PosterURL: r.posterURL(),
		Rating:    r.VoteAverage,
	}
}

type multiSearchResponse struct {
	Results []searchResult `json:"results"`
}

// Suggest looks the query up against movies and TV shows, cached hits
// first. A disabled client returns an empty slice, not an error.
func (c *Client) Suggest(ctx context.Context, query, lang string) ([]domain.TitleMeta, error) {
	if !c.Enabled() {
		metrics.TMDBLookupsTotal.WithLabelValues("disabled").Inc()
		return nil, nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if lang == "" {
		lang = defaultLanguage
	}

	cacheKey := redisKeyPrefix + fmt.Sprintf("multi:%s:%s", strings.ToLower(query), lang)
	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached []domain.TitleMeta
			if json.Unmarshal(data, &cached) == nil {
				metrics.TMDBLookupsTotal.WithLabelValues("cache_hit").Inc()
				return cached, nil
			}
		}
	}

	results, err := c.searchMulti(ctx, query, lang)
	if err != nil {
		metrics.TMDBLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	suggestions := make([]domain.TitleMeta, 0, len(results))
	for _, r := range results {
		if r.MediaType != "movie" && r.MediaType != "tv" {
			continue
		}
		suggestions = append(suggestions, r.toTitleMeta())
	}

	if c.redis != nil {
		if data, err := json.Marshal(suggestions); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}

	metrics.TMDBLookupsTotal.WithLabelValues("ok").Inc()
	return suggestions, nil
}

func (c *Client) searchMulti(ctx context.Context, query, lang string) ([]searchResult, error) {
	params := url.Values{
		"api_key":  {c.apiKey},
		"query":    {query},
		"language": {lang},
	}

	reqURL := c.baseURL + "/search/multi?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, err
	}

	var response multiSearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}
