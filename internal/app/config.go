package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr           string
	MongoURI           string
	MongoDatabase      string
	LogLevel           string
	LogFormat          string
	SearchLimit        int
	FuzzyThreshold     int
	DefaultLanguage    string
	StartImage         string
	IndexChannelID     int64
	AdminIDs           []int64
	TMDBAPIKey         string
	TMDBBaseURL        string
	TMDBCacheTTLDays   int64
	RedisURL           string
	CacheTTLHours      int64
	CacheDisabled      bool
	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DB", "subtitlehub"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
		SearchLimit:      int(getEnvInt64("SEARCH_RESULTS_LIMIT", 50)),
		FuzzyThreshold:   int(getEnvInt64("SEARCH_FUZZY_THRESHOLD", 80)),
		DefaultLanguage:  getEnv("DEFAULT_LANGUAGE", "si"),
		StartImage:       getEnv("START_IMAGE", ""),
		IndexChannelID:   getEnvID("INDEX_CHANNEL_ID", 0),
		AdminIDs:         parseIDList(os.Getenv("ADMIN_IDS")),
		TMDBAPIKey:       getEnv("TMDB_API_KEY", ""),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", ""),
		TMDBCacheTTLDays: getEnvInt64("TMDB_CACHE_TTL_DAYS", 7),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheTTLHours:    getEnvInt64("SEARCH_CACHE_TTL_HOURS", 6),
		CacheDisabled:    getEnvBool("SEARCH_CACHE_DISABLED", false),

		CORSAllowedOrigins: parseList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvID parses an int64 identifier; unlike getEnvInt64 negative values are
// kept because channel identifiers are negative on the transport side.
func getEnvID(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}

func parseIDList(raw string) []int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
