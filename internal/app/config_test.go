package app

import (
	"os"
	"testing"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// Clear all env vars that LoadConfig reads so we get pure defaults.
	envVars := []string{
		"HTTP_ADDR", "MONGO_URI", "MONGO_DB",
		"LOG_LEVEL", "LOG_FORMAT",
		"SEARCH_RESULTS_LIMIT", "SEARCH_FUZZY_THRESHOLD",
		"DEFAULT_LANGUAGE", "START_IMAGE", "INDEX_CHANNEL_ID", "ADMIN_IDS",
		"TMDB_API_KEY", "TMDB_BASE_URL", "TMDB_CACHE_TTL_DAYS",
		"REDIS_URL", "SEARCH_CACHE_TTL_HOURS", "SEARCH_CACHE_DISABLED",
	}
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8080"},
		{"MongoURI", cfg.MongoURI, "mongodb://localhost:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "subtitlehub"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"SearchLimit", cfg.SearchLimit, 50},
		{"FuzzyThreshold", cfg.FuzzyThreshold, 80},
		{"DefaultLanguage", cfg.DefaultLanguage, "si"},
		{"StartImage", cfg.StartImage, ""},
		{"IndexChannelID", cfg.IndexChannelID, int64(0)},
		{"TMDBAPIKey", cfg.TMDBAPIKey, ""},
		{"TMDBCacheTTLDays", cfg.TMDBCacheTTLDays, int64(7)},
		{"RedisURL", cfg.RedisURL, ""},
		{"CacheTTLHours", cfg.CacheTTLHours, int64(6)},
		{"CacheDisabled", cfg.CacheDisabled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if len(cfg.AdminIDs) != 0 {
		t.Errorf("AdminIDs: got %v, want nil/empty", cfg.AdminIDs)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	setEnvs(t, map[string]string{
		"HTTP_ADDR":              ":9090",
		"MONGO_URI":              "mongodb://remote:27017",
		"MONGO_DB":               "mydb",
		"LOG_LEVEL":              "DEBUG",
		"LOG_FORMAT":             "JSON",
		"SEARCH_RESULTS_LIMIT":   "25",
		"SEARCH_FUZZY_THRESHOLD": "70",
		"DEFAULT_LANGUAGE":       "en",
		"START_IMAGE":            "file-start-123",
		"INDEX_CHANNEL_ID":       "-1001234567890",
		"ADMIN_IDS":              "100, 200,300",
		"TMDB_API_KEY":           "secret",
		"TMDB_CACHE_TTL_DAYS":    "14",
		"REDIS_URL":              "redis://localhost:6379/0",
		"SEARCH_CACHE_TTL_HOURS": "12",
		"SEARCH_CACHE_DISABLED":  "true",
	})

	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":9090"},
		{"MongoURI", cfg.MongoURI, "mongodb://remote:27017"},
		{"MongoDatabase", cfg.MongoDatabase, "mydb"},
		{"LogLevel", cfg.LogLevel, "debug"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"SearchLimit", cfg.SearchLimit, 25},
		{"FuzzyThreshold", cfg.FuzzyThreshold, 70},
		{"DefaultLanguage", cfg.DefaultLanguage, "en"},
		{"StartImage", cfg.StartImage, "file-start-123"},
		{"IndexChannelID", cfg.IndexChannelID, int64(-1001234567890)},
		{"TMDBAPIKey", cfg.TMDBAPIKey, "secret"},
		{"TMDBCacheTTLDays", cfg.TMDBCacheTTLDays, int64(14)},
		{"RedisURL", cfg.RedisURL, "redis://localhost:6379/0"},
		{"CacheTTLHours", cfg.CacheTTLHours, int64(12)},
		{"CacheDisabled", cfg.CacheDisabled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	wantIDs := []int64{100, 200, 300}
	if len(cfg.AdminIDs) != len(wantIDs) {
		t.Fatalf("AdminIDs: got %d entries, want %d", len(cfg.AdminIDs), len(wantIDs))
	}
	for i, got := range cfg.AdminIDs {
		if got != wantIDs[i] {
			t.Errorf("AdminIDs[%d]: got %d, want %d", i, got, wantIDs[i])
		}
	}
}

func TestGetEnvInt64InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name     string
		envVal   string
		fallback int64
		want     int64
	}{
		{"empty string", "", 42, 42},
		{"not a number", "abc", 42, 42},
		{"negative number", "-5", 42, 42},
		{"zero", "0", 42, 0},
		{"valid positive", "100", 42, 100},
		{"whitespace around number", "  50  ", 42, 50},
		{"float", "3.14", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT_VAR", tt.envVal)
			got := getEnvInt64("TEST_INT_VAR", tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvInt64(%q, %d) = %d, want %d", tt.envVal, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvIDKeepsNegative(t *testing.T) {
	t.Setenv("TEST_ID_VAR", "-1009")
	if got := getEnvID("TEST_ID_VAR", 0); got != -1009 {
		t.Errorf("getEnvID = %d, want -1009", got)
	}
	t.Setenv("TEST_ID_VAR", "junk")
	if got := getEnvID("TEST_ID_VAR", 7); got != 7 {
		t.Errorf("getEnvID fallback = %d, want 7", got)
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int64
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "42", []int64{42}},
		{"multiple values", "1,2,3", []int64{1, 2, 3}},
		{"values with spaces", " 1 , 2 , 3 ", []int64{1, 2, 3}},
		{"trailing comma", "1,2,", []int64{1, 2}},
		{"junk entries skipped", "1,abc,2", []int64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIDList(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseIDList(%q) returned %d elements, want %d", tt.input, len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("parseIDList(%q)[%d] = %d, want %d", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		envVal string
		want   bool
	}{
		{"true", true},
		{"1", true},
		{"YES", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL_VAR", tt.envVal)
		if got := getEnvBool("TEST_BOOL_VAR", false); got != tt.want {
			t.Errorf("getEnvBool(%q) = %v, want %v", tt.envVal, got, tt.want)
		}
	}
}
