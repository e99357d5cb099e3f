package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"subtitlehub/internal/catalog"
	"subtitlehub/internal/domain"
	"subtitlehub/internal/notify"
)

type CatalogService interface {
	Ingest(ctx context.Context, input catalog.IngestInput) (domain.SubtitleRecord, error)
	Search(ctx context.Context, query string) ([]domain.SubtitleRecord, error)
	LookupFile(ctx context.Context, fileID string) (domain.SubtitleRecord, error)
	LookupSource(ctx context.Context, messageID, channelID int64) (domain.SubtitleRecord, error)
	Count(ctx context.Context) (int64, error)
}

type RequestService interface {
	Create(ctx context.Context, userID int64, title string, meta *domain.TitleMeta) (domain.Request, error)
	Transition(ctx context.Context, id domain.RequestID, status domain.RequestStatus, fulfilledFileID string) (domain.Request, error)
	ListPending(ctx context.Context) ([]domain.Request, error)
	Get(ctx context.Context, id domain.RequestID) (domain.Request, error)
}

type UserService interface {
	Touch(ctx context.Context, user domain.User) error
	RecordDownload(ctx context.Context, userID int64) error
	MarkBlocked(ctx context.Context, userID int64, blocked bool) error
	Get(ctx context.Context, userID int64) (domain.User, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

type SettingsStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

type StatReader interface {
	Stat(ctx context.Context, key string) (int64, error)
}

type MetadataProvider interface {
	Enabled() bool
	Suggest(ctx context.Context, query, lang string) ([]domain.TitleMeta, error)
}

type Server struct {
	catalog        CatalogService
	requests       RequestService
	users          UserService
	settings       SettingsStore
	stats          StatReader
	metadata       MetadataProvider
	allowedOrigins []string
	adminIDs       []int64
	indexChannelID int64
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithRequests(svc RequestService) ServerOption {
	return func(s *Server) { s.requests = svc }
}

func WithUsers(svc UserService) ServerOption {
	return func(s *Server) { s.users = svc }
}

func WithSettings(store SettingsStore) ServerOption {
	return func(s *Server) { s.settings = store }
}

func WithStats(reader StatReader) ServerOption {
	return func(s *Server) { s.stats = reader }
}

func WithMetadata(provider MetadataProvider) ServerOption {
	return func(s *Server) { s.metadata = provider }
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithAdminIDs restricts moderation endpoints (request transitions, user
// blocking, start-image writes) to the listed caller ids, matched against
// the X-Admin-ID header. Empty means no restriction (development mode).
func WithAdminIDs(ids []int64) ServerOption {
	return func(s *Server) { s.adminIDs = ids }
}

// WithIndexChannel pins ingestion to one source channel; posts from any
// other channel are refused. Zero disables the check.
func WithIndexChannel(channelID int64) ServerOption {
	return func(s *Server) { s.indexChannelID = channelID }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(catalogSvc CatalogService, opts ...ServerOption) *Server {
	s := &Server{catalog: catalogSvc}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/catalog/subtitles", s.handleSubtitles)
	mux.HandleFunc("/catalog/search", s.handleSearch)
	mux.HandleFunc("/catalog/files/", s.handleFileByID)
	mux.HandleFunc("/catalog/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	mux.HandleFunc("/requests/pending", s.handlePendingRequests)
	mux.HandleFunc("/requests/", s.handleRequestByID)
	mux.HandleFunc("/downloads", s.handleDownloads)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/users/", s.handleUserByID)
	mux.HandleFunc("/settings/start-image", s.handleStartImage)
	mux.HandleFunc("/metadata/suggest", s.handleSuggest)
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "subtitlehub",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// BroadcastRequestEvent fans a request lifecycle event out to all
// connected websocket clients.
func (s *Server) BroadcastRequestEvent(event notify.RequestEvent) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(event.Type, event)
	}
}

// WSClientCount reports connected websocket clients for the gauge refresh.
func (s *Server) WSClientCount() int {
	if s.wsHub == nil {
		return 0
	}
	return s.wsHub.clientCount()
}

// Close shuts down the websocket hub, disconnecting all clients.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
