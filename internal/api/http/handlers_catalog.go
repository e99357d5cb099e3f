package apihttp

import (
	"net/http"
	"strconv"
	"strings"

	"subtitlehub/internal/catalog"
	"subtitlehub/internal/domain"
)

type ingestPayload struct {
	Title    string           `json:"title"`
	Year     *int             `json:"year,omitempty"`
	Language string           `json:"language,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	File     domain.FileRef   `json:"file"`
	Source   domain.SourceRef `json:"source"`
	Caption  string           `json:"caption,omitempty"`
}

// handleSubtitles ingests a new catalog entry (POST) or resolves one by
// its source message identity (GET ?messageId=&channelId=).
func (s *Server) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload ingestPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if s.indexChannelID != 0 && payload.Source.ChannelID != s.indexChannelID {
			writeError(w, http.StatusForbidden, "forbidden", "source channel is not indexed")
			return
		}
		record, err := s.catalog.Ingest(r.Context(), catalog.IngestInput{
			RawTitle: payload.Title,
			Year:     payload.Year,
			Language: payload.Language,
			Kind:     domain.MediaKind(payload.Kind),
			File:     payload.File,
			Source:   payload.Source,
			Caption:  payload.Caption,
		})
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodGet:
		messageID, err1 := strconv.ParseInt(r.URL.Query().Get("messageId"), 10, 64)
		channelID, err2 := strconv.ParseInt(r.URL.Query().Get("channelId"), 10, 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "messageId and channelId are required")
			return
		}
		record, err := s.catalog.LookupSource(r.Context(), messageID, channelID)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	results, err := s.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	fileID := strings.TrimSpace(pathSuffix(r.URL.Path, "/catalog/files/"))
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "file id is required")
		return
	}
	record, err := s.catalog.LookupFile(r.Context(), fileID)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type statsResponse struct {
	Subtitles    int64 `json:"subtitles"`
	ActiveUsers  int64 `json:"activeUsers"`
	TotalUsers   int64 `json:"totalUsers"`
	Downloads    int64 `json:"downloads"`
	RequestsMade int64 `json:"requestsMade"`
	Ingested     int64 `json:"ingested"`
}

// handleStats aggregates the catalog size, user counts and the global
// counter ledger into one admin overview.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx := r.Context()

	var resp statsResponse
	var err error
	if resp.Subtitles, err = s.catalog.Count(ctx); err != nil {
		writeCatalogError(w, err)
		return
	}
	if s.users != nil {
		if resp.ActiveUsers, err = s.users.Count(ctx, true); err != nil {
			writeUserError(w, err)
			return
		}
		if resp.TotalUsers, err = s.users.Count(ctx, false); err != nil {
			writeUserError(w, err)
			return
		}
	}
	if s.stats != nil {
		if resp.Downloads, err = s.stats.Stat(ctx, "downloads"); err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		if resp.RequestsMade, err = s.stats.Stat(ctx, "requests_made"); err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		if resp.Ingested, err = s.stats.Stat(ctx, "subtitles_ingested"); err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
