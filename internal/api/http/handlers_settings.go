package apihttp

import (
	"net/http"
	"strings"

	"subtitlehub/internal/domain"
)

const startImageKey = "start_image"

type startImagePayload struct {
	Value string `json:"value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartImage reads or replaces the greeting image shown on first
// contact. PUT overwrites the seeded value.
func (s *Server) handleStartImage(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "settings not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		value, ok, err := s.settings.Setting(r.Context(), startImageKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", "start image not set")
			return
		}
		writeJSON(w, http.StatusOK, startImagePayload{Value: value})
	case http.MethodPut:
		if !s.authorizeAdmin(w, r) {
			return
		}
		var payload startImagePayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if strings.TrimSpace(payload.Value) == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "value is required")
			return
		}
		if err := s.settings.SetSetting(r.Context(), startImageKey, payload.Value); err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleSuggest resolves external title candidates for a query. An
// unconfigured provider answers with an empty list.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if s.metadata == nil || !s.metadata.Enabled() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": []domain.TitleMeta{}})
		return
	}
	suggestions, err := s.metadata.Suggest(r.Context(), query, r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "metadata_error", err.Error())
		return
	}
	if suggestions == nil {
		suggestions = []domain.TitleMeta{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}
