package apihttp

import (
	"net/http"
	"strconv"
	"strings"

	"subtitlehub/internal/domain"
)

type touchPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	Language  string `json:"language,omitempty"`
}

type blockedPayload struct {
	Blocked bool `json:"blocked"`
}

type downloadPayload struct {
	UserID int64  `json:"userId"`
	FileID string `json:"fileId"`
}

// handleUsers registers a transport interaction: the user is created on
// first contact and refreshed on every later one.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "user directory not configured")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var payload touchPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	err := s.users.Touch(r.Context(), domain.User{
		ID:        payload.ID,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		Language:  payload.Language,
	})
	if err != nil {
		writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "user directory not configured")
		return
	}
	idStr := strings.TrimSpace(pathSuffix(r.URL.Path, "/users/"))
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid user id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.users.Get(r.Context(), userID)
		if err != nil {
			writeUserError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		if !s.authorizeAdmin(w, r) {
			return
		}
		var payload blockedPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		if err := s.users.MarkBlocked(r.Context(), userID, payload.Blocked); err != nil {
			writeUserError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleDownloads records a delivered file: the subtitle is resolved by
// its file handle and the user's download counter is bumped.
func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "user directory not configured")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var payload downloadPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	record, err := s.catalog.LookupFile(r.Context(), payload.FileID)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	if err := s.users.RecordDownload(r.Context(), payload.UserID); err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
