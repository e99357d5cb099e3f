package apihttp

import (
	"net/http"
	"strings"

	"subtitlehub/internal/domain"
)

type createRequestPayload struct {
	UserID int64             `json:"userId"`
	Title  string            `json:"title"`
	Meta   *domain.TitleMeta `json:"meta,omitempty"`
}

type transitionPayload struct {
	Status          string `json:"status"`
	FulfilledFileID string `json:"fulfilledFileId,omitempty"`
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "request tracking not configured")
		return
	}
	switch r.Method {
	case http.MethodPost:
		var payload createRequestPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		created, err := s.requests.Create(r.Context(), payload.UserID, payload.Title, payload.Meta)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		s.handlePendingRequests(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "request tracking not configured")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	pending, err := s.requests.ListPending(r.Context())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if pending == nil {
		pending = []domain.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": pending,
		"count":    len(pending),
	})
}

func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "request tracking not configured")
		return
	}
	id := strings.TrimSpace(pathSuffix(r.URL.Path, "/requests/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "request not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		request, err := s.requests.Get(r.Context(), domain.RequestID(id))
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case http.MethodPatch:
		if !s.authorizeAdmin(w, r) {
			return
		}
		var payload transitionPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		updated, err := s.requests.Transition(r.Context(), domain.RequestID(id), domain.RequestStatus(payload.Status), payload.FulfilledFileID)
		if err != nil {
			writeRequestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
