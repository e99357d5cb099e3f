package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"subtitlehub/internal/catalog"
	"subtitlehub/internal/domain"
	"subtitlehub/internal/requests"
	"subtitlehub/internal/users"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_request", "search query is required")
	case errors.Is(err, catalog.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "invalid_request", "title is empty after normalization")
	case errors.Is(err, catalog.ErrMissingFile):
		writeError(w, http.StatusBadRequest, "invalid_request", "file id is required")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "subtitle not found")
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}

func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, requests.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "invalid_request", "request title is required")
	case errors.Is(err, requests.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown request status")
	case errors.Is(err, requests.ErrMissingFulfilledFile):
		writeError(w, http.StatusBadRequest, "invalid_request", "fulfilled status requires a file id")
	case errors.Is(err, requests.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "request was modified concurrently, retry")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "request not found")
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "invalid_request", "user id is required")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// authorizeAdmin checks the X-Admin-ID header against the configured admin
// allowlist and writes a 403 envelope on failure. An empty allowlist admits
// every caller. Returns true when the request may proceed.
func (s *Server) authorizeAdmin(w http.ResponseWriter, r *http.Request) bool {
	if len(s.adminIDs) == 0 {
		return true
	}
	callerID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get("X-Admin-ID")), 10, 64)
	if err == nil {
		for _, id := range s.adminIDs {
			if id == callerID {
				return true
			}
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "admin access required")
	return false
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func pathSuffix(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
