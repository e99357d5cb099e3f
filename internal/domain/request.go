package domain

import "time"

type RequestID string

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

// requestTransitions is the closed set of legal status edges. Rejected and
// fulfilled are terminal.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {RequestFulfilled},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestFulfilled:
		return true
	default:
		return false
	}
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TitleMeta is an optional metadata payload attached to a request at
// creation time, typically resolved from TMDB.
type TitleMeta struct {
	TMDBID    int       `json:"tmdbId,omitempty"`
	Title     string    `json:"title"`
	Year      int       `json:"year,omitempty"`
	Kind      MediaKind `json:"kind,omitempty"`
	Overview  string    `json:"overview,omitempty"`
	PosterURL string    `json:"posterUrl,omitempty"`
	Rating    float64   `json:"rating,omitempty"`
}

// Request is a user's ask for a title that is not in the catalog yet.
// Multiple requests for the same title are allowed; the duplicates are the
// demand signal.
type Request struct {
	ID              RequestID     `json:"id"`
	UserID          int64         `json:"userId"`
	Title           string        `json:"title"`
	Meta            *TitleMeta    `json:"meta,omitempty"`
	Status          RequestStatus `json:"status"`
	FulfilledFileID string        `json:"fulfilledFileId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
