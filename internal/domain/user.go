package domain

import "time"

// User is one transport account that has interacted with the service.
// Users are never hard-deleted; BlockedBot and IsActive track reachability.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	Language      string    `json:"language"`
	IsActive      bool      `json:"isActive"`
	BlockedBot    bool      `json:"blockedBot"`
	DownloadCount int64     `json:"downloadCount"`
	RequestCount  int64     `json:"requestCount"`
	JoinedAt      time.Time `json:"joinedAt"`
	LastActiveAt  time.Time `json:"lastActiveAt"`
}
