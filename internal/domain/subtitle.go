package domain

import (
	"errors"
	"time"
)

type SubtitleID string

type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaSeries  MediaKind = "series"
	MediaUnknown MediaKind = "unknown"
)

// FileRef points at a file stored by the chat transport. The transport owns
// the file; the catalog only keeps the opaque handle.
type FileRef struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// SourceRef identifies the channel message a record was ingested from.
type SourceRef struct {
	MessageID int64 `json:"messageId"`
	ChannelID int64 `json:"channelId"`
}

// SubtitleRecord is one catalog entry. Identity is the (Title, Year) pair:
// Title is already normalized, Year is nil for undated posts and nil only
// matches nil.
type SubtitleRecord struct {
	ID        SubtitleID `json:"id"`
	Title     string     `json:"title"`
	Year      *int       `json:"year,omitempty"`
	Language  string     `json:"language"`
	Kind      MediaKind  `json:"kind"`
	File      FileRef    `json:"file"`
	Source    SourceRef  `json:"source"`
	Caption   string     `json:"caption,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Validate checks domain invariants for SubtitleRecord.
func (r SubtitleRecord) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if r.File.FileID == "" {
		return errors.New("file id is required")
	}
	if r.File.FileSize < 0 {
		return errors.New("fileSize must not be negative")
	}
	if r.Year != nil && (*r.Year < 1880 || *r.Year > 2200) {
		return errors.New("year out of range")
	}
	switch r.Kind {
	case MediaMovie, MediaSeries, MediaUnknown, "":
	default:
		return errors.New("invalid media kind: " + string(r.Kind))
	}
	return nil
}
