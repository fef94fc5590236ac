package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is an uploaded PDF. Summary is set and Processed flipped to true
// only by the ingestion pipeline, after it completes without fatal error.
type Document struct {
	ID         string
	Filename   string
	Path       string
	UploadedAt time.Time
	Processed  bool
	Summary    string
}

// ConversationTurn is one query/answer pair in a document's chat history.
// Turns are immutable once written.
type ConversationTurn struct {
	ID         string
	DocumentID string
	Query      string
	Answer     string
	CreatedAt  time.Time
}

// ExtractedEntity is a single entity record produced during ingestion.
// No uniqueness is enforced; re-running extraction may create duplicates.
type ExtractedEntity struct {
	ID         int64
	DocumentID string
	Type       string
	Text       string
	Count      int
}
