package models

import "time"

// DigestLogEntry is the append-only audit record of generated digests. It
// doubles as rate-limit evidence (rows per UTC day) and as "previously
// said" context so consecutive digests do not repeat the same advice.
type DigestLogEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DigestStatus is the outcome of a digest generation attempt
type DigestStatus string

const (
	DigestStatusSuccess DigestStatus = "success"
	DigestStatusSkipped DigestStatus = "skipped"
	DigestStatusError   DigestStatus = "error"
)

// DigestResult is the user-facing result shape of the digest pipeline
type DigestResult struct {
	Status  DigestStatus `json:"status"`
	Message string       `json:"message"`
}
