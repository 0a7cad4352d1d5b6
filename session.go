package main

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable unit of a conversation, per spec.md §3. Its id is a
// UUIDv7 so directory listing by id approximates chronological order (the
// first 48 bits are a millisecond timestamp).
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	InitialPrompt  string    `json:"initialPrompt"`

	History      []Message    `json:"history"`
	UsageMetrics UsageMetrics `json:"usageMetrics"`
}

// UsageMetrics accumulates cumulative token/request counters for a session.
// Monotonic non-decreasing except via an explicit Reset.
type UsageMetrics struct {
	InputTokens      int64     `json:"inputTokens"`
	OutputTokens     int64     `json:"outputTokens"`
	CacheReadTokens  int64     `json:"cacheReadTokens"`
	CacheWriteTokens int64     `json:"cacheWriteTokens"`
	RequestCount     int64     `json:"requestCount"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Accumulate folds a usage delta into the metrics. Counters only ever grow.
func (u *UsageMetrics) Accumulate(delta UsageMetrics) {
	u.InputTokens += delta.InputTokens
	u.OutputTokens += delta.OutputTokens
	u.CacheReadTokens += delta.CacheReadTokens
	u.CacheWriteTokens += delta.CacheWriteTokens
	u.RequestCount += delta.RequestCount
	u.LastUpdated = time.Now()
}

// Reset clears all counters; the only sanctioned way metrics may decrease.
func (u *UsageMetrics) Reset() {
	*u = UsageMetrics{}
}

// Attachment records the metadata of a binary blob attached to a message
// content part. The bytes themselves live under the session's attachments
// directory; see SessionStore.
type Attachment struct {
	OriginalFileName string `json:"originalFileName"`
	MediaType        string `json:"mediaType"`
	SizeBytes        int64  `json:"sizeBytes"`
	MessageIndex     int    `json:"messageIndex"`
	ContentIndex     int    `json:"contentIndex"`
	StoredFileName   string `json:"storedFileName"`
	ContentHash      string `json:"contentHash"`
}

// NewSessionID generates a time-ordered 128-bit session id (UUIDv7).
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the OS random source is broken; fall back
		// to a random v4 rather than panic mid-session.
		return uuid.NewString()
	}
	return id.String()
}

// NewSession creates an empty session ready for its first user message.
func NewSession(name string) *Session {
	now := time.Now()
	return &Session{
		ID:             NewSessionID(),
		Name:           name,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
}

// Touch records that the session was just appended to.
func (s *Session) Touch() {
	s.LastModifiedAt = time.Now()
}
