package domain

import "time"

// RateLimitEntry is a cool-down window the remote API imposed on one operation.
type RateLimitEntry struct {
	Operation  string        `json:"operation"`
	RetryAfter time.Duration `json:"retry_after"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// ExpiresAt is the first instant the operation may be called again.
func (e RateLimitEntry) ExpiresAt() time.Time {
	return e.RecordedAt.Add(e.RetryAfter)
}

// Active reports whether the entry still blocks calls at now.
func (e RateLimitEntry) Active(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}
