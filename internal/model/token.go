package model

import (
	"time"
)

// TokenStatus enumerates the redemption states of an exam token.
type TokenStatus string

const (
	TokenStatusActive TokenStatus = "active"
	TokenStatusUsed   TokenStatus = "used"
)

// Token is an issued exam token row. Codes look like UTBK-7F3K2A and are
// handed out offline; a token admits exactly one finished attempt.
type Token struct {
	Code            string      `json:"code"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone,omitempty"`
	Status          TokenStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	ExpiresAt       time.Time   `json:"expires_at"`
	Score           *int        `json:"score,omitempty"`
	FinalTimeLeft   *int        `json:"final_time_left,omitempty"`
	ViolationReason *string     `json:"violation_reason,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
}

// Expired reports whether the token can no longer be redeemed.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// FinishedAttempt is one leaderboard-eligible token row. Code identifies the
// entry server-side; it never appears in public leaderboard rows.
type FinishedAttempt struct {
	Code          string
	Name          string
	Score         int
	FinalTimeLeft int
}

// TokenResult is the finished-attempt payload queued for the persist worker.
type TokenResult struct {
	Code            string    `json:"code"`
	Score           int       `json:"score"`
	FinalTimeLeft   int       `json:"final_time_left"`
	ViolationReason string    `json:"violation_reason,omitempty"`
	FinishedAt      time.Time `json:"finished_at"`
}

// IntegrityEvent is one browser watcher report queued for the audit worker.
// Non-terminating events (key_blocked, post-violation noise) land here too.
type IntegrityEvent struct {
	AttemptID  string    `json:"attempt_id"`
	TokenCode  string    `json:"token_code"`
	EventType  string    `json:"event_type"`
	Phase      string    `json:"phase"`
	Terminal   bool      `json:"terminal"`
	OccurredAt time.Time `json:"occurred_at"`
}
