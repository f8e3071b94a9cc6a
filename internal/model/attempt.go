package model

import (
	"github.com/liezira/simutbk-backend/internal/engine"
)

// StartAttemptRequest is the payload for redeeming an exam token.
type StartAttemptRequest struct {
	Token string `json:"token" binding:"required,min=6,max=32"`
}

// StartAttemptResponse carries the attempt credential. The JWT scopes every
// subsequent call to this one attempt.
type StartAttemptResponse struct {
	AttemptID    string               `json:"attempt_id"`
	AttemptToken string               `json:"attempt_token"`
	Name         string               `json:"name"`
	State        engine.StateSnapshot `json:"state"`
}

// AnswerRequest records one input on the current question. For pilihan_ganda
// and isian the value replaces the stored answer; for pilihan_majemuk it
// toggles one option label.
type AnswerRequest struct {
	Value string `json:"value" binding:"required,max=2000"`
}

// IntegrityEventRequest is one browser watcher report.
type IntegrityEventRequest struct {
	EventType string `json:"event_type" binding:"required,oneof=tab_hidden fullscreen_exit window_blur key_blocked"`
}

// IntegrityEventResponse tells the client whether the event ended the attempt.
type IntegrityEventResponse struct {
	Terminated bool                 `json:"terminated"`
	State      engine.StateSnapshot `json:"state"`
}

// LeaderboardRow is one ranked finished attempt.
type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	FinalTimeLeft int    `json:"final_time_left"`
}

// ResultResponse is the terminal screen payload. Leaderboard and Rank are
// best-effort: when ranking is unavailable the result still renders with
// LeaderboardDegraded set.
type ResultResponse struct {
	Name                string             `json:"name"`
	Score               engine.ScoreRecord `json:"score"`
	FinalTimeLeft       int                `json:"final_time_left"`
	ViolationReason     string             `json:"violation_reason,omitempty"`
	Rank                int                `json:"rank,omitempty"`
	Ranked              bool               `json:"ranked"`
	Leaderboard         []LeaderboardRow   `json:"leaderboard,omitempty"`
	LeaderboardDegraded bool               `json:"leaderboard_degraded,omitempty"`
}
