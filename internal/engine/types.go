// Package engine implements the SimUTBK exam session engine: per-attempt
// randomization, wall-clock deadlines, integrity monitoring, answer capture,
// scoring, the session state machine, and leaderboard ranking.
//
// The package has no dependencies beyond the standard library so it can be
// exercised headlessly in tests. Transport, persistence, and caching live in
// the service layer.
package engine

import "errors"

// Phase enumerates the states of the session state machine.
type Phase string

const (
	PhaseLanding   Phase = "landing"
	PhaseCountdown Phase = "countdown"
	PhaseTest      Phase = "test"
	PhaseBreak     Phase = "break"
	PhaseResult    Phase = "result"
)

// QuestionKind enumerates the supported answer shapes.
type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
	KindFreeText     QuestionKind = "free_text"
)

// OptionCount is the fixed number of options for choice questions (A–E).
const OptionCount = 5

// SectionSpec describes one timed subtest of the battery. Immutable.
type SectionSpec struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	QuestionCount     int    `json:"question_count"`
	TimeBudgetMinutes int    `json:"time_budget_minutes"`
}

// Question is a single pool entry. AnswerKeys holds one label for
// single_choice, the full label set for multi_choice, and the expected text
// (compared case-insensitively after trimming) for free_text.
type Question struct {
	ID         string
	Kind       QuestionKind
	Prompt     string
	ImageURL   string
	Options    []string
	AnswerKeys []string
}

// SessionPlan is the per-attempt randomization outcome. Immutable once built.
type SessionPlan struct {
	SectionOrder       []SectionSpec
	QuestionsBySection map[string][]Question
}

// ScoreRecord holds the finalized per-section and total scores.
type ScoreRecord struct {
	PerSection map[string]int `json:"per_section"`
	Total      int            `json:"total"`
}

// FinalRecord is the terminal outcome of an attempt, handed to the
// persistence collaborator exactly once when the session reaches result.
type FinalRecord struct {
	Score                ScoreRecord
	TimeRemainingSeconds int
	ViolationReason      string
}

// Configuration errors surfaced before an attempt may start.
var (
	ErrPoolTooSmall   = errors.New("question pool smaller than section question count")
	ErrInvalidSection = errors.New("section spec has non-positive question count or time budget")
)
