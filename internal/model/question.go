package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/liezira/simutbk-backend/internal/engine"
)

// QuestionType mirrors the authoring vocabulary stored in the question bank.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "pilihan_ganda"
	QuestionTypeMultiChoice  QuestionType = "pilihan_majemuk"
	QuestionTypeFreeText     QuestionType = "isian"
)

// Question is a question bank row. AnswerKeys holds one label for
// pilihan_ganda, the full label set for pilihan_majemuk, and the accepted
// text for isian. It never leaves the server.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	SubtestID    string       `json:"subtest_id"`
	QuestionText string       `json:"question_text"`
	ImageURL     string       `json:"image_url,omitempty"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options,omitempty"`
	AnswerKeys   []string     `json:"answer_keys"`
}

// EngineQuestion converts the row into the engine's question type.
func (q Question) EngineQuestion() (engine.Question, error) {
	var kind engine.QuestionKind
	switch q.QuestionType {
	case QuestionTypeSingleChoice:
		kind = engine.KindSingleChoice
	case QuestionTypeMultiChoice:
		kind = engine.KindMultiChoice
	case QuestionTypeFreeText:
		kind = engine.KindFreeText
	default:
		return engine.Question{}, fmt.Errorf("question %s: unknown type %q", q.ID, q.QuestionType)
	}
	return engine.Question{
		ID:         q.ID.String(),
		Kind:       kind,
		Prompt:     q.QuestionText,
		ImageURL:   q.ImageURL,
		Options:    q.Options,
		AnswerKeys: q.AnswerKeys,
	}, nil
}
