package engine

import "strings"

// Fixed scoring contract, visible to students as "+4 / 0 / -1". Not
// configurable on purpose.
const (
	PointsCorrect    = 4
	PointsIncorrect  = 0
	PointsUnanswered = -1
)

// Score walks every question of the plan in section order and applies the
// contract: unanswered -1, correct +4, incorrect 0. The total may be
// negative. Pure function: identical inputs always yield an identical record.
func Score(plan *SessionPlan, answers *AnswerStore) ScoreRecord {
	rec := ScoreRecord{PerSection: make(map[string]int, len(plan.SectionOrder))}

	for _, sec := range plan.SectionOrder {
		sectionScore := 0
		for i, q := range plan.QuestionsBySection[sec.ID] {
			answer, _ := answers.Get(sec.ID, i)
			sectionScore += scoreQuestion(q, answer)
		}
		rec.PerSection[sec.ID] = sectionScore
		rec.Total += sectionScore
	}

	return rec
}

func scoreQuestion(q Question, a Answer) int {
	if !a.Answered() {
		return PointsUnanswered
	}
	if isCorrect(q, a) {
		return PointsCorrect
	}
	return PointsIncorrect
}

func isCorrect(q Question, a Answer) bool {
	switch q.Kind {
	case KindSingleChoice:
		return len(q.AnswerKeys) == 1 && a.Choice == q.AnswerKeys[0]

	case KindMultiChoice:
		// Exact set equality. A partially correct selection is incorrect,
		// not partial credit.
		if len(a.Choices) != len(q.AnswerKeys) {
			return false
		}
		for _, label := range q.AnswerKeys {
			if !a.Choices[label] {
				return false
			}
		}
		return true

	case KindFreeText:
		if len(q.AnswerKeys) != 1 {
			return false
		}
		return foldText(a.Text) == foldText(q.AnswerKeys[0])
	}
	return false
}

func foldText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
