package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liezira/simutbk-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListSubtests retrieves the battery in presentation order.
func (r *QuestionRepository) ListSubtests(ctx context.Context) ([]model.Subtest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, display_name, question_count, time_budget_minutes, order_num
		 FROM subtests
		 ORDER BY order_num`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subtests []model.Subtest
	for rows.Next() {
		var s model.Subtest
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.QuestionCount, &s.TimeBudgetMinutes, &s.OrderNum); err != nil {
			return nil, err
		}
		subtests = append(subtests, s)
	}
	return subtests, rows.Err()
}

// ListBySubtest retrieves a subtest's full question pool, answer keys included.
func (r *QuestionRepository) ListBySubtest(ctx context.Context, subtestID string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, subtest_id, question_text, COALESCE(image_url, ''), question_type, options, answer_keys
		 FROM questions WHERE subtest_id = $1
		 ORDER BY id`, subtestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.SubtestID, &q.QuestionText, &q.ImageURL, &q.QuestionType, &q.Options, &q.AnswerKeys); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
