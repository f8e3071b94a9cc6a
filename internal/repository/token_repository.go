package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liezira/simutbk-backend/internal/model"
)

// ErrTokenNotFound is returned when no token row matches the given code.
var ErrTokenNotFound = errors.New("token not found")

// TokenRepository handles exam token data access.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// GetByCode retrieves one token row by its code.
func (r *TokenRepository) GetByCode(ctx context.Context, code string) (*model.Token, error) {
	t := &model.Token{}
	err := r.pool.QueryRow(ctx,
		`SELECT code, name, phone, status, created_at, expires_at,
		        score, final_time_left, violation_reason, finished_at
		 FROM tokens WHERE code = $1`, code,
	).Scan(&t.Code, &t.Name, &t.Phone, &t.Status, &t.CreatedAt, &t.ExpiresAt,
		&t.Score, &t.FinalTimeLeft, &t.ViolationReason, &t.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new token.
func (r *TokenRepository) Create(ctx context.Context, t *model.Token) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tokens (code, name, phone, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.Code, t.Name, t.Phone, t.Status, t.ExpiresAt,
	).Scan(&t.CreatedAt)
}

// MarkUsed flips a token to used. The score columns arrive later via the
// persist worker; the status flip alone is what makes redemption one-shot, so
// it must not wait on the queue.
func (r *TokenRepository) MarkUsed(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tokens SET status = 'used' WHERE code = $1`, code)
	return err
}

// TopFinished retrieves the best finished attempts ordered by score then
// remaining time, both descending. Codes stay server-side; the public
// leaderboard rows are built from these without them.
func (r *TokenRepository) TopFinished(ctx context.Context, limit int) ([]model.FinishedAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, name, score, final_time_left
		 FROM tokens
		 WHERE status = 'used' AND score IS NOT NULL
		 ORDER BY score DESC, final_time_left DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []model.FinishedAttempt
	for rows.Next() {
		var row model.FinishedAttempt
		if err := rows.Scan(&row.Code, &row.Name, &row.Score, &row.FinalTimeLeft); err != nil {
			return nil, err
		}
		board = append(board, row)
	}
	return board, rows.Err()
}
