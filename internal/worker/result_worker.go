package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ResultWorker drains the persist queue and writes finished attempts onto
// their token rows. The attempt service only ever enqueues; every retry and
// fallback lives here.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.TokenResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var r model.TokenResult
			if err := json.Unmarshal([]byte(item[1]), &r); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &r)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.TokenResult) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkSaveResults(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result update failed, using fallback")

		for _, r := range batch {
			if err := w.persistSingle(ctx, r); err != nil {
				w.log.Error().Err(err).Str("token", r.Code).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(r)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

// bulkSaveResults updates every token row in one round trip using UNNEST.
// Marking the token used here is what makes redemption one-shot.
func (w *ResultWorker) bulkSaveResults(ctx context.Context, batch []*model.TokenResult) error {
	n := len(batch)

	codes := make([]string, 0, n)
	scores := make([]int, 0, n)
	timeLefts := make([]int, 0, n)
	violations := make([]string, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, r := range batch {
		codes = append(codes, r.Code)
		scores = append(scores, r.Score)
		timeLefts = append(timeLefts, r.FinalTimeLeft)
		violations = append(violations, r.ViolationReason)
		finishedAts = append(finishedAts, r.FinishedAt)
	}

	query := `
		UPDATE tokens AS tok
		SET status = 'used',
		    score = t.score,
		    final_time_left = t.final_time_left,
		    violation_reason = NULLIF(t.violation_reason, ''),
		    finished_at = t.finished_at
		FROM (
			SELECT
				u.code,
				u.score,
				u.final_time_left,
				u.violation_reason,
				u.finished_at
			FROM UNNEST(
				$1::text[],
				$2::int[],
				$3::int[],
				$4::text[],
				$5::timestamptz[]
			) AS u (code, score, final_time_left, violation_reason, finished_at)
		) AS t
		WHERE tok.code = t.code
	`

	_, err := w.pool.Exec(ctx, query, codes, scores, timeLefts, violations, finishedAts)
	return err
}

func (w *ResultWorker) persistSingle(ctx context.Context, r *model.TokenResult) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE tokens
		 SET status = 'used',
		     score = $1,
		     final_time_left = $2,
		     violation_reason = NULLIF($3, ''),
		     finished_at = $4
		 WHERE code = $5`,
		r.Score, r.FinalTimeLeft, r.ViolationReason, r.FinishedAt, r.Code,
	)
	return err
}
