package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/engine"
	"github.com/liezira/simutbk-backend/internal/model"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// timeLeftRange must exceed any possible final_time_left so the composite
// sort key orders by score first and remaining time second.
const timeLeftRange = 100000

// leaderboardMember is the ZSET member payload. Code keeps members unique
// when two participants share a name.
type leaderboardMember struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// LeaderboardService ranks finished attempts. The Redis sorted set is the
// fast path; PostgreSQL is both the warm source and the fallback when Redis
// is empty or down.
type LeaderboardService struct {
	cfg    *config.Config
	rdb    *redis.Client
	tokens *repository.TokenRepository
	log    zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(cfg *config.Config, rdb *redis.Client, tokens *repository.TokenRepository, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		cfg:    cfg,
		rdb:    rdb,
		tokens: tokens,
		log:    log.With().Str("component", "leaderboard_service").Logger(),
	}
}

func compositeScore(score, timeLeft int) float64 {
	return float64(score)*timeLeftRange + float64(timeLeft)
}

func splitComposite(composite float64) (score, timeLeft int) {
	score = int(math.Floor(composite / timeLeftRange))
	timeLeft = int(composite - float64(score)*timeLeftRange)
	return score, timeLeft
}

// Warm rebuilds the sorted set from PostgreSQL. Called at startup so ranks
// survive a server restart.
func (s *LeaderboardService) Warm(ctx context.Context) error {
	rows, err := s.tokens.TopFinished(ctx, s.cfg.LeaderboardSize*10)
	if err != nil {
		return fmt.Errorf("load finished attempts: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.LeaderboardKey())
	for _, row := range rows {
		member, err := json.Marshal(leaderboardMember{Code: row.Code, Name: row.Name})
		if err != nil {
			continue
		}
		pipe.ZAdd(ctx, config.CacheKey.LeaderboardKey(), redis.Z{
			Score:  compositeScore(row.Score, row.FinalTimeLeft),
			Member: string(member),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuild leaderboard zset: %w", err)
	}

	s.log.Info().Int("entries", len(rows)).Msg("Leaderboard warmed")
	return nil
}

// Record adds one finished attempt to the sorted set. Best-effort: the
// persist worker owns durability, this only feeds the fast path.
func (s *LeaderboardService) Record(ctx context.Context, tokenCode, name string, score, timeLeft int) {
	member, err := json.Marshal(leaderboardMember{Code: tokenCode, Name: name})
	if err != nil {
		return
	}
	if err := s.rdb.ZAdd(ctx, config.CacheKey.LeaderboardKey(), redis.Z{
		Score:  compositeScore(score, timeLeft),
		Member: string(member),
	}).Err(); err != nil {
		s.log.Warn().Err(err).Str("token", tokenCode).Msg("Failed to record leaderboard entry")
	}
}

// Top returns the ranked window. Redis first, PostgreSQL as fallback; both
// failing returns an error so the caller can render a degraded result screen.
func (s *LeaderboardService) Top(ctx context.Context) ([]model.LeaderboardRow, error) {
	rows, err := s.topFromRedis(ctx)
	if err == nil && len(rows) > 0 {
		return rows, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Redis leaderboard unavailable, falling back to PostgreSQL")
	}

	pgRows, pgErr := s.tokens.TopFinished(ctx, s.cfg.LeaderboardSize)
	if pgErr != nil {
		if err != nil {
			return nil, fmt.Errorf("leaderboard unavailable: %w", pgErr)
		}
		return nil, pgErr
	}
	rows = make([]model.LeaderboardRow, 0, len(pgRows))
	for i, row := range pgRows {
		rows = append(rows, model.LeaderboardRow{
			Rank:          i + 1,
			Name:          row.Name,
			Score:         row.Score,
			FinalTimeLeft: row.FinalTimeLeft,
		})
	}
	return rows, nil
}

// RankOf computes the window placement for one finished attempt against the
// current board.
func (s *LeaderboardService) RankOf(ctx context.Context, score, timeLeft int) (int, bool, error) {
	rows, err := s.Top(ctx)
	if err != nil {
		return 0, false, err
	}

	snapshot := make([]engine.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		snapshot = append(snapshot, engine.LeaderboardEntry{
			Name:                 row.Name,
			Score:                row.Score,
			TimeRemainingSeconds: row.FinalTimeLeft,
		})
	}

	rank, ok := engine.Rank(score, timeLeft, snapshot, s.cfg.LeaderboardSize)
	return rank, ok, nil
}

func (s *LeaderboardService) topFromRedis(ctx context.Context) ([]model.LeaderboardRow, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, config.CacheKey.LeaderboardKey(), 0, int64(s.cfg.LeaderboardSize)-1).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]model.LeaderboardRow, 0, len(zs))
	for i, z := range zs {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		var m leaderboardMember
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		score, timeLeft := splitComposite(z.Score)
		rows = append(rows, model.LeaderboardRow{
			Rank:          i + 1,
			Name:          m.Name,
			Score:         score,
			FinalTimeLeft: timeLeft,
		})
	}
	return rows, nil
}
