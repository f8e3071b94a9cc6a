package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/engine"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrBatteryNotLoaded is returned when an attempt starts before the question
// bank was warmed.
var ErrBatteryNotLoaded = errors.New("battery not loaded")

// PoolService owns the in-memory question bank. Pools are loaded once at
// startup, validated against the battery, and mirrored into Redis so an
// operator can inspect what the server is actually serving.
type PoolService struct {
	questions *repository.QuestionRepository
	rdb       *redis.Client
	log       zerolog.Logger

	mu       sync.RWMutex
	sections []engine.SectionSpec
	pools    map[string][]engine.Question
}

// NewPoolService creates a new PoolService.
func NewPoolService(questions *repository.QuestionRepository, rdb *redis.Client, log zerolog.Logger) *PoolService {
	return &PoolService{
		questions: questions,
		rdb:       rdb,
		log:       log.With().Str("component", "pool_service").Logger(),
	}
}

// Warm loads the battery and every subtest pool from PostgreSQL, validates
// that each pool can fill its section, and caches the result. Called at
// startup; a failure here is fatal because no attempt can start without it.
func (s *PoolService) Warm(ctx context.Context) error {
	started := time.Now()

	subtests, err := s.questions.ListSubtests(ctx)
	if err != nil {
		return fmt.Errorf("list subtests: %w", err)
	}
	if len(subtests) == 0 {
		return errors.New("no subtests configured")
	}

	sections := make([]engine.SectionSpec, 0, len(subtests))
	pools := make(map[string][]engine.Question, len(subtests))
	total := 0

	for _, st := range subtests {
		rows, err := s.questions.ListBySubtest(ctx, st.ID)
		if err != nil {
			return fmt.Errorf("list questions for %s: %w", st.ID, err)
		}

		pool := make([]engine.Question, 0, len(rows))
		for _, row := range rows {
			q, err := row.EngineQuestion()
			if err != nil {
				return err
			}
			pool = append(pool, q)
		}

		sections = append(sections, st.SectionSpec())
		pools[st.ID] = pool
		total += len(pool)
	}

	if err := engine.ValidatePools(sections, pools); err != nil {
		return fmt.Errorf("validate pools: %w", err)
	}

	s.mu.Lock()
	s.sections = sections
	s.pools = pools
	s.mu.Unlock()

	s.mirrorToRedis(ctx, sections, pools)

	s.log.Info().
		Int("subtests", len(sections)).
		Int("questions", total).
		Dur("took", time.Since(started)).
		Msg("Question pools warmed")
	return nil
}

// Battery returns the section order and pools for a new attempt. The pools
// map is shared read-only state: the engine never mutates it.
func (s *PoolService) Battery() ([]engine.SectionSpec, map[string][]engine.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pools == nil {
		return nil, nil, ErrBatteryNotLoaded
	}
	return s.sections, s.pools, nil
}

// mirrorToRedis is best-effort observability, never load-bearing. Answer keys
// are stripped before anything touches the cache.
func (s *PoolService) mirrorToRedis(ctx context.Context, sections []engine.SectionSpec, pools map[string][]engine.Question) {
	pipe := s.rdb.Pipeline()

	if raw, err := json.Marshal(sections); err == nil {
		pipe.Set(ctx, config.CacheKey.BatteryKey(), raw, 0)
	}
	for id, pool := range pools {
		public := make([]engine.PublicQuestion, 0, len(pool))
		for _, q := range pool {
			public = append(public, engine.PublicQuestion{
				ID:       q.ID,
				Kind:     q.Kind,
				Prompt:   q.Prompt,
				ImageURL: q.ImageURL,
				Options:  q.Options,
			})
		}
		if raw, err := json.Marshal(public); err == nil {
			pipe.Set(ctx, config.CacheKey.SubtestPoolKey(id), raw, 0)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to mirror pools to Redis")
	}
}
