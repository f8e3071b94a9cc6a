package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/engine"
	"github.com/liezira/simutbk-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrAttemptNotFound is returned when no live attempt matches the given ID.
var ErrAttemptNotFound = errors.New("attempt not found")

// finishedAttemptTTL is how long a finished attempt stays in the registry so
// the participant can keep refreshing the result screen.
const finishedAttemptTTL = 30 * time.Minute

// attempt pairs one engine session with the token that paid for it.
type attempt struct {
	id         string
	tokenCode  string
	name       string
	session    *engine.Session
	createdAt  time.Time
	finishedAt time.Time

	watchMu  sync.Mutex
	watchers map[chan engine.StateSnapshot]struct{}
}

func (a *attempt) addWatcher() chan engine.StateSnapshot {
	ch := make(chan engine.StateSnapshot, 8)
	a.watchMu.Lock()
	if a.watchers == nil {
		a.watchers = make(map[chan engine.StateSnapshot]struct{})
	}
	a.watchers[ch] = struct{}{}
	a.watchMu.Unlock()
	return ch
}

func (a *attempt) removeWatcher(ch chan engine.StateSnapshot) {
	a.watchMu.Lock()
	if _, ok := a.watchers[ch]; ok {
		delete(a.watchers, ch)
		close(ch)
	}
	a.watchMu.Unlock()
}

// broadcast fans one snapshot out to every watcher. Non-blocking: a consumer
// that fell behind misses the intermediate snapshot and reconciles with a
// state request.
func (a *attempt) broadcast(snap engine.StateSnapshot) {
	a.watchMu.Lock()
	for ch := range a.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	a.watchMu.Unlock()
}

// AttemptService is the in-memory registry of live attempts. One engine
// session per redeemed token; everything durable goes through the Redis
// queues and the workers behind them.
type AttemptService struct {
	cfg         *config.Config
	rdb         *redis.Client
	auth        *AuthService
	pools       *PoolService
	leaderboard *LeaderboardService
	log         zerolog.Logger

	mu       sync.RWMutex
	attempts map[string]*attempt
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(cfg *config.Config, rdb *redis.Client, auth *AuthService, pools *PoolService, leaderboard *LeaderboardService, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		cfg:         cfg,
		rdb:         rdb,
		auth:        auth,
		pools:       pools,
		leaderboard: leaderboard,
		log:         log.With().Str("component", "attempt_service").Logger(),
		attempts:    make(map[string]*attempt),
	}
}

// Start redeems an exam token and launches a new attempt: the session is
// created, Begin moves it into countdown, and the attempt credential comes
// back to the client.
func (s *AttemptService) Start(ctx context.Context, code string) (*model.StartAttemptResponse, error) {
	token, attemptID, signed, err := s.auth.RedeemToken(ctx, code)
	if err != nil {
		return nil, err
	}

	sections, pools, err := s.pools.Battery()
	if err != nil {
		_ = s.auth.ReleaseAttempt(ctx, token.Code)
		return nil, err
	}

	a := &attempt{
		id:        attemptID,
		tokenCode: token.Code,
		name:      token.Name,
		createdAt: time.Now(),
	}

	session, err := engine.NewSession(engine.SessionConfig{
		Sections:         sections,
		Pools:            pools,
		CountdownSeconds: s.cfg.CountdownSeconds,
		BreakSeconds:     s.cfg.BreakSeconds,
		OnFinalize:       func(rec engine.FinalRecord) { s.finalize(a, rec) },
		OnTransition:     a.broadcast,
	})
	if err != nil {
		_ = s.auth.ReleaseAttempt(ctx, token.Code)
		return nil, err
	}
	a.session = session

	if err := session.Begin(); err != nil {
		_ = s.auth.ReleaseAttempt(ctx, token.Code)
		return nil, err
	}

	s.mu.Lock()
	s.attempts[attemptID] = a
	s.mu.Unlock()

	s.log.Info().
		Str("attempt_id", attemptID).
		Str("token", token.Code).
		Msg("Attempt started")

	return &model.StartAttemptResponse{
		AttemptID:    attemptID,
		AttemptToken: signed,
		Name:         token.Name,
		State:        session.State(),
	}, nil
}

func (s *AttemptService) get(attemptID string) (*attempt, error) {
	s.mu.RLock()
	a, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// State returns the rendering snapshot for an attempt.
func (s *AttemptService) State(attemptID string) (engine.StateSnapshot, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return engine.StateSnapshot{}, err
	}
	return a.session.State(), nil
}

// SectionQuestions returns the current section's question list for the
// navigator grid.
func (s *AttemptService) SectionQuestions(attemptID string) ([]engine.PublicQuestion, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	return a.session.SectionQuestions(), nil
}

// Answer records one input on the attempt's current question.
func (s *AttemptService) Answer(attemptID, value string) (engine.StateSnapshot, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return engine.StateSnapshot{}, err
	}
	if err := a.session.SetAnswer(value); err != nil {
		return engine.StateSnapshot{}, err
	}
	return a.session.State(), nil
}

// Advance moves the attempt past the current question.
func (s *AttemptService) Advance(attemptID string) (engine.StateSnapshot, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return engine.StateSnapshot{}, err
	}
	if err := a.session.Advance(); err != nil {
		return engine.StateSnapshot{}, err
	}
	return a.session.State(), nil
}

// Watch subscribes to an attempt's transition stream. Every phase or question
// move the engine makes, timer-driven ones included, lands on the returned
// channel as a fresh snapshot.
func (s *AttemptService) Watch(attemptID string) (chan engine.StateSnapshot, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}
	return a.addWatcher(), nil
}

// Unwatch removes a subscription and closes its channel.
func (s *AttemptService) Unwatch(attemptID string, ch chan engine.StateSnapshot) {
	a, err := s.get(attemptID)
	if err != nil {
		return
	}
	a.removeWatcher(ch)
}

// Integrity feeds one browser watcher event into the attempt. Every event is
// queued for the audit trail, terminating or not.
func (s *AttemptService) Integrity(ctx context.Context, attemptID, eventType string) (*model.IntegrityEventResponse, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}

	phase := a.session.Phase()
	terminated := a.session.ReportIntegrity(eventType)

	s.queueIntegrityEvent(ctx, a, eventType, string(phase), terminated)

	return &model.IntegrityEventResponse{
		Terminated: terminated,
		State:      a.session.State(),
	}, nil
}

// Result builds the terminal screen payload. The leaderboard is best-effort:
// when ranking is unavailable the score still renders, flagged as degraded.
func (s *AttemptService) Result(ctx context.Context, attemptID string) (*model.ResultResponse, error) {
	a, err := s.get(attemptID)
	if err != nil {
		return nil, err
	}

	rec, ok := a.session.Final()
	if !ok {
		return nil, engine.ErrNotInPhase
	}

	resp := &model.ResultResponse{
		Name:            a.name,
		Score:           rec.Score,
		FinalTimeLeft:   rec.TimeRemainingSeconds,
		ViolationReason: rec.ViolationReason,
	}

	board, err := s.leaderboard.Top(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("Leaderboard degraded on result screen")
		resp.LeaderboardDegraded = true
		return resp, nil
	}
	resp.Leaderboard = board

	rank, placed, err := s.leaderboard.RankOf(ctx, rec.Score.Total, rec.TimeRemainingSeconds)
	if err != nil {
		resp.LeaderboardDegraded = true
		return resp, nil
	}
	resp.Rank = rank
	resp.Ranked = placed
	return resp, nil
}

// finalize is the OnFinalize hook: runs outside the session lock, exactly
// once per attempt. Durability goes through the persist queue; the worker
// owns retries.
func (s *AttemptService) finalize(a *attempt, rec engine.FinalRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	s.mu.Lock()
	a.finishedAt = now
	s.mu.Unlock()

	// The used mark is synchronous: by the time the guard drops, a second
	// redeem must already see status='used'. If the mark cannot be written
	// the guard stays in place and its TTL is the backstop.
	consumed := true
	if err := s.auth.ConsumeToken(ctx, a.tokenCode); err != nil {
		consumed = false
		s.log.Error().Err(err).Str("token", a.tokenCode).Msg("CRITICAL: failed to mark token used")
	}

	result := model.TokenResult{
		Code:            a.tokenCode,
		Score:           rec.Score.Total,
		FinalTimeLeft:   rec.TimeRemainingSeconds,
		ViolationReason: rec.ViolationReason,
		FinishedAt:      now,
	}
	raw, err := json.Marshal(result)
	if err == nil {
		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
			s.log.Error().Err(err).Str("token", a.tokenCode).Msg("CRITICAL: failed to queue result")
		}
	}

	s.leaderboard.Record(ctx, a.tokenCode, a.name, rec.Score.Total, rec.TimeRemainingSeconds)

	if consumed {
		if err := s.auth.ReleaseAttempt(ctx, a.tokenCode); err != nil {
			s.log.Warn().Err(err).Str("token", a.tokenCode).Msg("Failed to release attempt guard")
		}
	}

	s.log.Info().
		Str("attempt_id", a.id).
		Str("token", a.tokenCode).
		Int("score", rec.Score.Total).
		Int("time_left", rec.TimeRemainingSeconds).
		Str("violation", rec.ViolationReason).
		Msg("Attempt finalized")
}

func (s *AttemptService) queueIntegrityEvent(ctx context.Context, a *attempt, eventType, phase string, terminal bool) {
	event := model.IntegrityEvent{
		AttemptID:  a.id,
		TokenCode:  a.tokenCode,
		EventType:  eventType,
		Phase:      phase,
		Terminal:   terminal,
		OccurredAt: time.Now(),
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.IntegrityEventsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.id).Msg("Failed to queue integrity event")
	}
}

// StartJanitor evicts finished attempts after a grace period so the registry
// does not grow without bound. Blocks until ctx is cancelled.
func (s *AttemptService) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap(time.Now())
		}
	}
}

func (s *AttemptService) reap(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.attempts {
		if a.session.Phase() != engine.PhaseResult {
			continue
		}
		if a.finishedAt.IsZero() || now.Sub(a.finishedAt) < finishedAttemptTTL {
			continue
		}
		delete(s.attempts, id)
		s.log.Debug().Str("attempt_id", id).Msg("Evicted finished attempt")
	}
}
