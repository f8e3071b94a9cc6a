package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/database"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// lifecycleDeps wires real PostgreSQL and Redis for lifecycle tests. Skipped
// unless DATABASE_URL and REDIS_URL point at live instances, so the rest of
// the suite stays runnable offline.
type lifecycleDeps struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	rdb    *redis.Client
	tokens *repository.TokenRepository
	auth   *AuthService
	log    zerolog.Logger
}

func newLifecycleDeps(t *testing.T) (*lifecycleDeps, func()) {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	if dbURL == "" || redisURL == "" {
		t.Skip("DATABASE_URL and REDIS_URL required for lifecycle tests")
	}

	cfg := &config.Config{
		DatabaseURL:     dbURL,
		MaxDBConns:      4,
		RedisURL:        redisURL,
		JWTSecret:       "lifecycle-test-secret",
		JWTExpiry:       time.Hour,
		TokenTTL:        time.Hour,
		LeaderboardSize: 10,
	}
	log := zerolog.Nop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		t.Fatalf("connect redis: %v", err)
	}

	tokens := repository.NewTokenRepository(pool)
	deps := &lifecycleDeps{
		cfg:    cfg,
		pool:   pool,
		rdb:    rdb,
		tokens: tokens,
		auth:   NewAuthService(cfg, rdb, tokens),
		log:    log,
	}
	cleanup := func() {
		pool.Close()
		rdb.Close()
	}
	return deps, cleanup
}

func (d *lifecycleDeps) deleteToken(t *testing.T, code string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.pool.Exec(ctx, `DELETE FROM tokens WHERE code = $1`, code); err != nil {
		t.Errorf("cleanup token %s: %v", code, err)
	}
	d.rdb.Del(ctx, config.CacheKey.TokenAttemptGuardKey(code))
}

func TestRedeemAfterFinalizeIsRejected(t *testing.T) {
	deps, cleanup := newLifecycleDeps(t)
	defer cleanup()
	ctx := context.Background()

	token, err := deps.auth.IssueToken(ctx, "Lifecycle Tester", "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	defer deps.deleteToken(t, token.Code)

	if _, _, _, err := deps.auth.RedeemToken(ctx, token.Code); err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	// Finalize order: the used mark lands before the guard is released, so
	// there is no moment where the token is both unguarded and still active.
	if err := deps.auth.ConsumeToken(ctx, token.Code); err != nil {
		t.Fatalf("ConsumeToken: %v", err)
	}
	if err := deps.auth.ReleaseAttempt(ctx, token.Code); err != nil {
		t.Fatalf("ReleaseAttempt: %v", err)
	}

	if _, _, _, err := deps.auth.RedeemToken(ctx, token.Code); !errors.Is(err, ErrTokenUsed) {
		t.Fatalf("redeem after finalize: expected ErrTokenUsed, got %v", err)
	}
}

func TestLeaderboardWarmKeepsTokenIdentity(t *testing.T) {
	deps, cleanup := newLifecycleDeps(t)
	defer cleanup()
	ctx := context.Background()

	token, err := deps.auth.IssueToken(ctx, "Warm Tester", "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	defer deps.deleteToken(t, token.Code)

	if _, err := deps.pool.Exec(ctx,
		`UPDATE tokens
		 SET status = 'used', score = $2, final_time_left = $3, finished_at = now()
		 WHERE code = $1`,
		token.Code, 250, 900,
	); err != nil {
		t.Fatalf("seed finished token: %v", err)
	}

	lb := NewLeaderboardService(deps.cfg, deps.rdb, deps.tokens, deps.log)
	if err := lb.Warm(ctx); err != nil {
		t.Fatalf("Warm: %v", err)
	}

	members, err := deps.rdb.ZRange(ctx, config.CacheKey.LeaderboardKey(), 0, -1).Result()
	if err != nil {
		t.Fatalf("read zset: %v", err)
	}

	// The rebuilt set must carry the real token codes: a re-finish after a
	// restart has to land on the same member, not add a duplicate row.
	found := false
	for _, raw := range members {
		var m leaderboardMember
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			t.Fatalf("unmarshal member %q: %v", raw, err)
		}
		if m.Code == token.Code {
			found = true
			if m.Name != "Warm Tester" {
				t.Fatalf("member name: got %q", m.Name)
			}
		}
	}
	if !found {
		t.Fatalf("warmed set is missing member for token %s", token.Code)
	}
}
