package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/liezira/simutbk-backend/internal/config"
	"github.com/liezira/simutbk-backend/internal/model"
	"github.com/liezira/simutbk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
)

// Common auth errors.
var (
	ErrTokenNotFound       = errors.New("exam token not found")
	ErrTokenExpired        = errors.New("exam token expired")
	ErrTokenUsed           = errors.New("exam token already used")
	ErrAttemptAlreadyLive  = errors.New("another attempt is already running on this token")
	ErrInvalidAttemptToken = errors.New("invalid attempt token")
)

// Claims extends JWT standard claims with attempt-scoped fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenCode string `json:"token_code"`
	Name      string `json:"name"`
	AttemptID string `json:"attempt_id"`
}

// AuthService redeems exam tokens and issues attempt-scoped JWTs. An exam
// token (UTBK-XXXXXX) is the offline credential; the JWT it buys is what every
// later request carries.
type AuthService struct {
	cfg    *config.Config
	rdb    *redis.Client
	tokens *repository.TokenRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, tokens *repository.TokenRepository) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, tokens: tokens}
}

// tokenCodeAlphabet omits 0/O and 1/I to survive being read out loud.
const tokenCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTokenCode generates a fresh UTBK-XXXXXX code.
func NewTokenCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenCodeAlphabet[int(b)%len(tokenCodeAlphabet)]
	}
	return "UTBK-" + string(buf), nil
}

// IssueToken creates and stores a new exam token for the given participant,
// valid for the configured TTL. Phone is kept for the operator's dispatch
// list; the server never messages anyone itself.
func (s *AuthService) IssueToken(ctx context.Context, name, phone string) (*model.Token, error) {
	code, err := NewTokenCode()
	if err != nil {
		return nil, err
	}
	t := &model.Token{
		Code:      code,
		Name:      name,
		Phone:     phone,
		Status:    model.TokenStatusActive,
		ExpiresAt: time.Now().Add(s.cfg.TokenTTL),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return t, nil
}

// RedeemToken validates an exam token and claims it for a new attempt. The
// Redis guard key is the single-attempt gate: a second redeem while an
// attempt is live is rejected until the attempt finishes or the guard TTL
// lapses.
func (s *AuthService) RedeemToken(ctx context.Context, code string) (*model.Token, string, string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	t, err := s.tokens.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, "", "", ErrTokenNotFound
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("load token: %w", err)
	}
	if t.Status == model.TokenStatusUsed {
		return nil, "", "", ErrTokenUsed
	}
	if t.Expired(time.Now()) {
		return nil, "", "", ErrTokenExpired
	}

	attemptID := uuid.New().String()
	guardKey := config.CacheKey.TokenAttemptGuardKey(code)
	ok, err := s.rdb.SetNX(ctx, guardKey, attemptID, s.cfg.JWTExpiry).Result()
	if err != nil {
		return nil, "", "", fmt.Errorf("set attempt guard: %w", err)
	}
	if !ok {
		return nil, "", "", ErrAttemptAlreadyLive
	}

	signed, err := s.generateAttemptToken(t, attemptID)
	if err != nil {
		// Roll the guard back so the token is not locked out.
		s.rdb.Del(ctx, guardKey)
		return nil, "", "", err
	}
	return t, attemptID, signed, nil
}

// ConsumeToken synchronously marks a token used. Called at finalize, before
// the attempt guard is released: the one-shot guarantee must never ride the
// async persist queue.
func (s *AuthService) ConsumeToken(ctx context.Context, code string) error {
	return s.tokens.MarkUsed(ctx, code)
}

// ReleaseAttempt clears the single-attempt guard for a token. Called when the
// attempt reaches result or is evicted.
func (s *AuthService) ReleaseAttempt(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, config.CacheKey.TokenAttemptGuardKey(code)).Err()
}

func (s *AuthService) generateAttemptToken(t *model.Token, attemptID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   t.Code,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenCode: t.Code,
		Name:      t.Name,
		AttemptID: attemptID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates an attempt JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AttemptID == "" {
		return nil, ErrInvalidAttemptToken
	}

	return claims, nil
}
