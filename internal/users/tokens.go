package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	resetTokenPrefix  = "pwreset:"
	verifyTokenPrefix = "verify:"

	resetTokenTTL  = time.Hour
	verifyTokenTTL = 24 * time.Hour
)

// TokenService issues and consumes one-time password-reset and
// email-verification tokens, stored in Redis with a TTL.
type TokenService struct {
	rdb *redis.Client
}

// NewTokenService creates a token service.
func NewTokenService(rdb *redis.Client) *TokenService {
	return &TokenService{rdb: rdb}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateResetToken issues a password-reset token for the user, valid for one hour.
func (s *TokenService) CreateResetToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, resetTokenPrefix+token, userID.String(), resetTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// ConsumeResetToken resolves and deletes a reset token, returning the user id.
// Unknown or expired tokens return uuid.Nil and no error.
func (s *TokenService) ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	return s.consume(ctx, resetTokenPrefix+token)
}

// CreateVerifyToken issues an email-verification token, valid for 24 hours.
func (s *TokenService) CreateVerifyToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, verifyTokenPrefix+token, userID.String(), verifyTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store verify token: %w", err)
	}
	return token, nil
}

// ConsumeVerifyToken resolves and deletes a verification token, returning the user id.
func (s *TokenService) ConsumeVerifyToken(ctx context.Context, token string) (uuid.UUID, error) {
	return s.consume(ctx, verifyTokenPrefix+token)
}

func (s *TokenService) consume(ctx context.Context, key string) (uuid.UUID, error) {
	val, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, nil
	}
	return id, nil
}
