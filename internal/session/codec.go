package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sheger-events/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the identity payload carried in a session token. It is immutable
// once issued: an admin status change is not reflected until the user
// re-authenticates or the token expires.
type Claims struct {
	UserID       uuid.UUID     `json:"user_id"`
	Email        string        `json:"email"`
	Role         models.Role   `json:"role"`
	Name         string        `json:"name,omitempty"`
	BusinessName string        `json:"business_name,omitempty"`
	Status       models.Status `json:"status"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claim carries the admin role.
func (c *Claims) IsAdmin() bool { return c.Role == models.RoleAdmin }

// IsOrganizer reports whether the claim carries the organizer role.
func (c *Claims) IsOrganizer() bool { return c.Role == models.RoleOrganizer }

// Codec signs and verifies session tokens.
type Codec struct {
	secret []byte
	expire time.Duration
}

// NewCodec creates a session token codec. expireDays is the token validity window.
func NewCodec(secret string, expireDays int) *Codec {
	if expireDays <= 0 {
		expireDays = 7
	}
	return &Codec{
		secret: []byte(secret),
		expire: time.Duration(expireDays) * 24 * time.Hour,
	}
}

// Expire returns the token validity window.
func (s *Codec) Expire() time.Duration { return s.expire }

// Encode creates a signed session token for the user.
func (s *Codec) Encode(user *models.User) (string, error) {
	claims := Claims{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		Name:         user.Name,
		BusinessName: user.BusinessName,
		Status:       user.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expire)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Decode parses and verifies a session token, returning claims or
// ErrInvalidToken on malformed input, bad signature, or expiration.
func (s *Codec) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
