package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheger-events/backend/internal/models"
)

// CookieName is the session cookie name.
const CookieName = "session"

// Store reads and writes the session token through the request cookie.
// Each call is a single per-request round trip; no state is shared across requests.
type Store struct {
	codec  *Codec
	secure bool // Secure cookie attribute; true in production
}

// NewStore creates a session store around a codec.
func NewStore(codec *Codec, secure bool) *Store {
	return &Store{codec: codec, secure: secure}
}

// Load returns the verified claims for the request, or nil when the cookie is
// absent or the token is invalid or expired.
func (s *Store) Load(c *gin.Context) *Claims {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return nil
	}
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil
	}
	return claims
}

// Set issues a session token for the user and writes the cookie:
// httpOnly, SameSite=Lax, Secure in production, path=/, max age = token lifetime.
func (s *Store) Set(c *gin.Context, user *models.User) error {
	token, err := s.codec.Encode(user)
	if err != nil {
		return err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.codec.Expire().Seconds()),
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (s *Store) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
