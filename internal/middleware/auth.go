package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/internal/session"
	"github.com/sheger-events/backend/pkg/response"
)

const (
	// ContextClaims is the key for session claims in gin context.
	ContextClaims = "session_claims"
	// ContextIsAdmin is the key for the admin flag in gin context.
	ContextIsAdmin = "is_admin"
	// ContextIsOrganizer is the key for the organizer flag in gin context.
	ContextIsOrganizer = "is_organizer"
)

// RequireAuth validates the session cookie and sets claims in context.
// No or invalid session rejects 401 before any role or ownership check runs,
// so an unauthenticated caller never sees 403. Suspended accounts reject 403.
func RequireAuth(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := sessions.Load(c)
		if claims == nil {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		if claims.Status == models.StatusSuspended {
			response.Forbidden(c, "account suspended")
			c.Abort()
			return
		}
		c.Set(ContextClaims, claims)
		c.Set(ContextIsAdmin, claims.IsAdmin())
		c.Set(ContextIsOrganizer, claims.IsOrganizer())
		c.Next()
	}
}

// RequireRole allows only the given roles. Runs after RequireAuth.
// An organizer whose account is still pending gets the distinct
// pending-approval rejection rather than a generic 403, so the role
// mismatch case stays distinguishable from the not-yet-approved case.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Unauthorized(c, "missing session context")
			c.Abort()
			return
		}
		allowed := false
		for _, role := range roles {
			if claims.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		if claims.Role == models.RoleOrganizer && claims.Status == models.StatusPending {
			response.PendingApproval(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the session claims set by RequireAuth, or nil.
func CurrentClaims(c *gin.Context) *session.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*session.Claims)
	return claims
}

// OwnershipOrAdmin reports whether the caller may access a resource owned by
// ownerID: admins access anything, organizers only their own resources.
func OwnershipOrAdmin(c *gin.Context, ownerID uuid.UUID) bool {
	claims := CurrentClaims(c)
	if claims == nil {
		return false
	}
	if claims.IsAdmin() {
		return true
	}
	return claims.IsOrganizer() && claims.UserID == ownerID
}
