package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/response"
)

// ContextEvent is the gin context key under which RequireEventAccess caches the event.
const ContextEvent = "event"

// RequireEventAccess loads the event named by the :id route param and verifies
// the caller owns it or is an admin. Runs after RequireAuth.
func RequireEventAccess(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}

		event, err := store.FindByID(c.Request.Context(), id)
		if err != nil {
			response.Internal(c, "failed to load event")
			c.Abort()
			return
		}
		if event == nil {
			response.NotFound(c, "event not found")
			c.Abort()
			return
		}
		if !middleware.OwnershipOrAdmin(c, event.OrganizerID) {
			response.Forbidden(c, "you do not have access to this event")
			c.Abort()
			return
		}

		c.Set(ContextEvent, event)
		c.Next()
	}
}

// EventFromContext returns the event cached by RequireEventAccess.
func EventFromContext(c *gin.Context) *models.Event {
	v, ok := c.Get(ContextEvent)
	if !ok {
		return nil
	}
	event, _ := v.(*models.Event)
	return event
}
