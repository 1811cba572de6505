package tickets

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/events"
	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/response"
)

// CreateRequest is the body for POST /v1/tickets.
type CreateRequest struct {
	EventID    uuid.UUID `json:"eventId" binding:"required"`
	TicketType string    `json:"ticketType" binding:"required,min=2"`
	PriceCents int       `json:"priceCents" binding:"required,gt=0"`
	Quantity   int       `json:"quantity" binding:"required,gt=0"`
}

// UpdateRequest is the body for PUT /v1/tickets/:id. All fields optional.
type UpdateRequest struct {
	TicketType *string `json:"ticketType" binding:"omitempty,min=2"`
	PriceCents *int    `json:"priceCents" binding:"omitempty,gt=0"`
	Quantity   *int    `json:"quantity" binding:"omitempty,gt=0"`
}

// View is a ticket response with the computed remaining quantity.
type View struct {
	models.Ticket
	Available int `json:"available"`
}

func view(t *models.Ticket) View {
	return View{Ticket: *t, Available: t.Available()}
}

// Handler handles ticket tier endpoints.
type Handler struct {
	store  Store
	events events.Store
	logger *zap.Logger
}

// NewHandler creates a tickets handler.
func NewHandler(store Store, events events.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, events: events, logger: logger}
}

// List handles GET /v1/tickets. Organizers see their own tiers; admins see
// all. ?eventId= narrows to one event.
func (h *Handler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)

	filter := Filter{}
	if !claims.IsAdmin() {
		filter.OrganizerID = claims.UserID
	}
	if ev := c.Query("eventId"); ev != "" {
		id, err := uuid.Parse(ev)
		if err != nil {
			response.BadRequest(c, "invalid event id")
			return
		}
		filter.EventID = id
	}

	list, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list tickets", zap.Error(err))
		response.Internal(c, "failed to list tickets")
		return
	}
	out := make([]View, 0, len(list))
	for i := range list {
		out = append(out, view(&list[i]))
	}
	response.OK(c, out)
}

// Get handles GET /v1/tickets/:id.
func (h *Handler) Get(c *gin.Context) {
	ticket := h.loadOwned(c)
	if ticket == nil {
		return
	}
	response.OK(c, view(ticket))
}

// Create handles POST /v1/tickets. The parent event must exist and belong to
// the caller (admins may add tiers to any event).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	event, err := h.events.FindByID(c.Request.Context(), req.EventID)
	if err != nil {
		h.logger.Error("find event", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	if !middleware.OwnershipOrAdmin(c, event.OrganizerID) {
		response.Forbidden(c, "you do not have access to this event")
		return
	}

	ticket, err := h.store.Create(c.Request.Context(), CreateParams{
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		TicketType:  req.TicketType,
		PriceCents:  req.PriceCents,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.logger.Error("create ticket", zap.Error(err))
		response.Internal(c, "failed to create ticket")
		return
	}
	response.Created(c, view(ticket))
}

// Update handles PUT /v1/tickets/:id.
func (h *Handler) Update(c *gin.Context) {
	ticket := h.loadOwned(c)
	if ticket == nil {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	updated, err := h.store.Update(c.Request.Context(), ticket.ID, UpdateParams{
		TicketType: req.TicketType,
		PriceCents: req.PriceCents,
		Quantity:   req.Quantity,
	})
	if err != nil {
		if errors.Is(err, ErrQuantityBelowSold) {
			response.BadRequest(c, ErrQuantityBelowSold.Error())
			return
		}
		h.logger.Error("update ticket", zap.Error(err))
		response.Internal(c, "failed to update ticket")
		return
	}
	if updated == nil {
		response.NotFound(c, "ticket not found")
		return
	}
	response.OK(c, view(updated))
}

// Delete handles DELETE /v1/tickets/:id.
func (h *Handler) Delete(c *gin.Context) {
	ticket := h.loadOwned(c)
	if ticket == nil {
		return
	}

	if err := h.store.Delete(c.Request.Context(), ticket.ID); err != nil {
		if errors.Is(err, ErrTicketsAlreadySold) {
			response.BadRequest(c, "cannot delete a ticket tier with recorded sales")
			return
		}
		h.logger.Error("delete ticket", zap.Error(err))
		response.Internal(c, "failed to delete ticket")
		return
	}
	response.OKMessage(c, nil, "ticket deleted")
}

// loadOwned resolves :id, enforces ownership and writes the error response
// itself; callers stop when it returns nil.
func (h *Handler) loadOwned(c *gin.Context) *models.Ticket {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return nil
	}
	ticket, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("find ticket", zap.Error(err))
		response.Internal(c, "failed to load ticket")
		return nil
	}
	if ticket == nil {
		response.NotFound(c, "ticket not found")
		return nil
	}
	if !middleware.OwnershipOrAdmin(c, ticket.OrganizerID) {
		response.Forbidden(c, "you do not have access to this ticket")
		return nil
	}
	return ticket
}
