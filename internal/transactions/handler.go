package transactions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/events"
	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/queue"
	"github.com/sheger-events/backend/pkg/response"
)

// SalesPublisher pushes a completed sale to the live back-office feed.
type SalesPublisher interface {
	PublishSale(ctx context.Context, tx *models.Transaction) error
}

// CreateRequest is the body for the public POST /v1/transactions checkout.
type CreateRequest struct {
	EventID       uuid.UUID `json:"eventId" binding:"required"`
	TicketID      uuid.UUID `json:"ticketId" binding:"required"`
	CustomerEmail string    `json:"customerEmail" binding:"required,email"`
	CustomerName  string    `json:"customerName" binding:"required,min=2"`
	Quantity      int       `json:"quantity" binding:"required,gt=0"`
	PaymentMethod string    `json:"paymentMethod" binding:"required,oneof=telebirr cbe-birr amole bank-transfer cash"`
}

// UpdateStatusRequest is the body for PUT /v1/transactions/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=completed failed refunded"`
}

// Handler handles checkout and transaction management endpoints.
type Handler struct {
	store     Store
	events    events.Store
	queue     *queue.Queue
	publisher SalesPublisher
	logger    *zap.Logger
}

// NewHandler creates a transactions handler. q and publisher may be nil;
// receipts and the live feed are then skipped.
func NewHandler(store Store, events events.Store, q *queue.Queue, publisher SalesPublisher, logger *zap.Logger) *Handler {
	return &Handler{store: store, events: events, queue: q, publisher: publisher, logger: logger}
}

// Create handles the public POST /v1/transactions checkout. The inventory
// reservation and the pending transaction commit atomically.
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
	if event.Status != models.EventStatusActive {
		response.BadRequest(c, ErrEventNotActive.Error())
		return
	}

	tx, err := h.store.Purchase(c.Request.Context(), PurchaseParams{
		EventID:       req.EventID,
		TicketID:      req.TicketID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Quantity:      req.Quantity,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTicketMismatch), errors.Is(err, ErrEventNotActive),
			errors.Is(err, ErrInsufficientInventory):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("create transaction", zap.Error(err))
			response.Internal(c, "failed to create transaction")
		}
		return
	}
	if tx == nil {
		response.NotFound(c, "ticket not found")
		return
	}
	response.Created(c, tx)
}

// Confirm handles the public POST /v1/transactions/:id/confirm gateway
// callback, moving a pending payment to completed.
func (h *Handler) Confirm(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transaction id")
		return
	}

	tx, err := h.store.Transition(c.Request.Context(), id, models.TransactionStatusCompleted)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.BadRequest(c, "transaction is not awaiting payment")
			return
		}
		h.logger.Error("confirm transaction", zap.Error(err))
		response.Internal(c, "failed to confirm transaction")
		return
	}
	if tx == nil {
		response.NotFound(c, "transaction not found")
		return
	}

	h.afterCompletion(c, tx)
	response.OKMessage(c, tx, "payment confirmed")
}

// List handles GET /v1/transactions. Organizers see their own sales; admins
// see all. Filters: eventId, status, paymentMethod, page, limit.
func (h *Handler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)

	filter := Filter{
		PaymentMethod: c.Query("paymentMethod"),
		Page:          atoiDefault(c.Query("page"), 1),
		Limit:         atoiDefault(c.Query("limit"), 20),
	}
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
	switch s := c.Query("status"); s {
	case "":
	case string(models.TransactionStatusPending), string(models.TransactionStatusCompleted),
		string(models.TransactionStatusRefunded), string(models.TransactionStatusFailed):
		filter.Status = models.TransactionStatus(s)
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}

	list, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", zap.Error(err))
		response.Internal(c, "failed to list transactions")
		return
	}
	if list == nil {
		list = []models.Transaction{}
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	response.Paginated(c, list, response.NewMeta(page, limit, total))
}

// Get handles GET /v1/transactions/:id.
func (h *Handler) Get(c *gin.Context) {
	tx := h.loadOwned(c)
	if tx == nil {
		return
	}
	response.OK(c, tx)
}

// UpdateStatus handles PUT /v1/transactions/:id/status for the back office.
// A refund releases the reserved inventory; a second refund is rejected.
func (h *Handler) UpdateStatus(c *gin.Context) {
	tx := h.loadOwned(c)
	if tx == nil {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	to := models.TransactionStatus(req.Status)
	updated, err := h.store.Transition(c.Request.Context(), tx.ID, to)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			response.BadRequest(c, fmt.Sprintf("cannot transition from %s to %s", tx.Status, to))
			return
		}
		h.logger.Error("update transaction status", zap.Error(err))
		response.Internal(c, "failed to update transaction")
		return
	}
	if updated == nil {
		response.NotFound(c, "transaction not found")
		return
	}

	if to == models.TransactionStatusCompleted {
		h.afterCompletion(c, updated)
	}
	response.OKMessage(c, updated, "status updated")
}

func (h *Handler) afterCompletion(c *gin.Context, tx *models.Transaction) {
	if h.queue != nil {
		err := h.queue.EnqueueEmail(c.Request.Context(), queue.EmailPayload{
			EmailType:      queue.EmailTypePaymentReceipt,
			RecipientEmail: tx.CustomerEmail,
			Subject:        "Your ticket purchase receipt",
			Body: fmt.Sprintf("Hi %s, your payment of %d.%02d ETB for %d ticket(s) was received. Reference: %s",
				tx.CustomerName, tx.AmountCents/100, tx.AmountCents%100, tx.Quantity, tx.ID),
		})
		if err != nil {
			h.logger.Warn("enqueue receipt", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
		}
	}
	if h.publisher != nil {
		if err := h.publisher.PublishSale(c.Request.Context(), tx); err != nil {
			h.logger.Warn("publish sale", zap.Error(err), zap.String("transaction_id", tx.ID.String()))
		}
	}
}

func (h *Handler) loadOwned(c *gin.Context) *models.Transaction {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid transaction id")
		return nil
	}
	tx, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("find transaction", zap.Error(err))
		response.Internal(c, "failed to load transaction")
		return nil
	}
	if tx == nil {
		response.NotFound(c, "transaction not found")
		return nil
	}
	if !middleware.OwnershipOrAdmin(c, tx.OrganizerID) {
		response.Forbidden(c, "you do not have access to this transaction")
		return nil
	}
	return tx
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
