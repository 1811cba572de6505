package customers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/pkg/response"
)

// Handler serves the aggregated customer list for the back office.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a customers handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// List handles GET /v1/customers. Organizers see buyers of their own events;
// admins see the whole platform.
func (h *Handler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)

	filter := Filter{
		Page:  atoiDefault(c.Query("page"), 1),
		Limit: atoiDefault(c.Query("limit"), 20),
	}
	if !claims.IsAdmin() {
		filter.OrganizerID = claims.UserID
	}

	list, total, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list customers", zap.Error(err))
		response.Internal(c, "failed to list customers")
		return
	}
	if list == nil {
		list = []Customer{}
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	response.Paginated(c, list, response.NewMeta(page, limit, total))
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
