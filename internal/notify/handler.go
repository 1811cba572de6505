package notify

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/models"
	"github.com/sheger-events/backend/pkg/response"
)

// Handler serves the admin view over the notification log.
type Handler struct {
	logs   LogStore
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(logs LogStore, logger *zap.Logger) *Handler {
	return &Handler{logs: logs, logger: logger}
}

// List handles GET /admin/email-logs. Mount after RequireRole(admin).
func (h *Handler) List(c *gin.Context) {
	page := atoiDefault(c.Query("page"), 1)
	limit := atoiDefault(c.Query("limit"), 20)

	list, total, err := h.logs.List(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	if list == nil {
		list = []models.EmailLog{}
	}
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
