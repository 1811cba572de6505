package analytics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sheger-events/backend/internal/middleware"
	"github.com/sheger-events/backend/pkg/response"
)

// PlatformFeePercent is the cut the platform takes of gross completed sales.
const PlatformFeePercent = 10

// Handler serves the organizer dashboard and the admin platform stats.
type Handler struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(pool *pgxpool.Pool, logger *zap.Logger) *Handler {
	return &Handler{pool: pool, logger: logger}
}

// DaySales is one day of the trailing sales series.
type DaySales struct {
	Date         string `json:"date"`
	RevenueCents int    `json:"revenueCents"`
	TicketsSold  int    `json:"ticketsSold"`
}

// DashboardResponse is the organizer dashboard payload.
type DashboardResponse struct {
	TotalEvents        int        `json:"totalEvents"`
	ActiveEvents       int        `json:"activeEvents"`
	TotalRevenueCents  int        `json:"totalRevenueCents"`
	TotalTicketsSold   int        `json:"totalTicketsSold"`
	TodayRevenueCents  int        `json:"todayRevenueCents"`
	TodayTicketsSold   int        `json:"todayTicketsSold"`
	PendingTxns        int        `json:"pendingTransactions"`
	Last7Days          []DaySales `json:"last7Days"`
}

// Dashboard handles GET /v1/analytics/dashboard for the signed-in organizer
// (admins get the same shape over all organizers).
func (h *Handler) Dashboard(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	ctx := c.Request.Context()

	orgID := claims.UserID
	if claims.IsAdmin() {
		orgID = uuid.Nil
	}

	var out DashboardResponse

	const eventsQ = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active')
		FROM events
		WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)`
	if err := h.pool.QueryRow(ctx, eventsQ, orgID).Scan(&out.TotalEvents, &out.ActiveEvents); err != nil {
		h.logger.Error("dashboard events", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}

	const salesQ = `SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(quantity) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'completed' AND created_at >= CURRENT_DATE), 0),
			COALESCE(SUM(quantity) FILTER (WHERE status = 'completed' AND created_at >= CURRENT_DATE), 0),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM transactions
		WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)`
	if err := h.pool.QueryRow(ctx, salesQ, orgID).Scan(&out.TotalRevenueCents, &out.TotalTicketsSold,
		&out.TodayRevenueCents, &out.TodayTicketsSold, &out.PendingTxns); err != nil {
		h.logger.Error("dashboard sales", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}

	// Trailing 7-day series, zero-filled for days without sales.
	const seriesQ = `SELECT d::date, COALESCE(SUM(t.amount_cents), 0), COALESCE(SUM(t.quantity), 0)
		FROM generate_series(CURRENT_DATE - 6, CURRENT_DATE, '1 day') d
		LEFT JOIN transactions t ON t.created_at::date = d::date
			AND t.status = 'completed'
			AND ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR t.organizer_id = $1)
		GROUP BY d ORDER BY d`
	rows, err := h.pool.Query(ctx, seriesQ, orgID)
	if err != nil {
		h.logger.Error("dashboard series", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	defer rows.Close()
	for rows.Next() {
		var day time.Time
		var d DaySales
		if err := rows.Scan(&day, &d.RevenueCents, &d.TicketsSold); err != nil {
			h.logger.Error("dashboard series scan", zap.Error(err))
			response.Internal(c, "failed to load dashboard")
			return
		}
		d.Date = day.Format("2006-01-02")
		out.Last7Days = append(out.Last7Days, d)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("dashboard series rows", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}

	response.OK(c, out)
}

// PlatformResponse is the admin dashboard payload. Platform revenue is the
// fee cut of gross completed sales.
type PlatformResponse struct {
	GrossSalesCents      int `json:"grossSalesCents"`
	PlatformRevenueCents int `json:"platformRevenueCents"`
	TotalOrganizers      int `json:"totalOrganizers"`
	ActiveOrganizers     int `json:"activeOrganizers"`
	PendingOrganizers    int `json:"pendingOrganizers"`
	TotalEvents          int `json:"totalEvents"`
	ActiveEvents         int `json:"activeEvents"`
	TotalTicketsSold     int `json:"totalTicketsSold"`
	TotalTransactions    int `json:"totalTransactions"`
}

// Platform handles GET /admin/dashboard (admin only).
func (h *Handler) Platform(c *gin.Context) {
	ctx := c.Request.Context()
	var out PlatformResponse

	const txQ = `SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(quantity) FILTER (WHERE status = 'completed'), 0),
			COUNT(*)
		FROM transactions`
	if err := h.pool.QueryRow(ctx, txQ).Scan(&out.GrossSalesCents, &out.TotalTicketsSold, &out.TotalTransactions); err != nil {
		h.logger.Error("platform transactions", zap.Error(err))
		response.Internal(c, "failed to load platform stats")
		return
	}
	out.PlatformRevenueCents = out.GrossSalesCents * PlatformFeePercent / 100

	const orgQ = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM users WHERE role = 'organizer'`
	if err := h.pool.QueryRow(ctx, orgQ).Scan(&out.TotalOrganizers, &out.ActiveOrganizers, &out.PendingOrganizers); err != nil {
		h.logger.Error("platform organizers", zap.Error(err))
		response.Internal(c, "failed to load platform stats")
		return
	}

	const eventsQ = `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'active') FROM events`
	if err := h.pool.QueryRow(ctx, eventsQ).Scan(&out.TotalEvents, &out.ActiveEvents); err != nil {
		h.logger.Error("platform events", zap.Error(err))
		response.Internal(c, "failed to load platform stats")
		return
	}

	response.OK(c, out)
}
