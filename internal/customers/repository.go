package customers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Customer is an aggregated view of one buyer's completed purchases.
type Customer struct {
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	TotalSpentCents  int       `json:"totalSpentCents"`
	TicketsPurchased int       `json:"ticketsPurchased"`
	TransactionCount int       `json:"transactionCount"`
	LastPurchaseAt   time.Time `json:"lastPurchaseAt"`
}

// Filter narrows List results. A nil OrganizerID means platform-wide (admin).
type Filter struct {
	OrganizerID uuid.UUID
	Page        int
	Limit       int
}

// Store is the customer directory contract consumed by the handler.
type Store interface {
	List(ctx context.Context, filter Filter) ([]Customer, int, error)
}

// Repository aggregates customers from the transactions table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a customer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List groups completed transactions by customer email, newest purchase
// first, with the unpaged total of distinct customers.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Customer, int, error) {
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	where := `WHERE status = 'completed'
		AND ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT customer_email) FROM transactions `+where,
		filter.OrganizerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT customer_email,
			(ARRAY_AGG(customer_name ORDER BY created_at DESC))[1],
			SUM(amount_cents),
			SUM(quantity),
			COUNT(*),
			MAX(created_at)
		FROM transactions ` + where + `
		GROUP BY customer_email
		ORDER BY MAX(created_at) DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, filter.OrganizerID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Customer
	for rows.Next() {
		var cu Customer
		if err := rows.Scan(&cu.Email, &cu.Name, &cu.TotalSpentCents,
			&cu.TicketsPurchased, &cu.TransactionCount, &cu.LastPurchaseAt); err != nil {
			return nil, 0, err
		}
		list = append(list, cu)
	}
	return list, total, rows.Err()
}
