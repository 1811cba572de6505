package tickets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheger-events/backend/internal/models"
)

var (
	// ErrQuantityBelowSold is returned when an update would shrink quantity below sold.
	ErrQuantityBelowSold = errors.New("quantity cannot be lower than tickets already sold")
	// ErrTicketsAlreadySold is returned when deleting a ticket tier with recorded sales.
	ErrTicketsAlreadySold = errors.New("ticket tier has recorded sales")
)

// CreateParams holds the fields for inserting a new ticket tier.
type CreateParams struct {
	EventID     uuid.UUID
	OrganizerID uuid.UUID
	TicketType  string
	PriceCents  int
	Quantity    int
}

// UpdateParams holds optional fields for a partial ticket update.
type UpdateParams struct {
	TicketType *string
	PriceCents *int
	Quantity   *int
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	OrganizerID uuid.UUID
	EventID     uuid.UUID
}

// Store is the ticket directory contract consumed by handlers.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	Create(ctx context.Context, params CreateParams) (*models.Ticket, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Ticket, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter) ([]models.Ticket, error)
}

const ticketColumns = `id, event_id, organizer_id, ticket_type, price_cents, quantity, sold, created_at`

// Repository handles ticket persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a ticket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(&t.ID, &t.EventID, &t.OrganizerID, &t.TicketType,
		&t.PriceCents, &t.Quantity, &t.Sold, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// FindByID returns a ticket by ID, or nil when unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(r.pool.QueryRow(ctx, q, id))
}

// Create inserts a new ticket tier with zero sold.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*models.Ticket, error) {
	q := `INSERT INTO tickets (event_id, organizer_id, ticket_type, price_cents, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, q,
		params.EventID, params.OrganizerID, params.TicketType, params.PriceCents, params.Quantity))
}

// Update merges the provided fields. A quantity below the current sold count
// is rejected with ErrQuantityBelowSold; the guard runs in the statement so
// it holds under concurrent sales. Returns nil when the id is unknown.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Ticket, error) {
	q := `UPDATE tickets SET
			ticket_type = COALESCE($2, ticket_type),
			price_cents = COALESCE($3, price_cents),
			quantity = COALESCE($4, quantity)
		WHERE id = $1 AND ($4::int IS NULL OR $4 >= sold)
		RETURNING ` + ticketColumns
	t, err := scanTicket(r.pool.QueryRow(ctx, q, id, params.TicketType, params.PriceCents, params.Quantity))
	if err != nil {
		return nil, err
	}
	if t == nil && params.Quantity != nil {
		// Distinguish "unknown id" from "quantity guard failed".
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrQuantityBelowSold
		}
	}
	return t, nil
}

// Delete removes a ticket tier. Tiers with any sales are kept and return
// ErrTicketsAlreadySold.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id = $1 AND sold = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrTicketsAlreadySold
		}
	}
	return nil
}

// List returns tickets matching the filter, oldest first (creation order
// mirrors the tier ordering organizers set up).
func (r *Repository) List(ctx context.Context, filter Filter) ([]models.Ticket, error) {
	q := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)
		AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $2)
		ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, filter.OrganizerID, filter.EventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.OrganizerID, &t.TicketType,
			&t.PriceCents, &t.Quantity, &t.Sold, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
