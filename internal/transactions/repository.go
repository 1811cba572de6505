package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheger-events/backend/internal/models"
)

var (
	// ErrEventNotActive is returned when purchasing against a non-active event.
	ErrEventNotActive = errors.New("event is not active")
	// ErrTicketMismatch is returned when the ticket does not belong to the event.
	ErrTicketMismatch = errors.New("ticket does not belong to this event")
	// ErrInsufficientInventory is returned when fewer tickets remain than requested.
	ErrInsufficientInventory = errors.New("not enough tickets available")
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("invalid transaction status transition")
)

// PurchaseParams holds the fields of a public checkout request.
type PurchaseParams struct {
	EventID       uuid.UUID
	TicketID      uuid.UUID
	CustomerEmail string
	CustomerName  string
	Quantity      int
	PaymentMethod string
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	OrganizerID   uuid.UUID
	EventID       uuid.UUID
	Status        models.TransactionStatus
	PaymentMethod string
	Page          int
	Limit         int
}

// Store is the transaction directory contract consumed by handlers.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Purchase(ctx context.Context, params PurchaseParams) (*models.Transaction, error)
	Transition(ctx context.Context, id uuid.UUID, to models.TransactionStatus) (*models.Transaction, error)
	List(ctx context.Context, filter Filter) ([]models.Transaction, int, error)
}

const txColumns = `id, event_id, organizer_id, ticket_id, customer_email, customer_name,
	quantity, amount_cents, status, payment_method, created_at, updated_at`

// Repository handles transaction persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a transaction repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.EventID, &t.OrganizerID, &t.TicketID, &t.CustomerEmail,
		&t.CustomerName, &t.Quantity, &t.AmountCents, &t.Status, &t.PaymentMethod,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// FindByID returns a transaction by ID, or nil when unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, q, id))
}

// Purchase reserves inventory and records a pending transaction in a single
// database transaction. The ticket row is locked for the duration so two
// concurrent purchases of the last seats cannot both succeed; the sold
// increment carries a guard that re-checks capacity at write time.
func (r *Repository) Purchase(ctx context.Context, params PurchaseParams) (*models.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		ticketEventID uuid.UUID
		organizerID   uuid.UUID
		priceCents    int
		quantity      int
		sold          int
		eventStatus   string
	)
	err = tx.QueryRow(ctx, `SELECT t.event_id, t.organizer_id, t.price_cents, t.quantity, t.sold, e.status
		FROM tickets t JOIN events e ON e.id = t.event_id
		WHERE t.id = $1 FOR UPDATE OF t`, params.TicketID).
		Scan(&ticketEventID, &organizerID, &priceCents, &quantity, &sold, &eventStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if ticketEventID != params.EventID {
		return nil, ErrTicketMismatch
	}
	if eventStatus != string(models.EventStatusActive) {
		return nil, ErrEventNotActive
	}

	tag, err := tx.Exec(ctx, `UPDATE tickets SET sold = sold + $2
		WHERE id = $1 AND sold + $2 <= quantity`, params.TicketID, params.Quantity)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInsufficientInventory
	}

	amount := priceCents * params.Quantity
	created, err := scanTransaction(tx.QueryRow(ctx, `INSERT INTO transactions
		(event_id, organizer_id, ticket_id, customer_email, customer_name, quantity, amount_cents, status, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING `+txColumns,
		params.EventID, organizerID, params.TicketID, params.CustomerEmail,
		params.CustomerName, params.Quantity, amount, params.PaymentMethod))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}
	return created, nil
}

// Transition applies a status change. Allowed moves are pending to completed
// or failed, and completed to refunded; anything else returns
// ErrInvalidTransition. A refund releases the reserved inventory in the same
// database transaction, floored at zero. Returns nil when the id is unknown.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, to models.TransactionStatus) (*models.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanTransaction(tx.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	if !models.ValidTransactionTransition(current.Status, to) {
		return nil, ErrInvalidTransition
	}

	if to == models.TransactionStatusRefunded {
		_, err = tx.Exec(ctx, `UPDATE tickets SET sold = GREATEST(sold - $2, 0) WHERE id = $1`,
			current.TicketID, current.Quantity)
		if err != nil {
			return nil, err
		}
	}

	updated, err := scanTransaction(tx.QueryRow(ctx,
		`UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+txColumns,
		id, string(to)))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return updated, nil
}

// List returns transactions matching the filter, newest first, with the unpaged total.
func (r *Repository) List(ctx context.Context, filter Filter) ([]models.Transaction, int, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	where := `WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)
		AND ($2 = '00000000-0000-0000-0000-000000000000'::uuid OR event_id = $2)
		AND ($3 = '' OR status = $3)
		AND ($4 = '' OR payment_method = $4)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions `+where,
		filter.OrganizerID, filter.EventID, string(filter.Status), filter.PaymentMethod).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + txColumns + ` FROM transactions ` + where + `
		ORDER BY created_at DESC LIMIT $5 OFFSET $6`
	rows, err := r.pool.Query(ctx, q, filter.OrganizerID, filter.EventID,
		string(filter.Status), filter.PaymentMethod, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.EventID, &t.OrganizerID, &t.TicketID, &t.CustomerEmail,
			&t.CustomerName, &t.Quantity, &t.AmountCents, &t.Status, &t.PaymentMethod,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
