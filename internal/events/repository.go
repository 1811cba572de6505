package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheger-events/backend/internal/models"
)

// ErrEventHasSales is returned when deleting an event that already has transactions.
var ErrEventHasSales = errors.New("event has recorded sales")

// CreateParams holds the fields for inserting a new event.
type CreateParams struct {
	OrganizerID  uuid.UUID
	Title        string
	Description  string
	Category     string
	StartDate    time.Time
	EndDate      time.Time
	Venue        string
	VenueAddress string
}

// UpdateParams holds optional fields for a partial event update.
type UpdateParams struct {
	Title        *string
	Description  *string
	Category     *string
	StartDate    *time.Time
	EndDate      *time.Time
	Venue        *string
	VenueAddress *string
	Status       *models.EventStatus
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	OrganizerID uuid.UUID
	Status      models.EventStatus
	Category    string
	Page        int
	Limit       int
}

// Store is the event directory contract consumed by handlers.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Create(ctx context.Context, params CreateParams) (*models.Event, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Event, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.Event, error)
	SetPosterKey(ctx context.Context, id uuid.UUID, key string) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter) ([]models.Event, int, error)
}

const eventColumns = `id, organizer_id, title, description, category, start_date, end_date,
	venue, COALESCE(venue_address,''), status, approved, poster_key, created_at, updated_at`

// Repository handles event persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Category,
		&e.StartDate, &e.EndDate, &e.Venue, &e.VenueAddress, &e.Status, &e.Approved,
		&e.PosterKey, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// FindByID returns an event by ID, or nil when unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// Create inserts a new event as an unapproved draft.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*models.Event, error) {
	q := `INSERT INTO events (organizer_id, title, description, category, start_date, end_date, venue, venue_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''))
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q,
		params.OrganizerID, params.Title, params.Description, params.Category,
		params.StartDate, params.EndDate, params.Venue, params.VenueAddress))
}

// Update merges the provided fields and refreshes updated_at. Returns nil when the id is unknown.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Event, error) {
	q := `UPDATE events SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			category = COALESCE($4, category),
			start_date = COALESCE($5, start_date),
			end_date = COALESCE($6, end_date),
			venue = COALESCE($7, venue),
			venue_address = COALESCE($8, venue_address),
			status = COALESCE($9, status),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	var status *string
	if params.Status != nil {
		s := string(*params.Status)
		status = &s
	}
	return scanEvent(r.pool.QueryRow(ctx, q, id, params.Title, params.Description, params.Category,
		params.StartDate, params.EndDate, params.Venue, params.VenueAddress, status))
}

// Approve marks the event approved and activates it when still a draft.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `UPDATE events SET approved = TRUE,
			status = CASE WHEN status = 'draft' THEN 'active' ELSE status END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// Reject withdraws approval and cancels the event.
func (r *Repository) Reject(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `UPDATE events SET approved = FALSE, status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

// SetPosterKey records the S3 object key of the event poster.
func (r *Repository) SetPosterKey(ctx context.Context, id uuid.UUID, key string) (*models.Event, error) {
	q := `UPDATE events SET poster_key = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, key))
}

// Delete removes an event and its tickets. Events referenced by
// transactions cannot be deleted and return ErrEventHasSales.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrEventHasSales
		}
		return err
	}
	return nil
}

// List returns events matching the filter, newest first, with the unpaged total.
func (r *Repository) List(ctx context.Context, filter Filter) ([]models.Event, int, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	where := `WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR organizer_id = $1)
		AND ($2 = '' OR status = $2)
		AND ($3 = '' OR category = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events `+where,
		filter.OrganizerID, string(filter.Status), filter.Category).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + eventColumns + ` FROM events ` + where + `
		ORDER BY created_at DESC LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, filter.OrganizerID, string(filter.Status), filter.Category,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Category,
			&e.StartDate, &e.EndDate, &e.Venue, &e.VenueAddress, &e.Status, &e.Approved,
			&e.PosterKey, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, e)
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
