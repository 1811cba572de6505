package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheger-events/backend/internal/models"
)

var (
	// ErrDuplicateIdentifier is returned when the email or phone is already registered.
	ErrDuplicateIdentifier = errors.New("email or phone already registered")
)

// CreateParams holds the fields for inserting a new user.
type CreateParams struct {
	Email         string
	Phone         *string
	PasswordHash  string
	Role          models.Role
	Name          string
	BusinessName  string
	Status        models.Status
	EmailVerified bool
}

// UpdateParams holds optional fields for a partial user update.
type UpdateParams struct {
	Name         *string
	BusinessName *string
	Phone        *string
	PasswordHash *string
}

// ListFilter narrows List results.
type ListFilter struct {
	Role   models.Role   // empty = all roles
	Status models.Status // empty = all statuses
}

// Store is the user directory contract consumed by handlers.
type Store interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, params CreateParams) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.User, error)
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.User, error)
	List(ctx context.Context, filter ListFilter) ([]models.User, error)
}

const userColumns = `id, email, phone, password_hash, role,
	COALESCE(name,''), COALESCE(business_name,''), status, email_verified, created_at, updated_at`

// Repository handles user persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.Password, &u.Role,
		&u.Name, &u.BusinessName, &u.Status, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindByIdentifier returns the user whose email or phone exactly matches, or nil.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR phone = $1`
	return scanUser(r.pool.QueryRow(ctx, q, identifier))
}

// FindByID returns a user by ID, or nil when unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// Create inserts a new user. Email and phone collisions return ErrDuplicateIdentifier.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*models.User, error) {
	q := `INSERT INTO users (email, phone, password_hash, role, name, business_name, status, email_verified)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7, $8)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q,
		params.Email, params.Phone, params.PasswordHash, string(params.Role),
		params.Name, params.BusinessName, string(params.Status), params.EmailVerified))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	return u, nil
}

// Update merges the provided fields and refreshes updated_at. Returns nil when the id is unknown.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.User, error) {
	q := `UPDATE users SET
			name = COALESCE($2, name),
			business_name = COALESCE($3, business_name),
			phone = COALESCE($4, phone),
			password_hash = COALESCE($5, password_hash),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, id, params.Name, params.BusinessName, params.Phone, params.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateIdentifier
		}
		return nil, err
	}
	return u, nil
}

// UpdateStatus sets the account status and refreshes updated_at. Returns nil when the id is unknown.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.User, error) {
	q := `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, string(status)))
}

// SetEmailVerified marks the account's email verification state.
func (r *Repository) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.User, error) {
	q := `UPDATE users SET email_verified = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, verified))
}

// List returns users matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ($1 = '' OR role = $1) AND ($2 = '' OR status = $2) ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, string(filter.Role), string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Phone, &u.Password, &u.Role,
			&u.Name, &u.BusinessName, &u.Status, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
