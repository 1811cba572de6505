package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sheger-events/backend/internal/models"
)

// RecordParams holds the outcome of one delivery attempt.
type RecordParams struct {
	RecipientEmail string
	EmailType      string
	Subject        string
	Status         string
	ErrorMessage   string
	SentAt         *time.Time
}

// LogStore is the email log contract consumed by the processor and handler.
type LogStore interface {
	Record(ctx context.Context, params RecordParams) error
	List(ctx context.Context, page, limit int) ([]models.EmailLog, int, error)
}

// Repository handles email_logs persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one delivery attempt.
func (r *Repository) Record(ctx context.Context, params RecordParams) error {
	const q = `INSERT INTO email_logs (recipient_email, email_type, subject, status, error_message, sent_at)
		VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), $6)`
	_, err := r.pool.Exec(ctx, q, params.RecipientEmail, params.EmailType,
		params.Subject, params.Status, params.ErrorMessage, params.SentAt)
	return err
}

// List returns email logs, newest first, with the unpaged total.
func (r *Repository) List(ctx context.Context, page, limit int) ([]models.EmailLog, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM email_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `SELECT id, recipient_email, email_type, COALESCE(subject,''), status,
			COALESCE(error_message,''), sent_at, created_at
		FROM email_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.RecipientEmail, &el.EmailType, &el.Subject,
			&el.Status, &el.ErrorMessage, &el.SentAt, &el.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, el)
	}
	return list, total, rows.Err()
}
