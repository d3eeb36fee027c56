package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"fyp-inbox/internal/db"
	"fyp-inbox/internal/domain"
)

// NotificationRepository define el contrato de persistencia del inbox.
// Todas las operaciones por id estan acotadas al destinatario.
type NotificationRepository interface {
	// Create inserta la notificacion. Devuelve false si ya existia una con la
	// misma clave de deduplicacion para ese destinatario.
	Create(ctx context.Context, n domain.Notification) (bool, error)
	ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) error
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type PgNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgNotificationRepository(pool *pgxpool.Pool) *PgNotificationRepository {
	return &PgNotificationRepository{pool: pool}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n domain.Notification) (bool, error) {
	const query = `
		INSERT INTO notifications (id, recipient_id, message, link, read, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (recipient_id, dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
	`

	var link, dedupKey interface{}
	if n.Link != "" {
		link = n.Link
	}
	if n.DedupKey != "" {
		dedupKey = n.DedupKey
	}

	tag, err := r.pool.Exec(ctx, query,
		n.ID,
		n.RecipientID,
		n.Message,
		link,
		n.Read,
		dedupKey,
		n.CreatedAt,
	)
	if err != nil {
		return false, db.Classify("create notification", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool) ([]domain.Notification, error) {
	const query = `
		SELECT id, recipient_id, message, link, read, dedup_key, created_at
		FROM notifications
		WHERE recipient_id = $1
		  AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, recipientID, onlyUnread)
	if err != nil {
		return nil, db.Classify("list notifications", err)
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n        domain.Notification
			link     *string
			dedupKey *string
		)
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Message,
			&link,
			&n.Read,
			&dedupKey,
			&n.CreatedAt,
		); err != nil {
			return nil, db.Classify("scan notification", err)
		}
		if link != nil {
			n.Link = *link
		}
		if dedupKey != nil {
			n.DedupKey = *dedupKey
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("list notifications", err)
	}
	return notifications, nil
}

// MarkRead es idempotente: marcar dos veces no es error, pero si la fila no
// pertenece al destinatario devuelve domain.ErrNotFound.
func (r *PgNotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	const query = `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return db.Classify("mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notification read: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PgNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	const query = `
		UPDATE notifications
		SET read = TRUE
		WHERE recipient_id = $1 AND read = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, recipientID)
	if err != nil {
		return 0, db.Classify("mark all notifications read", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgNotificationRepository) Delete(ctx context.Context, id, recipientID string) error {
	const query = `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return db.Classify("delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete notification: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PgNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`
	var n int
	if err := r.pool.QueryRow(ctx, query, recipientID).Scan(&n); err != nil {
		return 0, db.Classify("count unread notifications", err)
	}
	return n, nil
}
