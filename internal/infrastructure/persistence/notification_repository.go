package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

// NotificationRepository stores in-app notifications
type NotificationRepository struct {
	baseRepository
}

var _ ports.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{baseRepository{db: db}}
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, recipient_id, type, title, message, link, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableNotification)
	_, err := r.conn(ctx).ExecContext(ctx, query, n.ID, n.OrganizationID, n.RecipientID, n.Type, n.Title,
		n.Message, n.Link, n.Read, n.CreatedAt)
	return err
}

// ListByRecipient returns a member's notifications, newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, orgID, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := fmt.Sprintf(`SELECT id, organization_id, recipient_id, type, title, message, link, is_read, created_at
		FROM %s WHERE organization_id = ? AND recipient_id = ?`, constants.TableNotification)
	if unreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT ?"

	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var link sql.NullString
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.RecipientID, &n.Type, &n.Title, &n.Message,
			&link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Link = nullableString(link)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead marks one notification of the recipient read; false when it does not belong to them
func (r *NotificationRepository) MarkRead(ctx context.Context, orgID, recipientID, id string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_read = TRUE WHERE organization_id = ? AND recipient_id = ? AND id = ?`,
		constants.TableNotification)
	result, err := r.conn(ctx).ExecContext(ctx, query, orgID, recipientID, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// MarkAllRead marks every unread notification of the recipient read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, orgID, recipientID string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_read = TRUE WHERE organization_id = ? AND recipient_id = ? AND is_read = FALSE`,
		constants.TableNotification)
	result, err := r.conn(ctx).ExecContext(ctx, query, orgID, recipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
