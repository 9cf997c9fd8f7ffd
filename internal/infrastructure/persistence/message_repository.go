package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const messageColumns = `id, organization_id, conversation_id, sender, sender_id, content, content_type, media_url,
	status, external_id, created_at`

// MessageRepository stores conversation messages
type MessageRepository struct {
	baseRepository
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{baseRepository{db: db}}
}

func scanMessage(s rowScanner) (*models.Message, error) {
	var m models.Message
	var status string
	var senderID, mediaURL, externalID sql.NullString
	err := s.Scan(&m.ID, &m.OrganizationID, &m.ConversationID, &m.Sender, &senderID, &m.Content,
		&m.ContentType, &mediaURL, &status, &externalID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = models.MessageStatus(status)
	m.SenderID = nullableString(senderID)
	m.MediaURL = nullableString(mediaURL)
	m.ExternalID = nullableString(externalID)
	return &m, nil
}

func (r *MessageRepository) queryMessage(ctx context.Context, query string, args ...interface{}) (*models.Message, error) {
	m, err := scanMessage(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListByConversation returns messages in chronological order
func (r *MessageRepository) ListByConversation(ctx context.Context, orgID, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND conversation_id = ? ORDER BY created_at ASC`,
		messageColumns, constants.TableMessage)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Create inserts a message
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableMessage, messageColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, m.ID, m.OrganizationID, m.ConversationID, m.Sender, m.SenderID,
		m.Content, m.ContentType, m.MediaURL, string(m.Status), m.ExternalID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetByID loads a message
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, messageColumns, constants.TableMessage)
	return r.queryMessage(ctx, query, id)
}

// FindByExternalID loads a message by the provider's id
func (r *MessageRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE external_id = ? LIMIT 1`, messageColumns, constants.TableMessage)
	return r.queryMessage(ctx, query, externalID)
}

// UpdateStatus sets the delivery status
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ? WHERE id = ?`, constants.TableMessage)
	_, err := r.conn(ctx).ExecContext(ctx, query, string(status), id)
	return err
}
