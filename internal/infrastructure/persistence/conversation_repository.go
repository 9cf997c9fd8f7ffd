package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

// ConversationRepository stores conversations. Listings resolve the contact
// name from the linked lead or student.
type ConversationRepository struct {
	baseRepository
}

var _ ports.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{baseRepository{db: db}}
}

const conversationColumns = `c.id, c.organization_id, c.lead_id, c.student_id, c.channel, c.department, c.status,
	c.assigned_to, c.external_id, c.last_message, c.last_message_at, c.unread_count, c.satisfaction_score,
	c.created_at, c.updated_at, COALESCE(s.name, l.name, '')`

func conversationFrom() string {
	return fmt.Sprintf(`%s c LEFT JOIN %s l ON l.id = c.lead_id LEFT JOIN %s s ON s.id = c.student_id`,
		constants.TableConversation, constants.TableLead, constants.TableStudent)
}

func scanConversation(s rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	var status string
	var leadID, studentID, assignedTo, externalID, lastMessage sql.NullString
	var lastMessageAt sql.NullTime
	var satisfaction sql.NullInt64

	err := s.Scan(&c.ID, &c.OrganizationID, &leadID, &studentID, &c.Channel, &c.Department, &status,
		&assignedTo, &externalID, &lastMessage, &lastMessageAt, &c.UnreadCount, &satisfaction,
		&c.CreatedAt, &c.UpdatedAt, &c.ContactName)
	if err != nil {
		return nil, err
	}
	c.Status = models.ConversationStatus(status)
	c.LeadID = nullableString(leadID)
	c.StudentID = nullableString(studentID)
	c.AssignedTo = nullableString(assignedTo)
	c.ExternalID = nullableString(externalID)
	c.LastMessage = nullableString(lastMessage)
	c.LastMessageAt = nullableTime(lastMessageAt)
	c.SatisfactionScore = nullableInt(satisfaction)
	return &c, nil
}

func (r *ConversationRepository) queryConversations(ctx context.Context, query string, args ...interface{}) ([]models.Conversation, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	out := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// List filters conversations, most recently active first
func (r *ConversationRepository) List(ctx context.Context, filter models.ConversationFilter) ([]models.Conversation, error) {
	where := []string{"c.organization_id = ?"}
	args := []interface{}{filter.OrganizationID}

	if filter.Department != "" {
		where = append(where, "c.department = ?")
		args = append(args, filter.Department)
	}
	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, string(filter.Status))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := likePattern(q)
		where = append(where, "(LOWER(l.name) LIKE ? OR LOWER(s.name) LIKE ? OR LOWER(c.last_message) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY COALESCE(c.last_message_at, c.created_at) DESC LIMIT ?`,
		conversationColumns, conversationFrom(), strings.Join(where, " AND "))
	return r.queryConversations(ctx, query, args...)
}

// GetByID loads a conversation
func (r *ConversationRepository) GetByID(ctx context.Context, orgID, id string) (*models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE c.organization_id = ? AND c.id = ?`, conversationColumns, conversationFrom())
	c, err := scanConversation(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListByStudent returns a student's conversations
func (r *ConversationRepository) ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE c.organization_id = ? AND c.student_id = ? ORDER BY c.created_at DESC`,
		conversationColumns, conversationFrom())
	return r.queryConversations(ctx, query, orgID, studentID)
}

// ListByLead returns a lead's conversations
func (r *ConversationRepository) ListByLead(ctx context.Context, orgID, leadID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE c.organization_id = ? AND c.lead_id = ? ORDER BY c.created_at DESC`,
		conversationColumns, conversationFrom())
	return r.queryConversations(ctx, query, orgID, leadID)
}

// Create inserts a conversation
func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, lead_id, student_id, channel, department, status,
		assigned_to, external_id, last_message, last_message_at, unread_count, satisfaction_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableConversation)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.ID, c.OrganizationID, c.LeadID, c.StudentID, c.Channel,
		c.Department, string(c.Status), c.AssignedTo, c.ExternalID, c.LastMessage, c.LastMessageAt,
		c.UnreadCount, c.SatisfactionScore, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// Update writes every mutable column
func (r *ConversationRepository) Update(ctx context.Context, c *models.Conversation) error {
	query := fmt.Sprintf(`UPDATE %s SET lead_id = ?, student_id = ?, channel = ?, department = ?, status = ?,
		assigned_to = ?, external_id = ?, last_message = ?, last_message_at = ?, unread_count = ?,
		satisfaction_score = ?, updated_at = ? WHERE organization_id = ? AND id = ?`, constants.TableConversation)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.LeadID, c.StudentID, c.Channel, c.Department,
		string(c.Status), c.AssignedTo, c.ExternalID, c.LastMessage, c.LastMessageAt, c.UnreadCount,
		c.SatisfactionScore, c.UpdatedAt, c.OrganizationID, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// DeleteByStudent erases a student's conversations and their messages
func (r *ConversationRepository) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	exec := r.conn(ctx)
	msgQuery := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id IN (SELECT id FROM %s WHERE student_id = ?)`,
		constants.TableMessage, constants.TableConversation)
	if _, err := exec.ExecContext(ctx, msgQuery, studentID); err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	result, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE student_id = ?`, constants.TableConversation), studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", err)
	}
	return result.RowsAffected()
}
