package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const (
	emailContactColumns  = "id, organization_id, email, first_name, last_name, source, source_id, subscription_status, brevo_id, sync_status, created_at, updated_at"
	emailCampaignColumns = `id, organization_id, name, subject, html_content, template_id, list_ids, status, scheduled_at, sent_at,
	brevo_campaign_id, stat_delivered, stat_opened, stat_clicked, stat_bounced, stat_spam, stat_unsubscribed,
	created_by, created_at, updated_at`
	emailTemplateColumns = "id, organization_id, name, subject, html_content, category, created_by, created_at, updated_at"
	emailEventColumns    = "id, organization_id, contact_id, campaign_id, email, event_type, raw_event, link, reason, metadata, occurred_at, created_at"
)

// campaignStatColumns maps normalized event types to counter columns
var campaignStatColumns = map[string]string{
	models.EmailEventDelivered:    "stat_delivered",
	models.EmailEventOpened:       "stat_opened",
	models.EmailEventClicked:      "stat_clicked",
	models.EmailEventBounced:      "stat_bounced",
	models.EmailEventSpam:         "stat_spam",
	models.EmailEventUnsubscribed: "stat_unsubscribed",
}

// EmailRepository stores the e-mail marketing aggregate
type EmailRepository struct {
	baseRepository
}

var _ ports.EmailRepository = (*EmailRepository)(nil)

// NewEmailRepository creates a new EmailRepository
func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{baseRepository{db: db}}
}

// ---- contacts ----

func scanEmailContact(s rowScanner) (*models.EmailContact, error) {
	var c models.EmailContact
	var first, last, sourceID, brevoID sql.NullString
	err := s.Scan(&c.ID, &c.OrganizationID, &c.Email, &first, &last, &c.Source, &sourceID, &c.Status,
		&brevoID, &c.SyncStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.FirstName = nullableString(first)
	c.LastName = nullableString(last)
	c.SourceID = nullableString(sourceID)
	c.BrevoID = nullableString(brevoID)
	return &c, nil
}

func (r *EmailRepository) queryContact(ctx context.Context, query string, args ...interface{}) (*models.EmailContact, error) {
	c, err := scanEmailContact(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// UpsertContact inserts a contact or refreshes the existing one with the same
// e-mail. The subscription status of an existing contact is preserved.
func (r *EmailRepository) UpsertContact(ctx context.Context, c *models.EmailContact) (bool, error) {
	existing, err := r.GetContactByEmail(ctx, c.OrganizationID, c.Email)
	if err != nil {
		return false, err
	}

	if existing != nil {
		query := fmt.Sprintf(`UPDATE %s SET first_name = ?, last_name = ?, source = ?, source_id = ?, brevo_id = ?,
			sync_status = ?, updated_at = ? WHERE id = ?`, constants.TableEmailContact)
		brevoID := c.BrevoID
		if brevoID == nil {
			brevoID = existing.BrevoID
		}
		if _, err := r.conn(ctx).ExecContext(ctx, query, c.FirstName, c.LastName, c.Source, c.SourceID, brevoID,
			c.SyncStatus, c.UpdatedAt, existing.ID); err != nil {
			return false, fmt.Errorf("failed to update email contact: %w", err)
		}
		c.ID = existing.ID
		c.Status = existing.Status
		c.BrevoID = brevoID
		c.CreatedAt = existing.CreatedAt
		return false, nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableEmailContact, emailContactColumns)
	if _, err := r.conn(ctx).ExecContext(ctx, query, c.ID, c.OrganizationID, c.Email, c.FirstName, c.LastName,
		c.Source, c.SourceID, c.Status, c.BrevoID, c.SyncStatus, c.CreatedAt, c.UpdatedAt); err != nil {
		return false, fmt.Errorf("failed to insert email contact: %w", err)
	}
	return true, nil
}

// GetContact loads a contact
func (r *EmailRepository) GetContact(ctx context.Context, orgID, id string) (*models.EmailContact, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, emailContactColumns, constants.TableEmailContact)
	return r.queryContact(ctx, query, orgID, id)
}

// GetContactByEmail loads a contact by case-insensitive e-mail
func (r *EmailRepository) GetContactByEmail(ctx context.Context, orgID, email string) (*models.EmailContact, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND LOWER(email) = LOWER(?)`, emailContactColumns, constants.TableEmailContact)
	return r.queryContact(ctx, query, orgID, email)
}

// ListContacts pages through contacts, optionally by subscription status
func (r *EmailRepository) ListContacts(ctx context.Context, orgID, status string, offset, limit int) ([]models.EmailContact, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ?`, emailContactColumns, constants.TableEmailContact)
	args := []interface{}{orgID}
	if status != "" {
		query += " AND subscription_status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query email contacts: %w", err)
	}
	defer rows.Close()

	out := []models.EmailContact{}
	for rows.Next() {
		c, err := scanEmailContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateContactSubscription sets the subscription status
func (r *EmailRepository) UpdateContactSubscription(ctx context.Context, orgID, id, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET subscription_status = ?, updated_at = ? WHERE organization_id = ? AND id = ?`, constants.TableEmailContact)
	_, err := r.conn(ctx).ExecContext(ctx, query, status, time.Now().UTC(), orgID, id)
	return err
}

// UnsubscribeByEmail unsubscribes a contact by e-mail
func (r *EmailRepository) UnsubscribeByEmail(ctx context.Context, orgID, email string) error {
	query := fmt.Sprintf(`UPDATE %s SET subscription_status = ?, updated_at = ? WHERE organization_id = ? AND LOWER(email) = LOWER(?)`,
		constants.TableEmailContact)
	_, err := r.conn(ctx).ExecContext(ctx, query, models.SubscriptionUnsubscribed, time.Now().UTC(), orgID, email)
	return err
}

// ---- lists ----

func (r *EmailRepository) listQuery() string {
	return fmt.Sprintf(`SELECT l.id, l.organization_id, l.name, l.description,
		(SELECT COUNT(*) FROM %s lc WHERE lc.list_id = l.id), l.created_at, l.updated_at
		FROM %s l`, constants.TableEmailListContact, constants.TableEmailList)
}

func scanEmailList(s rowScanner) (*models.EmailList, error) {
	var l models.EmailList
	var description sql.NullString
	if err := s.Scan(&l.ID, &l.OrganizationID, &l.Name, &description, &l.ContactCount, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Description = nullableString(description)
	return &l, nil
}

// ListLists returns lists with their contact counts
func (r *EmailRepository) ListLists(ctx context.Context, orgID string) ([]models.EmailList, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, r.listQuery()+" WHERE l.organization_id = ? ORDER BY l.name", orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query email lists: %w", err)
	}
	defer rows.Close()

	out := []models.EmailList{}
	for rows.Next() {
		l, err := scanEmailList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// GetList loads a list
func (r *EmailRepository) GetList(ctx context.Context, orgID, id string) (*models.EmailList, error) {
	l, err := scanEmailList(r.conn(ctx).QueryRowContext(ctx, r.listQuery()+" WHERE l.organization_id = ? AND l.id = ?", orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// CreateList inserts a list
func (r *EmailRepository) CreateList(ctx context.Context, l *models.EmailList) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		constants.TableEmailList)
	_, err := r.conn(ctx).ExecContext(ctx, query, l.ID, l.OrganizationID, l.Name, l.Description, l.CreatedAt, l.UpdatedAt)
	return err
}

// UpdateList renames or re-describes a list
func (r *EmailRepository) UpdateList(ctx context.Context, l *models.EmailList) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, description = ?, updated_at = ? WHERE organization_id = ? AND id = ?`, constants.TableEmailList)
	_, err := r.conn(ctx).ExecContext(ctx, query, l.Name, l.Description, l.UpdatedAt, l.OrganizationID, l.ID)
	return err
}

// DeleteList removes a list and its memberships
func (r *EmailRepository) DeleteList(ctx context.Context, orgID, id string) error {
	exec := r.conn(ctx)
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE list_id = ?`, constants.TableEmailListContact), id); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableEmailList), orgID, id)
	return err
}

// AddContactToList adds a membership; adding twice is a no-op
func (r *EmailRepository) AddContactToList(ctx context.Context, listID, contactID string) error {
	query := fmt.Sprintf(`INSERT IGNORE INTO %s (list_id, contact_id, created_at) VALUES (?, ?, ?)`, constants.TableEmailListContact)
	_, err := r.conn(ctx).ExecContext(ctx, query, listID, contactID, time.Now().UTC())
	return err
}

// RemoveContactFromList deletes a membership
func (r *EmailRepository) RemoveContactFromList(ctx context.Context, listID, contactID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE list_id = ? AND contact_id = ?`, constants.TableEmailListContact)
	_, err := r.conn(ctx).ExecContext(ctx, query, listID, contactID)
	return err
}

// ---- campaigns ----

func scanEmailCampaign(s rowScanner) (*models.EmailCampaign, error) {
	var c models.EmailCampaign
	var html, templateID, listIDs, brevoID sql.NullString
	var scheduledAt, sentAt sql.NullTime
	err := s.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Subject, &html, &templateID, &listIDs, &c.Status,
		&scheduledAt, &sentAt, &brevoID, &c.Stats.Delivered, &c.Stats.Opened, &c.Stats.Clicked,
		&c.Stats.Bounced, &c.Stats.Spam, &c.Stats.Unsubscribed, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.HTMLContent = nullableString(html)
	c.TemplateID = nullableString(templateID)
	c.ListIDs = stringList(listIDs)
	c.ScheduledAt = nullableTime(scheduledAt)
	c.SentAt = nullableTime(sentAt)
	c.BrevoCampaignID = nullableString(brevoID)
	return &c, nil
}

// ListCampaigns returns campaigns, optionally by status
func (r *EmailRepository) ListCampaigns(ctx context.Context, orgID, status string) ([]models.EmailCampaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ?`, emailCampaignColumns, constants.TableEmailCampaign)
	args := []interface{}{orgID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	out := []models.EmailCampaign{}
	for rows.Next() {
		c, err := scanEmailCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCampaign loads a campaign
func (r *EmailRepository) GetCampaign(ctx context.Context, orgID, id string) (*models.EmailCampaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, emailCampaignColumns, constants.TableEmailCampaign)
	c, err := scanEmailCampaign(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// CreateCampaign inserts a campaign
func (r *EmailRepository) CreateCampaign(ctx context.Context, c *models.EmailCampaign) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableEmailCampaign, emailCampaignColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.ID, c.OrganizationID, c.Name, c.Subject, c.HTMLContent,
		c.TemplateID, toJSON(c.ListIDs), c.Status, c.ScheduledAt, c.SentAt, c.BrevoCampaignID, c.Stats.Delivered,
		c.Stats.Opened, c.Stats.Clicked, c.Stats.Bounced, c.Stats.Spam, c.Stats.Unsubscribed, c.CreatedBy,
		c.CreatedAt, c.UpdatedAt)
	return err
}

// UpdateCampaign writes the editable and delivery columns
func (r *EmailRepository) UpdateCampaign(ctx context.Context, c *models.EmailCampaign) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, subject = ?, html_content = ?, template_id = ?, list_ids = ?,
		status = ?, scheduled_at = ?, sent_at = ?, brevo_campaign_id = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableEmailCampaign)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.Name, c.Subject, c.HTMLContent, c.TemplateID, toJSON(c.ListIDs),
		c.Status, c.ScheduledAt, c.SentAt, c.BrevoCampaignID, c.UpdatedAt, c.OrganizationID, c.ID)
	return err
}

// DeleteCampaign removes a campaign
func (r *EmailRepository) DeleteCampaign(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableEmailCampaign)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, id)
	return err
}

// IncrementCampaignStat bumps the counter for a normalized event type
func (r *EmailRepository) IncrementCampaignStat(ctx context.Context, campaignID, eventType string) error {
	column, ok := campaignStatColumns[eventType]
	if !ok {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = %s + 1 WHERE id = ?`, constants.TableEmailCampaign, column, column)
	_, err := r.conn(ctx).ExecContext(ctx, query, campaignID)
	return err
}

// ---- templates ----

func scanEmailTemplate(s rowScanner) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	var category sql.NullString
	if err := s.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Subject, &t.HTMLContent, &category, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Category = nullableString(category)
	return &t, nil
}

// ListTemplates returns templates by name
func (r *EmailRepository) ListTemplates(ctx context.Context, orgID string) ([]models.EmailTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY name`, emailTemplateColumns, constants.TableEmailTemplate)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	out := []models.EmailTemplate{}
	for rows.Next() {
		t, err := scanEmailTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTemplate loads a template
func (r *EmailRepository) GetTemplate(ctx context.Context, orgID, id string) (*models.EmailTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, emailTemplateColumns, constants.TableEmailTemplate)
	t, err := scanEmailTemplate(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// CreateTemplate inserts a template
func (r *EmailRepository) CreateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableEmailTemplate, emailTemplateColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, t.ID, t.OrganizationID, t.Name, t.Subject, t.HTMLContent,
		t.Category, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

// UpdateTemplate writes the editable columns
func (r *EmailRepository) UpdateTemplate(ctx context.Context, t *models.EmailTemplate) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, subject = ?, html_content = ?, category = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableEmailTemplate)
	_, err := r.conn(ctx).ExecContext(ctx, query, t.Name, t.Subject, t.HTMLContent, t.Category, t.UpdatedAt,
		t.OrganizationID, t.ID)
	return err
}

// DeleteTemplate removes a template
func (r *EmailRepository) DeleteTemplate(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableEmailTemplate)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, id)
	return err
}

// ---- events ----

// CreateEvent inserts a delivery event
func (r *EmailRepository) CreateEvent(ctx context.Context, e *models.EmailEvent) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableEmailEvent, emailEventColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, e.ID, e.OrganizationID, e.ContactID, e.CampaignID, e.Email,
		e.EventType, e.RawEvent, e.Link, e.Reason, toJSON(e.Metadata), e.OccurredAt, e.CreatedAt)
	return err
}

// ListEventsByCampaign returns a campaign's events, newest first
func (r *EmailRepository) ListEventsByCampaign(ctx context.Context, orgID, campaignID string, limit int) ([]models.EmailEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND campaign_id = ? ORDER BY occurred_at DESC LIMIT ?`,
		emailEventColumns, constants.TableEmailEvent)
	return r.queryEvents(ctx, query, orgID, campaignID, limit)
}

// ListEventsByContact returns a contact's events, newest first
func (r *EmailRepository) ListEventsByContact(ctx context.Context, orgID, contactID string, limit int) ([]models.EmailEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND contact_id = ? ORDER BY occurred_at DESC LIMIT ?`,
		emailEventColumns, constants.TableEmailEvent)
	return r.queryEvents(ctx, query, orgID, contactID, limit)
}

func (r *EmailRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]models.EmailEvent, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query email events: %w", err)
	}
	defer rows.Close()

	out := []models.EmailEvent{}
	for rows.Next() {
		var e models.EmailEvent
		var contactID, campaignID, link, reason, metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &contactID, &campaignID, &e.Email, &e.EventType,
			&e.RawEvent, &link, &reason, &metadata, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ContactID = nullableString(contactID)
		e.CampaignID = nullableString(campaignID)
		e.Link = nullableString(link)
		e.Reason = nullableString(reason)
		fromJSON(metadata, &e.Metadata)
		out = append(out, e)
	}
	return out, rows.Err()
}
