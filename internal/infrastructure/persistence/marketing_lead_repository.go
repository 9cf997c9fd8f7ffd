package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const marketingLeadColumns = `id, organization_id, name, email, phone, interest, message, lgpd_consent, whatsapp_consent,
	status, origin, company, job_role, utm_source, utm_medium, utm_campaign, utm_term, utm_content, typebot_id,
	result_id, external_timestamp, converted_lead_id, ip_address, created_at, updated_at`

// MarketingLeadRepository stores public form captures
type MarketingLeadRepository struct {
	baseRepository
}

var _ ports.MarketingLeadRepository = (*MarketingLeadRepository)(nil)

// NewMarketingLeadRepository creates a new MarketingLeadRepository
func NewMarketingLeadRepository(db *sql.DB) *MarketingLeadRepository {
	return &MarketingLeadRepository{baseRepository{db: db}}
}

func scanMarketingLead(s rowScanner) (*models.MarketingLead, error) {
	var m models.MarketingLead
	var message, company, jobRole, utmSource, utmMedium, utmCampaign, utmTerm, utmContent sql.NullString
	var typebotID, resultID, convertedID, ip sql.NullString
	var externalTS sql.NullTime
	err := s.Scan(&m.ID, &m.OrganizationID, &m.Name, &m.Email, &m.Phone, &m.Interest, &message, &m.LGPDConsent,
		&m.WhatsappConsent, &m.Status, &m.Origin, &company, &jobRole, &utmSource, &utmMedium, &utmCampaign,
		&utmTerm, &utmContent, &typebotID, &resultID, &externalTS, &convertedID, &ip, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Message = nullableString(message)
	m.Company = nullableString(company)
	m.JobRole = nullableString(jobRole)
	m.UTMSource = nullableString(utmSource)
	m.UTMMedium = nullableString(utmMedium)
	m.UTMCampaign = nullableString(utmCampaign)
	m.UTMTerm = nullableString(utmTerm)
	m.UTMContent = nullableString(utmContent)
	m.TypebotID = nullableString(typebotID)
	m.ResultID = nullableString(resultID)
	m.ExternalTimestamp = nullableTime(externalTS)
	m.ConvertedLeadID = nullableString(convertedID)
	m.IPAddress = nullableString(ip)
	return &m, nil
}

func (r *MarketingLeadRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.MarketingLead, error) {
	m, err := scanMarketingLead(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// Create inserts a capture
func (r *MarketingLeadRepository) Create(ctx context.Context, m *models.MarketingLead) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableMarketingLead, marketingLeadColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, m.ID, m.OrganizationID, m.Name, m.Email, m.Phone, m.Interest,
		m.Message, m.LGPDConsent, m.WhatsappConsent, m.Status, m.Origin, m.Company, m.JobRole, m.UTMSource,
		m.UTMMedium, m.UTMCampaign, m.UTMTerm, m.UTMContent, m.TypebotID, m.ResultID, m.ExternalTimestamp,
		m.ConvertedLeadID, m.IPAddress, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert marketing lead: %w", err)
	}
	return nil
}

// GetByID loads a capture
func (r *MarketingLeadRepository) GetByID(ctx context.Context, orgID, id string) (*models.MarketingLead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, marketingLeadColumns, constants.TableMarketingLead)
	return r.queryOne(ctx, query, orgID, id)
}

// FindByEmail returns the latest capture for an e-mail
func (r *MarketingLeadRepository) FindByEmail(ctx context.Context, orgID, email string) (*models.MarketingLead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND LOWER(email) = LOWER(?) ORDER BY created_at DESC LIMIT 1`,
		marketingLeadColumns, constants.TableMarketingLead)
	return r.queryOne(ctx, query, orgID, email)
}

// List filters captures, newest first
func (r *MarketingLeadRepository) List(ctx context.Context, filter models.MarketingLeadFilter) ([]models.MarketingLead, error) {
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Interest != "" {
		where = append(where, "interest = ?")
		args = append(args, filter.Interest)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?`,
		marketingLeadColumns, constants.TableMarketingLead, strings.Join(where, " AND "))
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query marketing leads: %w", err)
	}
	defer rows.Close()

	out := []models.MarketingLead{}
	for rows.Next() {
		m, err := scanMarketingLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateStatus sets the funnel status
func (r *MarketingLeadRepository) UpdateStatus(ctx context.Context, orgID, id, status string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE organization_id = ? AND id = ?`, constants.TableMarketingLead)
	_, err := r.conn(ctx).ExecContext(ctx, query, status, time.Now().UTC(), orgID, id)
	return err
}

// SetConverted links the capture to the CRM lead it became
func (r *MarketingLeadRepository) SetConverted(ctx context.Context, id, leadID string) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, converted_lead_id = ?, updated_at = ? WHERE id = ?`, constants.TableMarketingLead)
	_, err := r.conn(ctx).ExecContext(ctx, query, models.MarketingLeadConverted, leadID, time.Now().UTC(), id)
	return err
}
