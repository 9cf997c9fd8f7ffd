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
	apperrors "github.com/gpus/backend/pkg/errors"
)

const leadColumns = `id, organization_id, name, phone, email, source, stage, temperature, interested_product,
	profession, has_clinic, clinic_name, clinic_city, main_pain, main_desire, lost_reason, score,
	assigned_to, referred_by_id, cashback_earned, cashback_paid_at, utm_source, utm_campaign, utm_medium,
	last_contact_at, created_at, updated_at`

// LeadRepository stores leads in MySQL
type LeadRepository struct {
	baseRepository
}

var _ ports.LeadRepository = (*LeadRepository)(nil)

// NewLeadRepository creates a new LeadRepository
func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{baseRepository{db: db}}
}

func scanLead(s rowScanner) (*models.Lead, error) {
	var l models.Lead
	var stage, temperature string
	var email, profession, clinicName, clinicCity, mainPain, mainDesire, lostReason sql.NullString
	var assignedTo, referredBy, utmSource, utmCampaign, utmMedium sql.NullString
	var cashbackPaidAt, lastContactAt sql.NullTime

	err := s.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Phone, &email, &l.Source, &stage, &temperature,
		&l.InterestedProduct, &profession, &l.HasClinic, &clinicName, &clinicCity, &mainPain, &mainDesire,
		&lostReason, &l.Score, &assignedTo, &referredBy, &l.CashbackEarned, &cashbackPaidAt,
		&utmSource, &utmCampaign, &utmMedium, &lastContactAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	l.Stage = models.LeadStage(stage)
	l.Temperature = models.Temperature(temperature)
	l.Email = nullableString(email)
	l.Profession = nullableString(profession)
	l.ClinicName = nullableString(clinicName)
	l.ClinicCity = nullableString(clinicCity)
	l.MainPain = nullableString(mainPain)
	l.MainDesire = nullableString(mainDesire)
	l.LostReason = nullableString(lostReason)
	l.AssignedTo = nullableString(assignedTo)
	l.ReferredByID = nullableString(referredBy)
	l.CashbackPaidAt = nullableTime(cashbackPaidAt)
	l.UTMSource = nullableString(utmSource)
	l.UTMCampaign = nullableString(utmCampaign)
	l.UTMMedium = nullableString(utmMedium)
	l.LastContactAt = nullableTime(lastContactAt)
	return &l, nil
}

func (r *LeadRepository) queryLeads(ctx context.Context, query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) queryLead(ctx context.Context, query string, args ...interface{}) (*models.Lead, error) {
	lead, err := scanLead(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	return lead, nil
}

// Create inserts a lead
func (r *LeadRepository) Create(ctx context.Context, l *models.Lead) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableLead, leadColumns)

	_, err := r.conn(ctx).ExecContext(ctx, query, l.ID, l.OrganizationID, l.Name, l.Phone, l.Email, l.Source,
		string(l.Stage), string(l.Temperature), l.InterestedProduct, l.Profession, l.HasClinic, l.ClinicName,
		l.ClinicCity, l.MainPain, l.MainDesire, l.LostReason, l.Score, l.AssignedTo, l.ReferredByID,
		l.CashbackEarned, l.CashbackPaidAt, l.UTMSource, l.UTMCampaign, l.UTMMedium, l.LastContactAt,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// GetByID loads a lead of the organization
func (r *LeadRepository) GetByID(ctx context.Context, orgID, id string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, leadColumns, constants.TableLead)
	return r.queryLead(ctx, query, orgID, id)
}

// FindByPhone returns the oldest lead with the phone
func (r *LeadRepository) FindByPhone(ctx context.Context, orgID, phone string) (*models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND phone = ? ORDER BY created_at ASC LIMIT 1`,
		leadColumns, constants.TableLead)
	return r.queryLead(ctx, query, orgID, phone)
}

// List returns leads newest first. The cursor is the id of the last lead of
// the previous page; rows strictly older than it are returned. A cursor that
// names no lead of the organization is a validation error.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	if filter.Cursor != "" {
		if err := r.checkCursor(ctx, filter.OrganizationID, filter.Cursor); err != nil {
			return nil, err
		}
	}
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}

	if len(filter.Stages) > 0 {
		values := make([]string, len(filter.Stages))
		for i, s := range filter.Stages {
			values[i] = string(s)
		}
		where = append(where, fmt.Sprintf("stage IN (%s)", placeholders(len(values))))
		args = append(args, stringArgs(values)...)
	}
	if len(filter.Temperatures) > 0 {
		values := make([]string, len(filter.Temperatures))
		for i, t := range filter.Temperatures {
			values[i] = string(t)
		}
		where = append(where, fmt.Sprintf("temperature IN (%s)", placeholders(len(values))))
		args = append(args, stringArgs(values)...)
	}
	if len(filter.Products) > 0 {
		where = append(where, fmt.Sprintf("interested_product IN (%s)", placeholders(len(filter.Products))))
		args = append(args, stringArgs(filter.Products)...)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, "(LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?)")
		pattern := likePattern(q)
		args = append(args, pattern, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		where = append(where, fmt.Sprintf("id IN (SELECT lead_id FROM %s WHERE organization_id = ? AND tag_id IN (%s))",
			constants.TableLeadTag, placeholders(len(filter.Tags))))
		args = append(args, filter.OrganizationID)
		args = append(args, stringArgs(filter.Tags)...)
	}
	if filter.Cursor != "" {
		where = append(where, fmt.Sprintf("(created_at, id) < (SELECT created_at, id FROM %s WHERE organization_id = ? AND id = ?)", constants.TableLead))
		args = append(args, filter.OrganizationID, filter.Cursor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id DESC LIMIT ?`,
		leadColumns, constants.TableLead, strings.Join(where, " AND "))
	return r.queryLeads(ctx, query, args...)
}

func (r *LeadRepository) checkCursor(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE organization_id = ? AND id = ?`, constants.TableLead)
	var found int
	err := r.conn(ctx).QueryRowContext(ctx, query, orgID, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewValidationError("cursor", "Cursor de paginação inválido")
	}
	return err
}

// Recent returns the latest leads
func (r *LeadRepository) Recent(ctx context.Context, orgID string, limit int) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY created_at DESC LIMIT ?`,
		leadColumns, constants.TableLead)
	return r.queryLeads(ctx, query, orgID, limit)
}

// Search matches name, phone or email
func (r *LeadRepository) Search(ctx context.Context, orgID, q string, limit int) ([]models.Lead, error) {
	pattern := likePattern(q)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND (LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?) ORDER BY updated_at DESC LIMIT ?`,
		leadColumns, constants.TableLead)
	return r.queryLeads(ctx, query, orgID, pattern, pattern, pattern, limit)
}

// Update writes every mutable column
func (r *LeadRepository) Update(ctx context.Context, l *models.Lead) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, phone = ?, email = ?, source = ?, stage = ?, temperature = ?,
		interested_product = ?, profession = ?, has_clinic = ?, clinic_name = ?, clinic_city = ?, main_pain = ?,
		main_desire = ?, lost_reason = ?, score = ?, assigned_to = ?, referred_by_id = ?, utm_source = ?,
		utm_campaign = ?, utm_medium = ?, last_contact_at = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableLead)

	_, err := r.conn(ctx).ExecContext(ctx, query, l.Name, l.Phone, l.Email, l.Source, string(l.Stage),
		string(l.Temperature), l.InterestedProduct, l.Profession, l.HasClinic, l.ClinicName, l.ClinicCity,
		l.MainPain, l.MainDesire, l.LostReason, l.Score, l.AssignedTo, l.ReferredByID, l.UTMSource,
		l.UTMCampaign, l.UTMMedium, l.LastContactAt, l.UpdatedAt, l.OrganizationID, l.ID)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

// Delete removes a lead and its tag links
func (r *LeadRepository) Delete(ctx context.Context, orgID, id string) error {
	exec := r.conn(ctx)
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE lead_id = ?`, constants.TableLeadTag), id); err != nil {
		return fmt.Errorf("failed to delete lead tags: %w", err)
	}
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableLead), orgID, id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return nil
}

// ListForDeduplication returns all leads oldest first
func (r *LeadRepository) ListForDeduplication(ctx context.Context, orgID string) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY created_at ASC, id ASC`, leadColumns, constants.TableLead)
	return r.queryLeads(ctx, query, orgID)
}

// ListIdle returns leads of any organization in the given stages untouched since updatedBefore
func (r *LeadRepository) ListIdle(ctx context.Context, stages []models.LeadStage, updatedBefore time.Time, limit int) ([]models.Lead, error) {
	if len(stages) == 0 {
		return []models.Lead{}, nil
	}
	values := make([]string, len(stages))
	for i, s := range stages {
		values[i] = string(s)
	}
	args := stringArgs(values)
	args = append(args, updatedBefore, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE stage IN (%s) AND updated_at < ? ORDER BY updated_at ASC LIMIT ?`,
		leadColumns, constants.TableLead, placeholders(len(values)))
	return r.queryLeads(ctx, query, args...)
}

// ListReferrals returns leads referred by referrerID
func (r *LeadRepository) ListReferrals(ctx context.Context, orgID, referrerID string) ([]models.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND referred_by_id = ? ORDER BY created_at DESC`,
		leadColumns, constants.TableLead)
	return r.queryLeads(ctx, query, orgID, referrerID)
}

// ReferralStats aggregates the referral program
func (r *LeadRepository) ReferralStats(ctx context.Context, orgID string) (*models.ReferralStats, error) {
	query := fmt.Sprintf(`SELECT
		COUNT(CASE WHEN referred_by_id IS NOT NULL THEN 1 END),
		COUNT(CASE WHEN referred_by_id IS NOT NULL AND stage = ? THEN 1 END),
		COALESCE(SUM(cashback_earned), 0)
		FROM %s WHERE organization_id = ?`, constants.TableLead)

	var stats models.ReferralStats
	err := r.conn(ctx).QueryRowContext(ctx, query, string(models.StageFechadoGanho), orgID).
		Scan(&stats.TotalReferrals, &stats.Converted, &stats.TotalCashback)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}
	return &stats, nil
}

// AddCashback credits cashback to a referrer
func (r *LeadRepository) AddCashback(ctx context.Context, id string, amount float64) error {
	query := fmt.Sprintf(`UPDATE %s SET cashback_earned = cashback_earned + ?, updated_at = ? WHERE id = ?`, constants.TableLead)
	_, err := r.conn(ctx).ExecContext(ctx, query, amount, time.Now().UTC(), id)
	return err
}

// MarkCashbackPaid stamps the payout once. It reports false when another
// payout already claimed the lead.
func (r *LeadRepository) MarkCashbackPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET cashback_paid_at = ?, updated_at = ? WHERE id = ? AND cashback_paid_at IS NULL`, constants.TableLead)
	res, err := r.conn(ctx).ExecContext(ctx, query, paidAt, paidAt, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
