package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
)

// openConversationStatuses are the statuses that still need an agent
var openConversationStatuses = []string{
	string(models.ConversationAguardandoAtendente),
	string(models.ConversationEmAtendimento),
	string(models.ConversationAguardandoCliente),
}

// DashboardRepository aggregates counts for the home dashboard and the daily snapshot
type DashboardRepository struct {
	baseRepository
}

var _ ports.DashboardRepository = (*DashboardRepository)(nil)

// NewDashboardRepository creates a new DashboardRepository
func NewDashboardRepository(db *sql.DB) *DashboardRepository {
	return &DashboardRepository{baseRepository{db: db}}
}

func (r *DashboardRepository) countBy(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *DashboardRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	err := r.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CollectStats computes the dashboard counters for one organization
func (r *DashboardRepository) CollectStats(ctx context.Context, orgID string, monthStart time.Time) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	var err error

	stats.LeadsByStage, err = r.countBy(ctx, fmt.Sprintf(`SELECT stage, COUNT(*) FROM %s WHERE organization_id = ? GROUP BY stage`, constants.TableLead), orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by stage: %w", err)
	}
	for _, n := range stats.LeadsByStage {
		stats.TotalLeads += n
	}
	if stats.TotalLeads > 0 {
		won := stats.LeadsByStage[string(models.StageFechadoGanho)]
		stats.ConversionRate = float64(won) / float64(stats.TotalLeads) * 100
	}

	if stats.NewLeadsThisMonth, err = r.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND created_at >= ?`, constants.TableLead), orgID, monthStart); err != nil {
		return nil, fmt.Errorf("failed to count new leads: %w", err)
	}

	if stats.ActiveStudents, err = r.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND status = ?`, constants.TableStudent), orgID, string(models.StudentAtivo)); err != nil {
		return nil, fmt.Errorf("failed to count students: %w", err)
	}

	stats.ChurnRisk, err = r.countBy(ctx, fmt.Sprintf(`SELECT churn_risk, COUNT(*) FROM %s WHERE organization_id = ? AND status = ? GROUP BY churn_risk`, constants.TableStudent), orgID, string(models.StudentAtivo))
	if err != nil {
		return nil, fmt.Errorf("failed to count churn risk: %w", err)
	}

	convArgs := append([]interface{}{orgID}, stringArgs(openConversationStatuses)...)
	if stats.OpenConversations, err = r.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND status IN (%s)`, constants.TableConversation, placeholders(len(openConversationStatuses))), convArgs...); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	if stats.OverdueEnrollments, err = r.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND payment_status = ?`, constants.TableEnrollment), orgID, string(models.PaymentAtrasado)); err != nil {
		return nil, fmt.Errorf("failed to count overdue enrollments: %w", err)
	}

	if stats.PendingTasks, err = r.count(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND completed = FALSE`, constants.TableTask), orgID); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	return stats, nil
}

// SaveDailyMetrics stores the snapshot of a day, replacing an earlier one
func (r *DashboardRepository) SaveDailyMetrics(ctx context.Context, m *models.DailyMetrics) error {
	if m.ID == "" {
		m.ID = utils.GenerateID()
	}
	raw, err := json.Marshal(m.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode daily metrics: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, metric_date, stats, created_at) VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE stats = VALUES(stats), created_at = VALUES(created_at)`, constants.TableDailyMetric)
	_, err = r.conn(ctx).ExecContext(ctx, query, m.ID, m.OrganizationID, m.Date, string(raw), m.CreatedAt)
	return err
}

// ListOrganizationIDs returns every organization that owns leads, students or members
func (r *DashboardRepository) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT organization_id FROM %s UNION SELECT organization_id FROM %s UNION SELECT organization_id FROM %s`,
		constants.TableLead, constants.TableStudent, constants.TableUser)
	rows, err := r.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
