package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// ReferralService runs the referral cashback program
type ReferralService struct {
	leads       ports.LeadRepository
	students    ports.StudentRepository
	enrollments ports.EnrollmentRepository
	activities  ports.ActivityRepository
	settings    ports.SettingRepository
	users       ports.UserRepository
	tx          ports.Transactor
}

// NewReferralService creates a new ReferralService
func NewReferralService(repos Repositories, infra Infrastructure) *ReferralService {
	return &ReferralService{
		leads:       repos.Leads,
		students:    repos.Students,
		enrollments: repos.Enrollments,
		activities:  repos.Activities,
		settings:    repos.Settings,
		users:       repos.Users,
		tx:          infra.Tx,
	}
}

// Config returns the cashback configuration of the caller's organization
func (s *ReferralService) Config(ctx context.Context, identity auth.Identity) (*models.CashbackConfig, error) {
	return s.config(ctx, identity.OrganizationID())
}

// SetConfig validates and stores the cashback configuration
func (s *ReferralService) SetConfig(ctx context.Context, identity auth.Identity, cfg models.CashbackConfig) error {
	if cfg.Percentage < 0 || cfg.Percentage > 100 {
		return apperrors.NewValidationError("percentage", "Percentual deve estar entre 0 e 100")
	}
	if cfg.MinAmount < 0 {
		return apperrors.NewValidationError("minAmount", "Valor mínimo não pode ser negativo")
	}
	if cfg.MaxAmount < cfg.MinAmount {
		return apperrors.NewValidationError("maxAmount", "Valor máximo deve ser maior ou igual ao mínimo")
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.settings.Upsert(ctx, &models.Setting{
		ID:             utils.GenerateID(),
		OrganizationID: identity.OrganizationID(),
		Key:            constants.SettingKeyCashback,
		Value:          string(raw),
		UpdatedBy:      actorUserID(ctx, s.users, identity),
		UpdatedAt:      nowFunc(),
	})
}

func (s *ReferralService) config(ctx context.Context, orgID string) (*models.CashbackConfig, error) {
	setting, err := s.settings.Get(ctx, orgID, constants.SettingKeyCashback)
	if err != nil {
		return nil, err
	}
	cfg := &models.CashbackConfig{}
	if setting == nil || setting.Value == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(setting.Value), cfg); err != nil {
		return nil, fmt.Errorf("invalid cashback config: %w", err)
	}
	return cfg, nil
}

// CalculateCashback credits the referrer of a converted lead. Every unmet
// precondition makes it a silent no-op, so the task is safe to retry.
func (s *ReferralService) CalculateCashback(ctx context.Context, orgID, referredLeadID string) error {
	referred, err := s.leads.GetByID(ctx, orgID, referredLeadID)
	if err != nil {
		return err
	}
	if referred == nil || referred.ReferredByID == nil || *referred.ReferredByID == "" || referred.CashbackPaidAt != nil {
		return nil
	}
	referrer, err := s.leads.GetByID(ctx, orgID, *referred.ReferredByID)
	if err != nil || referrer == nil {
		return err
	}

	cfg, err := s.config(ctx, orgID)
	if err != nil || !cfg.Enabled {
		return err
	}

	student, err := s.students.FindByLeadID(ctx, orgID, referred.ID)
	if err != nil || student == nil {
		return err
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, orgID, student.ID)
	if err != nil || len(enrollments) == 0 {
		return err
	}
	latest := latestEnrollment(enrollments)
	if latest.Status != models.EnrollmentAtivo && latest.Status != models.EnrollmentConcluido {
		return nil
	}
	if latest.TotalValue <= 0 {
		return nil
	}

	amount := CashbackAmount(latest.TotalValue, *cfg)
	if amount <= 0 {
		return nil
	}

	now := nowFunc()
	paid := false
	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		claimed, err := s.leads.MarkCashbackPaid(ctx, referred.ID, now)
		if err != nil || !claimed {
			return err
		}
		if err := s.leads.AddCashback(ctx, referrer.ID, amount); err != nil {
			return err
		}
		paid = true
		meta := map[string]interface{}{"amount": amount, "referrerId": referrer.ID, "referredId": referred.ID}

		credited := newActivity(orgID, constants.ActivitySaleClosed,
			fmt.Sprintf("Cashback de R$ %.2f recebido pela indicação de %s", amount, referred.Name))
		credited.LeadID = &referrer.ID
		credited.Metadata = meta
		if err := s.activities.Create(ctx, credited); err != nil {
			return err
		}

		closed := newActivity(orgID, constants.ActivitySaleClosed,
			fmt.Sprintf("Indicado por %s - Cashback gerado", referrer.Name))
		closed.LeadID = &referred.ID
		closed.Metadata = meta
		return s.activities.Create(ctx, closed)
	})
	if err != nil {
		return err
	}
	if !paid {
		log.Printf("⏭️ Cashback of lead %s already paid", referred.ID)
		return nil
	}
	log.Printf("✅ Cashback %.2f credited to lead %s", amount, referrer.ID)
	return nil
}

// CashbackAmount applies the percentage and clamps it to the configured range
func CashbackAmount(total float64, cfg models.CashbackConfig) float64 {
	amount := math.Max(cfg.MinAmount, math.Min(total*cfg.Percentage/100, cfg.MaxAmount))
	return round2(amount)
}

func latestEnrollment(enrollments []models.Enrollment) models.Enrollment {
	latest := enrollments[0]
	for _, e := range enrollments[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest
}

// Stats summarizes the referral program of the organization
func (s *ReferralService) Stats(ctx context.Context, identity auth.Identity) (*models.ReferralStats, error) {
	return s.leads.ReferralStats(ctx, identity.OrganizationID())
}

// MyReferrals lists the leads referred by leadID
func (s *ReferralService) MyReferrals(ctx context.Context, identity auth.Identity, leadID string) ([]models.Lead, error) {
	orgID := identity.OrganizationID()
	lead, err := s.leads.GetByID(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NewNotFoundError("Lead", leadID)
	}
	return s.leads.ListReferrals(ctx, orgID, leadID)
}
