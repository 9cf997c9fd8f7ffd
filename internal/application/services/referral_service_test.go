package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

func TestCashbackAmount(t *testing.T) {
	cfg := models.CashbackConfig{Enabled: true, Percentage: 10, MinAmount: 50, MaxAmount: 500}

	assert.Equal(t, 150.0, CashbackAmount(1500, cfg))
	assert.Equal(t, 50.0, CashbackAmount(100, cfg), "clamped to the minimum")
	assert.Equal(t, 500.0, CashbackAmount(10000, cfg), "clamped to the maximum")
	assert.Equal(t, 123.46, CashbackAmount(1234.56, cfg), "rounded to cents")
}

const cashbackSetting = `{"enabled":true,"percentage":10,"minAmount":50,"maxAmount":500}`

type cashbackFixture struct {
	svc         *ReferralService
	leads       *mockLeadRepository
	students    *mockStudentRepository
	enrollments *mockEnrollmentRepository
	activities  *mockActivityRepository
	settings    *mockSettingRepository
}

func newCashbackFixture(setting string, enrollment models.Enrollment) *cashbackFixture {
	f := &cashbackFixture{
		leads:       new(mockLeadRepository),
		students:    new(mockStudentRepository),
		enrollments: new(mockEnrollmentRepository),
		activities:  new(mockActivityRepository),
		settings:    new(mockSettingRepository),
	}
	f.svc = NewReferralService(Repositories{
		Leads:       f.leads,
		Students:    f.students,
		Enrollments: f.enrollments,
		Activities:  f.activities,
		Settings:    f.settings,
	}, Infrastructure{})

	referrer := "lead_ref"
	f.leads.On("GetByID", mock.Anything, "org_1", "lead_new").
		Return(&models.Lead{ID: "lead_new", Name: "Ana Costa", ReferredByID: &referrer}, nil).Maybe()
	f.leads.On("GetByID", mock.Anything, "org_1", "lead_ref").
		Return(&models.Lead{ID: "lead_ref", Name: "Bruno Lima"}, nil).Maybe()
	f.settings.On("Get", mock.Anything, "org_1", constants.SettingKeyCashback).
		Return(&models.Setting{Key: constants.SettingKeyCashback, Value: setting}, nil).Maybe()
	f.students.On("FindByLeadID", mock.Anything, "org_1", "lead_new").
		Return(&models.Student{ID: "stu_1", OrganizationID: "org_1"}, nil).Maybe()
	f.enrollments.On("ListByStudent", mock.Anything, "org_1", "stu_1").
		Return([]models.Enrollment{enrollment}, nil).Maybe()
	f.activities.On("Create", mock.Anything, mock.AnythingOfType("*models.Activity")).Return(nil).Maybe()
	return f
}

func activeEnrollment(total float64) models.Enrollment {
	return models.Enrollment{ID: "enr_1", StudentID: "stu_1", Status: models.EnrollmentAtivo, TotalValue: total}
}

func TestReferralService_CalculateCashbackCredits(t *testing.T) {
	f := newCashbackFixture(cashbackSetting, activeEnrollment(1500))
	f.leads.On("MarkCashbackPaid", mock.Anything, "lead_new", mock.AnythingOfType("time.Time")).Return(true, nil).Once()
	f.leads.On("AddCashback", mock.Anything, "lead_ref", 150.0).Return(nil).Once()

	require.NoError(t, f.svc.CalculateCashback(context.Background(), "org_1", "lead_new"))

	f.leads.AssertExpectations(t)
	f.activities.AssertNumberOfCalls(t, "Create", 2)
}

func TestReferralService_CalculateCashbackClaimLost(t *testing.T) {
	f := newCashbackFixture(cashbackSetting, activeEnrollment(1500))
	f.leads.On("MarkCashbackPaid", mock.Anything, "lead_new", mock.AnythingOfType("time.Time")).Return(false, nil).Once()

	require.NoError(t, f.svc.CalculateCashback(context.Background(), "org_1", "lead_new"))

	f.leads.AssertNotCalled(t, "AddCashback", mock.Anything, mock.Anything, mock.Anything)
	f.activities.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReferralService_CalculateCashbackPreconditions(t *testing.T) {
	cancelled := activeEnrollment(1500)
	cancelled.Status = models.EnrollmentCancelado

	tests := []struct {
		name       string
		setting    string
		enrollment models.Enrollment
	}{
		{"program disabled", `{"enabled":false,"percentage":10,"minAmount":50,"maxAmount":500}`, activeEnrollment(1500)},
		{"no configuration", "", activeEnrollment(1500)},
		{"cancelled enrollment", cashbackSetting, cancelled},
		{"free enrollment", cashbackSetting, activeEnrollment(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCashbackFixture(tt.setting, tt.enrollment)

			require.NoError(t, f.svc.CalculateCashback(context.Background(), "org_1", "lead_new"))

			f.leads.AssertNotCalled(t, "MarkCashbackPaid", mock.Anything, mock.Anything, mock.Anything)
			f.leads.AssertNotCalled(t, "AddCashback", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReferralService_CalculateCashbackAlreadyPaid(t *testing.T) {
	leads := new(mockLeadRepository)
	paidAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	referrer := "lead_ref"
	leads.On("GetByID", mock.Anything, "org_1", "lead_new").
		Return(&models.Lead{ID: "lead_new", ReferredByID: &referrer, CashbackPaidAt: &paidAt}, nil).Once()
	settings := new(mockSettingRepository)

	svc := NewReferralService(Repositories{Leads: leads, Settings: settings}, Infrastructure{})
	require.NoError(t, svc.CalculateCashback(context.Background(), "org_1", "lead_new"))

	leads.AssertExpectations(t)
	settings.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestReferralService_CalculateCashbackInvalidConfig(t *testing.T) {
	f := newCashbackFixture(`{"enabled":`, activeEnrollment(1500))

	err := f.svc.CalculateCashback(context.Background(), "org_1", "lead_new")
	assert.Error(t, err)
	f.leads.AssertNotCalled(t, "AddCashback", mock.Anything, mock.Anything, mock.Anything)
}

// payoutLeads serves every read as it was before any payout and claims the
// payout the way the conditional update does
type payoutLeads struct {
	ports.LeadRepository
	mu      sync.Mutex
	leads   map[string]models.Lead
	paid    map[string]bool
	credits map[string]int
}

func (p *payoutLeads) GetByID(ctx context.Context, orgID, id string) (*models.Lead, error) {
	lead, ok := p.leads[id]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

func (p *payoutLeads) MarkCashbackPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paid[id] {
		return false, nil
	}
	p.paid[id] = true
	return true, nil
}

func (p *payoutLeads) AddCashback(ctx context.Context, id string, amount float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credits[id]++
	return nil
}

func TestReferralService_CalculateCashbackConcurrentPayout(t *testing.T) {
	f := newCashbackFixture(cashbackSetting, activeEnrollment(1500))
	referrer := "lead_ref"
	leads := &payoutLeads{
		leads: map[string]models.Lead{
			"lead_new": {ID: "lead_new", Name: "Ana Costa", ReferredByID: &referrer},
			"lead_ref": {ID: "lead_ref", Name: "Bruno Lima"},
		},
		paid:    map[string]bool{},
		credits: map[string]int{},
	}
	f.svc.leads = leads

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.CalculateCashback(context.Background(), "org_1", "lead_new"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, leads.credits["lead_ref"])
	f.activities.AssertNumberOfCalls(t, "Create", 2)
}
