package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	args := m.Called(ctx, clerkID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, orgID, id string) (*models.User, error) {
	args := m.Called(ctx, orgID, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, orgID, email string) (*models.User, error) {
	args := m.Called(ctx, orgID, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, orgID string) ([]models.User, error) {
	args := m.Called(ctx, orgID)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserRepository) ListActiveByRole(ctx context.Context, orgID, role string) ([]models.User, error) {
	args := m.Called(ctx, orgID, role)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserRepository) Search(ctx context.Context, orgID, query string, limit int) ([]models.User, error) {
	args := m.Called(ctx, orgID, query, limit)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

// The mocks below embed their port so only the methods a test drives need
// an implementation.

type mockLeadRepository struct {
	ports.LeadRepository
	mock.Mock
}

func (m *mockLeadRepository) GetByID(ctx context.Context, orgID, id string) (*models.Lead, error) {
	args := m.Called(ctx, orgID, id)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockLeadRepository) MarkCashbackPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, id, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeadRepository) AddCashback(ctx context.Context, id string, amount float64) error {
	return m.Called(ctx, id, amount).Error(0)
}

type mockStudentRepository struct {
	ports.StudentRepository
	mock.Mock
}

func (m *mockStudentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Student, error) {
	args := m.Called(ctx, orgID, id)
	student, _ := args.Get(0).(*models.Student)
	return student, args.Error(1)
}

func (m *mockStudentRepository) FindByLeadID(ctx context.Context, orgID, leadID string) (*models.Student, error) {
	args := m.Called(ctx, orgID, leadID)
	student, _ := args.Get(0).(*models.Student)
	return student, args.Error(1)
}

func (m *mockStudentRepository) Update(ctx context.Context, student *models.Student) error {
	return m.Called(ctx, student).Error(0)
}

type mockEnrollmentRepository struct {
	ports.EnrollmentRepository
	mock.Mock
}

func (m *mockEnrollmentRepository) ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Enrollment, error) {
	args := m.Called(ctx, orgID, studentID)
	enrollments, _ := args.Get(0).([]models.Enrollment)
	return enrollments, args.Error(1)
}

func (m *mockEnrollmentRepository) CancelByStudent(ctx context.Context, studentID string) (int64, error) {
	args := m.Called(ctx, studentID)
	return int64(args.Int(0)), args.Error(1)
}

type mockConversationRepository struct {
	ports.ConversationRepository
	mock.Mock
}

func (m *mockConversationRepository) DeleteByStudent(ctx context.Context, studentID string) (int64, error) {
	args := m.Called(ctx, studentID)
	return int64(args.Int(0)), args.Error(1)
}

type mockActivityRepository struct {
	ports.ActivityRepository
	mock.Mock
}

func (m *mockActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return m.Called(ctx, activity).Error(0)
}

type mockSettingRepository struct {
	ports.SettingRepository
	mock.Mock
}

func (m *mockSettingRepository) Get(ctx context.Context, orgID, key string) (*models.Setting, error) {
	args := m.Called(ctx, orgID, key)
	setting, _ := args.Get(0).(*models.Setting)
	return setting, args.Error(1)
}

type mockTagRepository struct {
	ports.TagRepository
	mock.Mock
}

func (m *mockTagRepository) FindByName(ctx context.Context, orgID, name string) (*models.Tag, error) {
	args := m.Called(ctx, orgID, name)
	tag, _ := args.Get(0).(*models.Tag)
	return tag, args.Error(1)
}

func (m *mockTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return m.Called(ctx, tag).Error(0)
}

type mockTaskRepository struct {
	ports.TaskRepository
	mock.Mock
}

func (m *mockTaskRepository) ListDueUnreminded(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	args := m.Called(ctx, from, to)
	tasks, _ := args.Get(0).([]models.Task)
	return tasks, args.Error(1)
}

func (m *mockTaskRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockNotificationRepository struct {
	ports.NotificationRepository
	mock.Mock
}

func (m *mockNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return m.Called(ctx, notification).Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	return m.Called(ctx, taskType, payload).Error(0)
}

// withFrozenTime pins nowFunc for the duration of a test
func withFrozenTime(t testing.TB, at time.Time) {
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}

type mockPaymentRepository struct {
	ports.PaymentRepository
	mock.Mock
}

func (m *mockPaymentRepository) CreateWebhook(ctx context.Context, webhook *models.AsaasWebhook) error {
	return m.Called(ctx, webhook).Error(0)
}

func (m *mockPaymentRepository) FindWebhookByKey(ctx context.Context, key string) (*models.AsaasWebhook, error) {
	args := m.Called(ctx, key)
	webhook, _ := args.Get(0).(*models.AsaasWebhook)
	return webhook, args.Error(1)
}
