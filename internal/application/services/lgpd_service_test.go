package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
)

const testIdentityProof = "RG 12.345.678-9 SSP/SP"

// fakeLGPDRepository keeps requests by value so tests see every stored state
type fakeLGPDRepository struct {
	ports.LGPDRepository
	requests   map[string]models.LGPDRequest
	statuses   []models.LGPDRequestStatus
	audits     []models.AuditEntry
	consentErr error
	withdrawn  []string
}

func newFakeLGPDRepository() *fakeLGPDRepository {
	return &fakeLGPDRepository{requests: map[string]models.LGPDRequest{}}
}

func (f *fakeLGPDRepository) CreateRequest(ctx context.Context, req *models.LGPDRequest) error {
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeLGPDRepository) GetRequest(ctx context.Context, orgID, id string) (*models.LGPDRequest, error) {
	req, ok := f.requests[id]
	if !ok || req.OrganizationID != orgID {
		return nil, nil
	}
	return &req, nil
}

func (f *fakeLGPDRepository) UpdateRequest(ctx context.Context, req *models.LGPDRequest) error {
	f.requests[req.ID] = *req
	f.statuses = append(f.statuses, req.Status)
	return nil
}

func (f *fakeLGPDRepository) CreateAudit(ctx context.Context, entry *models.AuditEntry) error {
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeLGPDRepository) ListAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	return nil, nil
}

func (f *fakeLGPDRepository) ListConsentsByStudent(ctx context.Context, orgID, studentID string) ([]models.Consent, error) {
	return nil, f.consentErr
}

func (f *fakeLGPDRepository) WithdrawConsentsByStudent(ctx context.Context, studentID, reason string, at time.Time) (int64, error) {
	f.withdrawn = append(f.withdrawn, studentID)
	return 2, nil
}

func (f *fakeLGPDRepository) stored(t *testing.T, id string) models.LGPDRequest {
	t.Helper()
	req, ok := f.requests[id]
	require.True(t, ok, "request %s not stored", id)
	return req
}

func (f *fakeLGPDRepository) onlyRequestID(t *testing.T) string {
	t.Helper()
	require.Len(t, f.requests, 1)
	for id := range f.requests {
		return id
	}
	return ""
}

type lgpdFixture struct {
	svc           *LGPDService
	lgpd          *fakeLGPDRepository
	students      *mockStudentRepository
	enrollments   *mockEnrollmentRepository
	conversations *mockConversationRepository
}

func newLGPDFixture() *lgpdFixture {
	f := &lgpdFixture{
		lgpd:          newFakeLGPDRepository(),
		students:      new(mockStudentRepository),
		enrollments:   new(mockEnrollmentRepository),
		conversations: new(mockConversationRepository),
	}
	repos := Repositories{
		LGPD:          f.lgpd,
		Students:      f.students,
		Enrollments:   f.enrollments,
		Conversations: f.conversations,
	}
	users := new(mockUserRepository)
	users.On("GetByClerkID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	f.svc = NewLGPDService(repos, NewPermissionService(users, nil), Infrastructure{})
	f.students.On("GetByID", mock.Anything, "org_1", "stu_1").Return(&models.Student{
		ID:             "stu_1",
		OrganizationID: "org_1",
		Name:           "Maria Silva",
		Email:          "maria@example.com",
		Phone:          "11987654321",
		Status:         models.StudentAtivo,
	}, nil).Maybe()
	return f
}

func dpoIdentity() auth.Identity {
	return auth.Identity{Subject: "user_dpo", OrgID: "org_1", OrgRole: auth.OrgAdminRole}
}

func (f *lgpdFixture) open(t *testing.T, requestType models.LGPDRequestType, details map[string]interface{}) *models.LGPDRequest {
	t.Helper()
	req, err := f.svc.CreateRequest(context.Background(), dpoIdentity(), models.LGPDRequestInput{
		StudentID:     "stu_1",
		RequestType:   requestType,
		IdentityProof: testIdentityProof,
		Details:       details,
	})
	require.NoError(t, err)
	return req
}

func TestLGPDService_CreateRequestValidation(t *testing.T) {
	tests := []struct {
		name  string
		input models.LGPDRequestInput
		field string
	}{
		{
			name:  "unknown type",
			input: models.LGPDRequestInput{StudentID: "stu_1", RequestType: "erase", IdentityProof: testIdentityProof},
			field: "requestType",
		},
		{
			name:  "short identity proof",
			input: models.LGPDRequestInput{StudentID: "stu_1", RequestType: models.RequestAccess, IdentityProof: "123"},
			field: "identityProof",
		},
		{
			name: "short deletion reason",
			input: models.LGPDRequestInput{StudentID: "stu_1", RequestType: models.RequestDeletion, IdentityProof: testIdentityProof,
				Details: map[string]interface{}{"reason": "sair"}},
			field: "reason",
		},
		{
			name: "unsupported export format",
			input: models.LGPDRequestInput{StudentID: "stu_1", RequestType: models.RequestPortability, IdentityProof: testIdentityProof,
				Details: map[string]interface{}{"exportFormat": "xml"}},
			field: "exportFormat",
		},
		{
			name: "empty correction",
			input: models.LGPDRequestInput{StudentID: "stu_1", RequestType: models.RequestCorrection, IdentityProof: testIdentityProof,
				Details: map[string]interface{}{"fields": map[string]interface{}{}}},
			field: "fields",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLGPDFixture()

			_, err := f.svc.CreateRequest(context.Background(), dpoIdentity(), tt.input)

			var vErr *apperrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, f.lgpd.requests)
		})
	}
}

func TestLGPDService_CreateRequestUnknownStudent(t *testing.T) {
	f := newLGPDFixture()
	f.students.On("GetByID", mock.Anything, "org_1", "stu_404").Return(nil, nil)

	_, err := f.svc.CreateRequest(context.Background(), dpoIdentity(), models.LGPDRequestInput{
		StudentID:     "stu_404",
		RequestType:   models.RequestInformation,
		IdentityProof: testIdentityProof,
	})

	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.lgpd.requests)
}

func TestLGPDService_AccessRequestAnsweredImmediately(t *testing.T) {
	f := newLGPDFixture()

	req := f.open(t, models.RequestAccess, nil)

	assert.Equal(t, models.RequestCompleted, req.Status)
	assert.Equal(t, []models.LGPDRequestStatus{models.RequestProcessing, models.RequestCompleted}, f.lgpd.statuses)
	require.NotNil(t, req.Response)
	assert.Contains(t, req.ResponseData, "personalData")
	assert.Contains(t, req.ResponseData, "rights")
	assert.NotEqual(t, testIdentityProof, req.IdentityProofHash)
}

func TestLGPDService_FailedAccessReturnsToPending(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	f.lgpd.consentErr = errors.New("connection reset by peer")

	_, err := f.svc.CreateRequest(ctx, dpoIdentity(), models.LGPDRequestInput{
		StudentID:     "stu_1",
		RequestType:   models.RequestAccess,
		IdentityProof: testIdentityProof,
	})
	require.Error(t, err)
	id := f.lgpd.onlyRequestID(t)
	stored := f.lgpd.stored(t, id)
	assert.Equal(t, models.RequestPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, []models.LGPDRequestStatus{models.RequestProcessing, models.RequestPending}, f.lgpd.statuses)

	f.lgpd.consentErr = nil
	req, err := f.svc.ProcessRequest(ctx, dpoIdentity(), id)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, req.Status)
	assert.Equal(t, models.RequestCompleted, f.lgpd.stored(t, id).Status)
}

func TestLGPDService_FailedQueuedRunReturnsToPending(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	f.students.On("Update", mock.Anything, mock.AnythingOfType("*models.Student")).Return(nil)
	f.conversations.On("DeleteByStudent", mock.Anything, "stu_1").Return(0, errors.New("lock wait timeout")).Once()
	f.conversations.On("DeleteByStudent", mock.Anything, "stu_1").Return(4, nil).Once()

	req := f.open(t, models.RequestDeletion, map[string]interface{}{"reason": "Não quero mais receber contato"})
	require.Equal(t, models.RequestPending, req.Status)
	task := LGPDProcessTask{OrganizationID: "org_1", RequestID: req.ID, ActorID: "user_dpo"}

	err := f.svc.RunQueuedRequest(ctx, task)
	require.Error(t, err)
	assert.Equal(t, models.RequestPending, f.lgpd.stored(t, req.ID).Status)

	require.NoError(t, f.svc.RunQueuedRequest(ctx, task))
	assert.Equal(t, models.RequestCompleted, f.lgpd.stored(t, req.ID).Status)
	assert.Equal(t, []models.LGPDRequestStatus{
		models.RequestProcessing, models.RequestPending,
		models.RequestProcessing, models.RequestCompleted,
	}, f.lgpd.statuses)

	// a retry of a finished request is a no-op
	require.NoError(t, f.svc.RunQueuedRequest(ctx, task))
	assert.Len(t, f.lgpd.statuses, 4)
	f.conversations.AssertExpectations(t)
}

func TestLGPDService_ProcessRequestStatus(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	f.lgpd.requests["done"] = models.LGPDRequest{ID: "done", OrganizationID: "org_1", StudentID: "stu_1",
		RequestType: models.RequestInformation, Status: models.RequestCompleted}
	f.lgpd.requests["busy"] = models.LGPDRequest{ID: "busy", OrganizationID: "org_1", StudentID: "stu_1",
		RequestType: models.RequestInformation, Status: models.RequestProcessing}

	_, err := f.svc.ProcessRequest(ctx, dpoIdentity(), "done")
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "Solicitação já processada", vErr.Message)

	_, err = f.svc.ProcessRequest(ctx, dpoIdentity(), "busy")
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.svc.ProcessRequest(ctx, dpoIdentity(), "missing")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.ProcessRequest(ctx, auth.Identity{Subject: "user_1", OrgID: "org_1", OrgPermissions: []string{string(auth.PermStudentsRead)}}, "busy")
	assert.True(t, apperrors.IsPermission(err))
	assert.Empty(t, f.lgpd.statuses)
}

func TestLGPDService_ProcessDeletionQueued(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	queue := new(mockQueue)
	f.svc.queue = queue

	req := f.open(t, models.RequestDeletion, map[string]interface{}{"reason": "Encerrei o curso e quero sair"})
	queue.On("Enqueue", mock.Anything, ports.TaskLGPDProcess,
		LGPDProcessTask{OrganizationID: "org_1", RequestID: req.ID, ActorID: "user_dpo"}).Return(nil).Once()

	queued, err := f.svc.ProcessRequest(ctx, dpoIdentity(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestProcessing, queued.Status)
	queue.AssertExpectations(t)
	f.conversations.AssertNotCalled(t, "DeleteByStudent", mock.Anything, mock.Anything)
}

func TestLGPDService_CancelRequest(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	req := f.open(t, models.RequestInformation, nil)

	_, err := f.svc.CancelRequest(ctx, dpoIdentity(), req.ID, "RG 99.999.999-9 SSP/RJ")
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "identityProof", vErr.Field)
	assert.Equal(t, models.RequestPending, f.lgpd.stored(t, req.ID).Status)

	cancelled, err := f.svc.CancelRequest(ctx, dpoIdentity(), req.ID, "  "+testIdentityProof+" ")
	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, cancelled.Status)

	_, err = f.svc.CancelRequest(ctx, dpoIdentity(), req.ID, testIdentityProof)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)
}

func TestLGPDService_DeletionSteps(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	f.students.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Student) bool {
		return s.ID == "stu_1" && s.Name != "Maria Silva" && s.Email != "maria@example.com"
	})).Return(nil).Once()
	f.enrollments.On("CancelByStudent", mock.Anything, "stu_1").Return(2, nil).Once()
	f.conversations.On("DeleteByStudent", mock.Anything, "stu_1").Return(5, nil).Once()

	req := f.open(t, models.RequestDeletion, map[string]interface{}{
		"reason":          "Não desejo mais ser contatada",
		"includeAcademic": true,
	})

	done, err := f.svc.ProcessRequest(ctx, dpoIdentity(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	steps, ok := done.ResponseData["deletionSteps"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, steps, 4)
	assert.Equal(t, "pii", steps[0]["category"])
	assert.Equal(t, "academic", steps[1]["category"])
	assert.Equal(t, int64(2), steps[1]["count"])
	assert.Equal(t, "communications", steps[2]["category"])
	assert.Equal(t, "consents", steps[3]["category"])
	assert.Equal(t, []string{"stu_1"}, f.lgpd.withdrawn)

	var deletion *models.AuditEntry
	for i := range f.lgpd.audits {
		if f.lgpd.audits[i].ActionType == models.AuditDataDeletion {
			deletion = &f.lgpd.audits[i]
		}
	}
	require.NotNil(t, deletion)
	assert.Equal(t, "user_dpo", deletion.ActorID)
	assert.Equal(t, LegalBasisDataSubject, deletion.LegalBasis)

	f.students.AssertExpectations(t)
	f.enrollments.AssertExpectations(t)
	f.conversations.AssertExpectations(t)
}

func TestLGPDService_DeletionKeepsAcademicByDefault(t *testing.T) {
	f := newLGPDFixture()
	f.students.On("Update", mock.Anything, mock.AnythingOfType("*models.Student")).Return(nil).Once()
	f.conversations.On("DeleteByStudent", mock.Anything, "stu_1").Return(0, nil).Once()

	req := f.open(t, models.RequestDeletion, map[string]interface{}{"reason": "Não desejo mais ser contatada"})
	done, err := f.svc.ProcessRequest(context.Background(), dpoIdentity(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestCompleted, done.Status)
	f.enrollments.AssertNotCalled(t, "CancelByStudent", mock.Anything, mock.Anything)
}

func TestLGPDService_InvalidCorrectionRejected(t *testing.T) {
	f := newLGPDFixture()
	req := f.open(t, models.RequestCorrection, map[string]interface{}{
		"fields": map[string]interface{}{"email": "maria@", "name": "Maria S. Souza"},
	})

	done, err := f.svc.ProcessRequest(context.Background(), dpoIdentity(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestRejected, done.Status)
	require.NotNil(t, done.RejectionReason)
	assert.Contains(t, *done.RejectionReason, "Email inválido")
	assert.NotNil(t, done.CompletedAt)
	f.students.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLGPDService_CorrectionApplied(t *testing.T) {
	f := newLGPDFixture()
	f.students.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Student) bool {
		return s.Name == "Maria S. Souza"
	})).Return(nil).Once()

	req := f.open(t, models.RequestCorrection, map[string]interface{}{
		"fields": []interface{}{map[string]interface{}{"fieldName": "name", "newValue": "Maria S. Souza"}},
	})
	done, err := f.svc.ProcessRequest(context.Background(), dpoIdentity(), req.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestCompleted, done.Status)
	modifications := 0
	for _, entry := range f.lgpd.audits {
		if entry.ActionType == models.AuditDataModification {
			modifications++
		}
	}
	assert.Equal(t, 1, modifications)
	f.students.AssertExpectations(t)
}

func TestLGPDService_RejectRequest(t *testing.T) {
	ctx := context.Background()
	f := newLGPDFixture()
	req := f.open(t, models.RequestObjection, nil)

	_, err := f.svc.RejectRequest(ctx, dpoIdentity(), req.ID, "   ")
	assert.True(t, apperrors.IsValidation(err))

	rejected, err := f.svc.RejectRequest(ctx, dpoIdentity(), req.ID, "Titular não identificado")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	assert.Equal(t, "Titular não identificado", *rejected.RejectionReason)

	_, err = f.svc.RejectRequest(ctx, dpoIdentity(), req.ID, "de novo")
	assert.True(t, apperrors.IsValidation(err))
}
