package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterBindingTags(); err != nil {
		panic(err)
	}
}

type mockLeadService struct {
	mock.Mock
}

func (m *mockLeadService) Create(ctx context.Context, identity auth.Identity, input models.LeadInput) (string, error) {
	args := m.Called(ctx, identity, input)
	return args.String(0), args.Error(1)
}

func (m *mockLeadService) CreatePublic(ctx context.Context, input models.LeadInput, clientIP string) (string, error) {
	args := m.Called(ctx, input, clientIP)
	return args.String(0), args.Error(1)
}

func (m *mockLeadService) List(ctx context.Context, identity auth.Identity, filter models.LeadFilter) (*models.LeadPage, error) {
	args := m.Called(ctx, identity, filter)
	page, _ := args.Get(0).(*models.LeadPage)
	return page, args.Error(1)
}

func (m *mockLeadService) Get(ctx context.Context, identity auth.Identity, id string) (*models.Lead, error) {
	args := m.Called(ctx, identity, id)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockLeadService) Recent(ctx context.Context, identity auth.Identity, limit int) ([]models.Lead, error) {
	args := m.Called(ctx, identity, limit)
	leads, _ := args.Get(0).([]models.Lead)
	return leads, args.Error(1)
}

func (m *mockLeadService) Search(ctx context.Context, identity auth.Identity, query string, limit int) ([]models.Lead, error) {
	args := m.Called(ctx, identity, query, limit)
	leads, _ := args.Get(0).([]models.Lead)
	return leads, args.Error(1)
}

func (m *mockLeadService) UpdateStage(ctx context.Context, identity auth.Identity, id string, stage models.LeadStage, lostReason *string) (*models.Lead, error) {
	args := m.Called(ctx, identity, id, stage, lostReason)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockLeadService) Update(ctx context.Context, identity auth.Identity, id string, input models.LeadInput) (*models.Lead, error) {
	args := m.Called(ctx, identity, id, input)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockLeadService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	return m.Called(ctx, identity, id).Error(0)
}

func (m *mockLeadService) Deduplicate(ctx context.Context, identity auth.Identity, dryRun bool) (*models.DeduplicationReport, error) {
	args := m.Called(ctx, identity, dryRun)
	report, _ := args.Get(0).(*models.DeduplicationReport)
	return report, args.Error(1)
}

func (m *mockLeadService) Import(ctx context.Context, identity auth.Identity, rows []models.LeadInput) []models.ImportRowResult {
	args := m.Called(ctx, identity, rows)
	results, _ := args.Get(0).([]models.ImportRowResult)
	return results
}

var testIdentity = auth.Identity{Subject: "user_1", OrgID: "org_1"}

func setupLeadRouter(svc LeadService) *gin.Engine {
	h := NewLeadHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(constants.ContextKeyIdentity, testIdentity)
		c.Next()
	})
	r.GET("/leads", h.List)
	r.POST("/leads", h.Create)
	r.POST("/leads/deduplicate", h.Deduplicate)
	r.POST("/leads/import", h.Import)
	r.GET("/leads/:id", h.Get)
	r.PATCH("/leads/:id/stage", h.UpdateStage)
	r.DELETE("/leads/:id", h.Delete)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLeadHandler_ListParsesFilters(t *testing.T) {
	svc := new(mockLeadService)
	expected := models.LeadFilter{
		Stages:       []models.LeadStage{models.StageNovo, models.StageQualificado},
		Temperatures: []models.Temperature{"quente"},
		Products:     []string{"curso-a"},
		Search:       "maria",
		Cursor:       "abc",
		Limit:        10,
	}
	svc.On("List", mock.Anything, testIdentity, expected).
		Return(&models.LeadPage{Page: []models.Lead{}, ContinueCursor: "next", IsDone: false}, nil)

	w := doJSON(setupLeadRouter(svc), http.MethodGet,
		"/leads?stages=novo,qualificado&temperature=quente&products=curso-a&search=maria&cursor=abc&limit=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var page models.LeadPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "next", page.ContinueCursor)
	svc.AssertExpectations(t)
}

func TestLeadHandler_Create(t *testing.T) {
	svc := new(mockLeadService)
	svc.On("Create", mock.Anything, testIdentity, mock.MatchedBy(func(in models.LeadInput) bool {
		return in.Name == "Maria Silva" && in.Phone == "11987654321"
	})).Return("lead-1", nil)

	w := doJSON(setupLeadRouter(svc), http.MethodPost, "/leads", map[string]interface{}{
		"name":              "Maria Silva",
		"phone":             "11987654321",
		"interestedProduct": "curso-a",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "lead-1", body["data"].(map[string]interface{})["id"])
	svc.AssertExpectations(t)
}

func TestLeadHandler_CreateRejectsInvalidPhone(t *testing.T) {
	svc := new(mockLeadService)

	w := doJSON(setupLeadRouter(svc), http.MethodPost, "/leads", map[string]interface{}{
		"name":  "Maria Silva",
		"phone": "123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeadHandler_GetNotFound(t *testing.T) {
	svc := new(mockLeadService)
	svc.On("Get", mock.Anything, testIdentity, "missing").Return(nil, apperrors.NewNotFoundError("Lead", "missing"))

	w := doJSON(setupLeadRouter(svc), http.MethodGet, "/leads/missing", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestLeadHandler_UpdateStage(t *testing.T) {
	svc := new(mockLeadService)
	reason := "preço"
	svc.On("UpdateStage", mock.Anything, testIdentity, "lead-1", models.LeadStage("perdido"), &reason).
		Return(&models.Lead{ID: "lead-1", Stage: "perdido"}, nil)

	w := doJSON(setupLeadRouter(svc), http.MethodPatch, "/leads/lead-1/stage", map[string]interface{}{
		"stage":      "perdido",
		"lostReason": "preço",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLeadHandler_UpdateStageRequiresStage(t *testing.T) {
	svc := new(mockLeadService)

	w := doJSON(setupLeadRouter(svc), http.MethodPatch, "/leads/lead-1/stage", map[string]interface{}{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLeadHandler_DeduplicateDefaultsToDryRun(t *testing.T) {
	svc := new(mockLeadService)
	svc.On("Deduplicate", mock.Anything, testIdentity, true).Return(&models.DeduplicationReport{DryRun: true}, nil)
	svc.On("Deduplicate", mock.Anything, testIdentity, false).Return(&models.DeduplicationReport{Removed: 2}, nil)

	r := setupLeadRouter(svc)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/leads/deduplicate", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPost, "/leads/deduplicate?dryRun=false", nil).Code)
	svc.AssertExpectations(t)
}

func TestLeadHandler_ImportRequiresRows(t *testing.T) {
	svc := new(mockLeadService)

	w := doJSON(setupLeadRouter(svc), http.MethodPost, "/leads/import", map[string]interface{}{"rows": []interface{}{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeadHandler_Delete(t *testing.T) {
	svc := new(mockLeadService)
	svc.On("Delete", mock.Anything, testIdentity, "lead-1").Return(nil)

	w := doJSON(setupLeadRouter(svc), http.MethodDelete, "/leads/lead-1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
