package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestQueryHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?tags=a,b&tags=c&tags=%20&limit=abc&page=3&active=true&flag=nope", nil)

	assert.Equal(t, []string{"a", "b", "c"}, queryList(c, "tags"))
	assert.Nil(t, queryList(c, "missing"))
	assert.Equal(t, 25, queryInt(c, "limit", 25))
	assert.Equal(t, 3, queryInt(c, "page", 1))

	active := queryBool(c, "active")
	require.NotNil(t, active)
	assert.True(t, *active)
	assert.Nil(t, queryBool(c, "flag"))
}

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.NewValidationError("email", "Email inválido"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", apperrors.NewNotFoundError("Lead", "x"), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", apperrors.NewConflictError("Lead", ""), http.StatusConflict, "CONFLICT"},
		{"permission", apperrors.NewPermissionError("leads:write"), http.StatusForbidden, "PERMISSION_DENIED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondAppError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Contains(t, body, "data")
		})
	}
}

func TestRespondAppError_ValidationDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	RespondAppError(c, &apperrors.ValidationError{Field: "name", Message: "Nome curto", Details: []string{"Nome curto", "Email inválido"}})

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["details"], 2)
}
