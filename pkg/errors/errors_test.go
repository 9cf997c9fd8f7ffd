package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionErrorMessages(t *testing.T) {
	assert.Equal(t, "Permissão negada. Requer permissão: leads:write", NewPermissionError("leads:write").Error())
	assert.Equal(t, "Permissão negada. Role necessária: admin ou owner", NewRoleError("admin", "owner").Error())
}

func TestUnauthorizedDefaultMessage(t *testing.T) {
	assert.Equal(t, "Não autenticado. Faça login para continuar.", NewUnauthorizedError("").Error())
}

func TestStatusAndCodeThroughWrapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{NewNotFoundError("Lead", "1"), http.StatusNotFound, "NOT_FOUND"},
		{Invalid("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{NewConflictError("Tag", ""), http.StatusConflict, "CONFLICT"},
		{NewRateLimitError(""), http.StatusTooManyRequests, "RATE_LIMITED"},
		{NewServiceUnavailableError("Asaas", ErrCircuitOpen), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{fmt.Errorf("plain"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("context: %w", tc.err)
		assert.Equal(t, tc.status, GetHTTPStatus(wrapped))
		assert.Equal(t, tc.code, GetErrorCode(wrapped))
	}
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NewNotFoundError("Aluno", ""))))
	assert.True(t, IsPermission(NewPermissionError("all")))
	assert.True(t, IsServiceUnavailable(NewServiceUnavailableError("Asaas", nil)))
	assert.False(t, IsConflict(NewNotFoundError("Aluno", "")))
}

func TestToResponseIncludesValidationDetails(t *testing.T) {
	err := &ValidationError{Message: "Dados inválidos", Details: []string{"name"}}
	resp := ToResponse(err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Equal(t, []string{"name"}, resp.Details)
}
