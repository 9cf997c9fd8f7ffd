package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
)

func TestAuditRetentionDays(t *testing.T) {
	assert.Equal(t, 20*365, AuditRetentionDays(models.CategoryAcademico))
	assert.Equal(t, 3*365, AuditRetentionDays(models.CategoryContato))
	assert.Equal(t, 7*365, AuditRetentionDays(models.CategoryIdentificacao))
	assert.Equal(t, 5*365, AuditRetentionDays("desconhecida"))
}

func TestStudentDataCategory(t *testing.T) {
	assert.Equal(t, models.CategoryIdentificacao, StudentDataCategory("cpf"))
	assert.Equal(t, models.CategoryContato, StudentDataCategory("phone"))
	assert.Equal(t, models.CategoryProfissional, StudentDataCategory("clinicCity"))
	assert.Equal(t, models.CategoryOutros, StudentDataCategory("products"))
}

func TestCorrectionError(t *testing.T) {
	tests := []struct {
		field, value string
		ok           bool
	}{
		{"name", "Maria Silva", true},
		{"name", "M", false},
		{"email", "maria@example.com", true},
		{"email", "maria@", false},
		{"phone", "(11) 98765-4321", true},
		{"phone", "1234", false},
		{"profession", "Fisioterapeuta", true},
		{"clinicName", "", true},
		{"clinicName", "X", false},
		{"clinicCity", "São Paulo", true},
		{"cpf", "12345678909", false},
	}
	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			msg := CorrectionError(tt.field, tt.value)
			if tt.ok {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
	assert.Equal(t, "Campo não permitido: cpf", CorrectionError("cpf", "123"))
}

func TestAnonymizeStudent(t *testing.T) {
	cpf := "123.456.789-09"
	hash := "abc"
	clinic := "Clínica Centro"
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	student := &models.Student{
		ID:         "0123456789abcdef",
		Name:       "Maria Silva",
		Email:      "maria@example.com",
		Phone:      "11987654321",
		CPF:        &cpf,
		CPFHash:    &hash,
		ClinicName: &clinic,
		Profession: "Fisioterapeuta",
	}

	AnonymizeStudent(student, now)

	assert.Equal(t, "[DELETED-01234567]", student.Name)
	assert.Equal(t, "deleted-1735787045@deleted.local", student.Email)
	assert.Equal(t, "[DELETED]", student.Phone)
	require.NotNil(t, student.CPF)
	assert.Equal(t, "[DELETED]", *student.CPF)
	assert.Nil(t, student.CPFHash)
	assert.Nil(t, student.ClinicName)
	assert.Equal(t, "Fisioterapeuta", student.Profession)
	assert.Equal(t, now, student.UpdatedAt)
}

func TestRenderExportCSV(t *testing.T) {
	export := map[string]interface{}{
		"student": map[string]interface{}{
			"name":     "Maria",
			"products": []string{"curso-a", "curso-b"},
		},
		"payments": []map[string]interface{}{
			{"value": 100.5},
		},
		"exportedAt": "2025-01-01T00:00:00Z",
	}

	out, err := RenderExportCSV(export)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"section,field,value",
		"exportedAt,,2025-01-01T00:00:00Z",
		"payments[0],value,100.5",
		"student,name,Maria",
		"student,products,curso-a|curso-b",
	}, lines)
}
