package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestValidateMarketingLeadInput(t *testing.T) {
	valid := models.MarketingLeadInput{
		Name:        "Maria Silva",
		Email:       "maria@example.com",
		Phone:       "+55 11 98765-4321",
		LGPDConsent: true,
	}
	require.NoError(t, ValidateMarketingLeadInput(valid))

	invalid := valid
	invalid.Email = "nope"
	invalid.LGPDConsent = false

	err := ValidateMarketingLeadInput(invalid)
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.Len(t, verr.Details, 2)
}

func TestSplitName(t *testing.T) {
	first, last := splitName("  Maria   da Silva ")
	assert.Equal(t, "Maria", first)
	assert.Equal(t, "da Silva", last)

	first, last = splitName("Maria")
	assert.Equal(t, "Maria", first)
	assert.Empty(t, last)

	first, last = splitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}
