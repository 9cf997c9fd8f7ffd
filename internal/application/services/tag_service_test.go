package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestTagService_Create(t *testing.T) {
	ctx := context.Background()
	tags := new(mockTagRepository)
	tags.On("FindByName", ctx, "org_1", "Quente").Return(nil, nil).Once()
	tags.On("Create", ctx, mock.MatchedBy(func(tag *models.Tag) bool {
		return tag.Name == "Quente" && tag.Color == DefaultTagColor && tag.OrganizationID == "org_1"
	})).Return(nil).Once()

	svc := NewTagService(Repositories{Tags: tags})
	tag, err := svc.Create(ctx, auth.Identity{Subject: "user_1", OrgID: "org_1"}, "  Quente ", "")
	require.NoError(t, err)

	assert.Equal(t, "user_1", tag.CreatedBy)
	assert.NotEmpty(t, tag.ID)
	tags.AssertExpectations(t)
}

func TestTagService_CreateDuplicateName(t *testing.T) {
	ctx := context.Background()
	tags := new(mockTagRepository)
	tags.On("FindByName", ctx, "org_1", "Quente").Return(&models.Tag{ID: "tag_1", Name: "Quente"}, nil).Once()

	svc := NewTagService(Repositories{Tags: tags})
	_, err := svc.Create(ctx, auth.Identity{Subject: "user_1", OrgID: "org_1"}, "Quente", "#ff0000")

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "Quente")
	tags.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTagService_CreateBlankName(t *testing.T) {
	tags := new(mockTagRepository)
	svc := NewTagService(Repositories{Tags: tags})

	_, err := svc.Create(context.Background(), auth.Identity{Subject: "user_1"}, "   ", "")
	assert.True(t, apperrors.IsValidation(err))
	tags.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything, mock.Anything)
}
