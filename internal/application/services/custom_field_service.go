package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// CustomFieldService manages extra attributes of leads and students
type CustomFieldService struct {
	repo        ports.CustomFieldRepository
	permissions *PermissionService
}

// NewCustomFieldService creates a new CustomFieldService
func NewCustomFieldService(repo ports.CustomFieldRepository, permissions *PermissionService) *CustomFieldService {
	return &CustomFieldService{repo: repo, permissions: permissions}
}

func validEntityType(entityType string) bool {
	return entityType == models.EntityLead || entityType == models.EntityStudent
}

// List returns the fields of an entity type ordered for display
func (s *CustomFieldService) List(ctx context.Context, identity auth.Identity, entityType string, includeInactive bool) ([]models.CustomField, error) {
	if !validEntityType(entityType) {
		return nil, apperrors.Invalid("Tipo de entidade inválido")
	}
	return s.repo.List(ctx, identity.OrganizationID(), entityType, includeInactive)
}

// Create defines a new field. Display order follows the active fields of the entity.
func (s *CustomFieldService) Create(ctx context.Context, identity auth.Identity, input models.CustomFieldInput) (*models.CustomField, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}
	if err := validateFieldInput(input); err != nil {
		return nil, err
	}

	orgID := identity.OrganizationID()
	count, err := s.repo.CountActive(ctx, orgID, input.EntityType)
	if err != nil {
		return nil, err
	}

	field := &models.CustomField{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(input.Name),
		FieldType:      input.FieldType,
		EntityType:     input.EntityType,
		Options:        input.Options,
		Required:       input.Required != nil && *input.Required,
		Active:         true,
		DisplayOrder:   count,
		CreatedAt:      nowFunc(),
	}
	if err := s.repo.Create(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

// Update changes the definition of a field. The entity type is fixed.
func (s *CustomFieldService) Update(ctx context.Context, identity auth.Identity, id string, input models.CustomFieldInput) (*models.CustomField, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}
	field, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		field.Name = name
	}
	if input.FieldType != "" {
		field.FieldType = input.FieldType
	}
	if input.Options != nil {
		field.Options = input.Options
	}
	if input.Required != nil {
		field.Required = *input.Required
	}
	if err := validateFieldInput(models.CustomFieldInput{
		Name: field.Name, FieldType: field.FieldType, EntityType: field.EntityType, Options: field.Options,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

// Delete deactivates a field. Stored values are kept.
func (s *CustomFieldService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return err
	}
	field, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return err
	}
	field.Active = false
	return s.repo.Update(ctx, field)
}

// SetValue validates and stores the value of one field for an entity
func (s *CustomFieldService) SetValue(ctx context.Context, identity auth.Identity, fieldID, entityID string, value interface{}) error {
	field, err := s.get(ctx, identity.OrganizationID(), fieldID)
	if err != nil {
		return err
	}
	return s.store(ctx, field, entityID, value)
}

// Values returns the stored values of an entity
func (s *CustomFieldService) Values(ctx context.Context, identity auth.Identity, entityType, entityID string) ([]models.CustomFieldValue, error) {
	return s.repo.ListValues(ctx, identity.OrganizationID(), entityType, entityID)
}

// ApplyValues validates a map of field id (or field name) to value and
// stores every entry. Nothing is written when one value is invalid.
func (s *CustomFieldService) ApplyValues(ctx context.Context, orgID, entityType, entityID string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	fields, err := s.repo.List(ctx, orgID, entityType, false)
	if err != nil {
		return err
	}

	type pending struct {
		field models.CustomField
		value interface{}
	}
	var writes []pending
	for key, value := range values {
		field, ok := matchField(fields, key)
		if !ok {
			return apperrors.Invalid(fmt.Sprintf("Campo personalizado não encontrado: %s", key))
		}
		if err := ValidateCustomFieldValue(field, value); err != nil {
			return err
		}
		writes = append(writes, pending{field: field, value: value})
	}

	for _, w := range writes {
		if err := s.write(ctx, w.field, entityID, w.value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCustomFieldValue checks a value against the field definition
func ValidateCustomFieldValue(field models.CustomField, value interface{}) error {
	err := validator.ValidateFieldValue(validator.FieldDefinition{
		Name:     field.Name,
		Type:     field.FieldType,
		Required: field.Required,
		Options:  field.Options,
	}, value)
	if err != nil {
		return apperrors.NewValidationError(field.Name, err.Error())
	}
	return nil
}

func (s *CustomFieldService) store(ctx context.Context, field *models.CustomField, entityID string, value interface{}) error {
	if err := ValidateCustomFieldValue(*field, value); err != nil {
		return err
	}
	return s.write(ctx, *field, entityID, value)
}

func (s *CustomFieldService) write(ctx context.Context, field models.CustomField, entityID string, value interface{}) error {
	return s.repo.UpsertValue(ctx, &models.CustomFieldValue{
		ID:             utils.GenerateID(),
		OrganizationID: field.OrganizationID,
		FieldID:        field.ID,
		EntityType:     field.EntityType,
		EntityID:       entityID,
		Value:          value,
		UpdatedAt:      nowFunc(),
	})
}

func (s *CustomFieldService) get(ctx context.Context, orgID, id string) (*models.CustomField, error) {
	field, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if field == nil {
		return nil, apperrors.NewNotFoundError("Campo personalizado", id)
	}
	return field, nil
}

func (s *CustomFieldService) requireAdmin(ctx context.Context, identity auth.Identity) error {
	return s.permissions.RequireOrgRole(ctx, identity, auth.RoleAdmin, auth.RoleOwner)
}

func matchField(fields []models.CustomField, key string) (models.CustomField, bool) {
	for _, f := range fields {
		if f.ID == key || strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return models.CustomField{}, false
}

func validateFieldInput(input models.CustomFieldInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperrors.NewValidationError("name", "Nome do campo é obrigatório")
	}
	if !validator.ValidFieldType(input.FieldType) {
		return apperrors.NewValidationError("fieldType", "Tipo de campo inválido")
	}
	if !validEntityType(input.EntityType) {
		return apperrors.NewValidationError("entityType", "Tipo de entidade inválido")
	}
	if (input.FieldType == validator.FieldSelect || input.FieldType == validator.FieldMultiselect) && len(input.Options) == 0 {
		return apperrors.NewValidationError("options", "Campos de seleção exigem opções")
	}
	return nil
}
