package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/encryption"
	"github.com/gpus/backend/pkg/utils"
)

var sensitiveSettingKeys = map[string]bool{
	"integration_asaas_api_key":        true,
	"integration_asaas_webhook_secret": true,
	"integration_evolution_key":        true,
	"integration_dify_key":             true,
}

// IsSensitiveSetting reports whether a setting value is stored encrypted and hidden from non-admins
func IsSensitiveSetting(key string) bool {
	return sensitiveSettingKeys[key] ||
		strings.HasSuffix(key, "_key") || strings.HasSuffix(key, "_secret") || strings.HasSuffix(key, "_token")
}

// SettingsService stores organization settings
type SettingsService struct {
	settings    ports.SettingRepository
	activities  ports.ActivityRepository
	users       ports.UserRepository
	permissions *PermissionService
	cipher      *encryption.Cipher
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repos Repositories, permissions *PermissionService, cipher *encryption.Cipher) *SettingsService {
	return &SettingsService{
		settings:    repos.Settings,
		activities:  repos.Activities,
		users:       repos.Users,
		permissions: permissions,
		cipher:      cipher,
	}
}

// List returns every setting with sensitive values decrypted. Admin only.
func (s *SettingsService) List(ctx context.Context, identity auth.Identity) ([]models.Setting, error) {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return nil, err
	}
	settings, err := s.settings.List(ctx, identity.OrganizationID())
	if err != nil {
		return nil, err
	}
	for i := range settings {
		settings[i].Value = s.reveal(settings[i])
	}
	return settings, nil
}

// Get returns the value of key. Sensitive values are nil for non-admins.
func (s *SettingsService) Get(ctx context.Context, identity auth.Identity, key string) (*string, error) {
	setting, err := s.settings.Get(ctx, identity.OrganizationID(), key)
	if err != nil || setting == nil {
		return nil, err
	}
	if IsSensitiveSetting(key) {
		if !s.permissions.IsOrgAdmin(ctx, identity) {
			return nil, nil
		}
		value := s.reveal(*setting)
		return &value, nil
	}
	return &setting.Value, nil
}

// Set stores a setting, encrypting sensitive values. Admin only.
func (s *SettingsService) Set(ctx context.Context, identity auth.Identity, key, value string) error {
	if err := s.requireAdmin(ctx, identity); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return apperrors.NewValidationError("key", "Chave é obrigatória")
	}

	orgID := identity.OrganizationID()
	actorID := actorUserID(ctx, s.users, identity)
	setting := &models.Setting{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		Key:            key,
		Value:          value,
		UpdatedBy:      actorID,
		UpdatedAt:      nowFunc(),
	}
	if IsSensitiveSetting(key) && value != "" {
		if s.cipher == nil {
			return apperrors.NewInternalError("Falha ao salvar configuração", apperrors.ErrEncryptionKeyUnset)
		}
		encrypted, err := s.cipher.Encrypt(value)
		if err != nil {
			return err
		}
		setting.Value = encrypted
		setting.Encrypted = true
	}
	if err := s.settings.Upsert(ctx, setting); err != nil {
		return err
	}

	if strings.HasPrefix(key, "integration_") {
		activity := newActivity(orgID, constants.ActivityIntegrationConfig, fmt.Sprintf("Integração configurada: %s", key))
		activity.UserID = utils.NonEmptyPtr(actorID)
		if err := s.activities.Create(ctx, activity); err != nil {
			log.Printf("⚠️ Failed to log integration change: %v", err)
		}
	}
	return nil
}

// IntegrationConfig returns the connection settings of an integration.
// Non-admins receive an empty config.
func (s *SettingsService) IntegrationConfig(ctx context.Context, identity auth.Identity, name string) (*models.IntegrationConfig, error) {
	cfg := &models.IntegrationConfig{Name: name}
	if !s.permissions.IsOrgAdmin(ctx, identity) {
		return cfg, nil
	}
	values, err := s.integrationValues(ctx, identity.OrganizationID(), name)
	if err != nil {
		return nil, err
	}
	if v, ok := values["base_url"]; ok {
		cfg.BaseURL = &v
	}
	if v, ok := values["api_key"]; ok {
		cfg.APIKey = &v
	}
	if v, ok := values["webhook_secret"]; ok {
		cfg.WebhookSecret = &v
	}
	return cfg, nil
}

// integrationValues collects integration_<name>_* settings without the admin check
func (s *SettingsService) integrationValues(ctx context.Context, orgID, name string) (map[string]string, error) {
	settings, err := s.settings.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	prefix := "integration_" + name + "_"
	out := map[string]string{}
	for _, setting := range settings {
		if strings.HasPrefix(setting.Key, prefix) {
			out[strings.TrimPrefix(setting.Key, prefix)] = s.reveal(setting)
		}
	}
	return out, nil
}

// reveal decrypts a sensitive value. Legacy plain-text values pass through.
func (s *SettingsService) reveal(setting models.Setting) string {
	if !IsSensitiveSetting(setting.Key) || s.cipher == nil {
		return setting.Value
	}
	value, err := s.cipher.DecryptIfEncrypted(setting.Value)
	if err != nil {
		log.Printf("⚠️ Failed to decrypt setting %s: %v", setting.Key, err)
		return setting.Value
	}
	return value
}

func (s *SettingsService) requireAdmin(ctx context.Context, identity auth.Identity) error {
	return s.permissions.RequireOrgRole(ctx, identity, auth.RoleAdmin, auth.RoleOwner)
}
