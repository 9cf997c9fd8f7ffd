package bootstrap

import (
	"testing"

	"github.com/gpus/backend/internal/config"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsWeakEncryptionKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"unset", ""},
		{"too short", "short-key"},
		{"one below minimum", "123456789012345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fullConfig()
			cfg.EncryptionKey = tt.key
			cfg.JWTSecret = "jwt-secret"

			app, err := New(cfg)
			require.Error(t, err)
			assert.Nil(t, app)
			assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
		})
	}
}

func TestNewUnsetEncryptionKeyIsTyped(t *testing.T) {
	_, err := New(&config.Config{JWTSecret: "jwt-secret"})
	assert.ErrorIs(t, err, apperrors.ErrEncryptionKeyUnset)
}
