package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gpus/backend/pkg/errors"
)

const testKey = "0123456789abcdef-test-key"

func TestEncryptDecrypt(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("maria@example.com")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.NotContains(t, enc, "maria")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", dec)

	again, _ := c.Encrypt("maria@example.com")
	assert.NotEqual(t, enc, again, "random IV per call")
}

func TestEmptyValuesPassThrough(t *testing.T) {
	c, _ := New(testKey)
	enc, err := c.Encrypt("")
	assert.NoError(t, err)
	assert.Equal(t, "", enc)
	dec, err := c.Decrypt("")
	assert.NoError(t, err)
	assert.Equal(t, "", dec)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a, _ := New(testKey)
	b, _ := New("another-key-with-length")

	enc, _ := a.Encrypt("segredo")
	_, err := b.Decrypt(enc)
	assert.ErrorIs(t, err, ErrDecryptFailed)
	assert.Equal(t, "Failed to decrypt sensitive data", err.Error())

	_, err = a.Decrypt("zz-not-hex")
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, apperrors.ErrEncryptionKeyUnset)
}

func TestCPFHelpers(t *testing.T) {
	c, _ := New(testKey)
	enc, err := c.EncryptCPF("529.982.247-25")
	require.NoError(t, err)

	plain, _ := c.Decrypt(enc)
	assert.Equal(t, "52998224725", plain)

	formatted, err := c.DecryptCPF(enc)
	require.NoError(t, err)
	assert.Equal(t, "529.982.247-25", formatted)

	assert.Equal(t, HashCPF("529.982.247-25"), HashCPF("52998224725"))
	assert.Equal(t, "***.***.***-25", MaskCPF("52998224725"))
}

func TestHashSensitiveDataNormalizes(t *testing.T) {
	assert.Equal(t, HashSensitiveData("Ana@Example.com "), HashSensitiveData("ana@example.com"))
	assert.Len(t, HashSensitiveData("x"), 64)
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", MaskEmail(" ana.souza@example.com"))
	assert.Equal(t, "x***@gpus.com.br", MaskEmail("x@gpus.com.br"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail(""))
}

func TestIsEncrypted(t *testing.T) {
	assert.False(t, IsEncrypted("52998224725"))
	assert.False(t, IsEncrypted(strings.Repeat("g", 60)))
	assert.True(t, IsEncrypted(strings.Repeat("ab", 28)))
}

func TestDecryptIfEncryptedKeepsLegacyValues(t *testing.T) {
	c, _ := New(testKey)
	v, err := c.DecryptIfEncrypted("(11) 99999-0000")
	assert.NoError(t, err)
	assert.Equal(t, "(11) 99999-0000", v)
}

func TestValidateConfig(t *testing.T) {
	assert.ErrorIs(t, ValidateConfig(""), apperrors.ErrEncryptionKeyUnset)
	assert.Error(t, ValidateConfig("short"))
	assert.NoError(t, ValidateConfig(testKey))
}
