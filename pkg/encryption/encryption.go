// Package encryption protects personal data at rest (CPF, e-mail, phone,
// integration secrets) with AES-256-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

const (
	ivLength  = 12
	tagLength = 16

	// minEncryptedHexLength is IV + tag in hex, the size of an encrypted empty payload
	minEncryptedHexLength = (ivLength + tagLength) * 2

	// MinKeyLength is the shortest ENCRYPTION_KEY accepted at startup
	MinKeyLength = 16
)

var (
	ErrEncryptFailed = errors.New("Failed to encrypt sensitive data")
	ErrDecryptFailed = errors.New("Failed to decrypt sensitive data")
)

// Cipher encrypts and decrypts strings with a key derived from a passphrase
type Cipher struct {
	aead cipher.AEAD
}

// New derives the AES key as SHA-256(passphrase)
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, apperrors.ErrEncryptionKeyUnset
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns hex(IV || ciphertext || tag). Empty input stays empty.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", ErrEncryptFailed
	}
	sealed := c.aead.Seal(nil, iv, []byte(plain), nil)
	return hex.EncodeToString(append(iv, sealed...)), nil
}

// Decrypt reverses Encrypt. Empty input stays empty.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) < ivLength+tagLength {
		return "", ErrDecryptFailed
	}
	plain, err := c.aead.Open(nil, raw[:ivLength], raw[ivLength:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// EncryptCPF strips formatting before encrypting
func (c *Cipher) EncryptCPF(cpf string) (string, error) {
	return c.Encrypt(utils.OnlyDigits(cpf))
}

// DecryptCPF decrypts and formats as XXX.XXX.XXX-XX when the value has 11 digits
func (c *Cipher) DecryptCPF(encoded string) (string, error) {
	plain, err := c.Decrypt(encoded)
	if err != nil {
		return "", err
	}
	return FormatCPF(plain), nil
}

// DecryptIfEncrypted returns legacy plain values unchanged
func (c *Cipher) DecryptIfEncrypted(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	return c.Decrypt(value)
}

// ValidateConfig checks key length and runs a round trip self test
func ValidateConfig(passphrase string) error {
	if passphrase == "" {
		return apperrors.ErrEncryptionKeyUnset
	}
	if len(passphrase) < MinKeyLength {
		return fmt.Errorf("ENCRYPTION_KEY must have at least %d characters", MinKeyLength)
	}
	c, err := New(passphrase)
	if err != nil {
		return err
	}
	const sample = "lgpd-self-test"
	enc, err := c.Encrypt(sample)
	if err != nil {
		return err
	}
	dec, err := c.Decrypt(enc)
	if err != nil {
		return err
	}
	if dec != sample {
		return errors.New("encryption round trip mismatch")
	}
	return nil
}

// IsEncrypted reports whether s looks like an Encrypt output
func IsEncrypted(s string) bool {
	if len(s) < minEncryptedHexLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashSensitiveData returns a deterministic lookup hash
func HashSensitiveData(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:])
}

// HashCPF hashes only the digits so formatted and raw CPFs match
func HashCPF(cpf string) string {
	return HashSensitiveData(utils.OnlyDigits(cpf))
}

// FormatCPF renders 11 digits as XXX.XXX.XXX-XX
func FormatCPF(cpf string) string {
	d := utils.OnlyDigits(cpf)
	if len(d) != 11 {
		return cpf
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// MaskCPF keeps only the last two digits visible
func MaskCPF(cpf string) string {
	d := utils.OnlyDigits(cpf)
	if len(d) != 11 {
		return "***.***.***-**"
	}
	return "***.***.***-" + d[9:11]
}

// MaskEmail keeps the first letter of the local part and the domain
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
