package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gpus/backend/pkg/utils"
)

// Identity is the authenticated caller extracted from a JWT
type Identity struct {
	Subject        string   `json:"sub"`
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	OrgID          string   `json:"org_id,omitempty"`
	OrgRole        string   `json:"org_role,omitempty"`
	OrgPermissions []string `json:"org_permissions,omitempty"`
	TokenID        string   `json:"-"`
}

// OrganizationID returns the tenant of the caller. Users without an
// organization act inside a personal tenant keyed by their subject.
func (i Identity) OrganizationID() string {
	if i.OrgID != "" {
		return i.OrgID
	}
	return i.Subject
}

// Claims represents JWT claims as issued by the identity provider
type Claims struct {
	Name           string   `json:"name,omitempty"`
	Email          string   `json:"email,omitempty"`
	OrgID          string   `json:"org_id,omitempty"`
	OrgRole        string   `json:"org_role,omitempty"`
	OrgPermissions []string `json:"org_permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates tokens. HS256 tokens use the shared
// secret, RS256 tokens (identity provider) use the configured public key.
type TokenManager struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
}

// NewTokenManager creates a TokenManager. publicKeyPEM and issuer are optional.
func NewTokenManager(secret, publicKeyPEM, issuer string) (*TokenManager, error) {
	m := &TokenManager{secret: []byte(secret), issuer: issuer}
	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("invalid JWT public key: %w", err)
		}
		m.publicKey = key
	}
	if len(m.secret) == 0 && m.publicKey == nil {
		return nil, errors.New("JWT_SECRET or JWT_PUBLIC_KEY must be configured")
	}
	return m, nil
}

// GenerateToken creates an HS256 token for the identity
func (m *TokenManager) GenerateToken(identity Identity, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("token signing requires JWT_SECRET")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()

	claims := &Claims{
		Name:           identity.Name,
		Email:          identity.Email,
		OrgID:          identity.OrgID,
		OrgRole:        identity.OrgRole,
		OrgPermissions: identity.OrgPermissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        utils.GenerateID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates and parses a JWT token
func (m *TokenManager) ValidateToken(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "RS256"})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(m.secret) == 0 {
				return nil, errors.New("HS256 tokens are not accepted")
			}
			return m.secret, nil
		case *jwt.SigningMethodRSA:
			if m.publicKey == nil {
				return nil, errors.New("RS256 tokens are not accepted")
			}
			return m.publicKey, nil
		}
		return nil, errors.New("invalid signing method")
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &Identity{
		Subject:        claims.Subject,
		Name:           claims.Name,
		Email:          claims.Email,
		OrgID:          claims.OrgID,
		OrgRole:        claims.OrgRole,
		OrgPermissions: claims.OrgPermissions,
		TokenID:        claims.ID,
	}, nil
}
