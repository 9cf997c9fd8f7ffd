package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret", "", "gpus")
	require.NoError(t, err)

	token, err := m.GenerateToken(Identity{
		Subject:        "user_1",
		Email:          "ana@example.com",
		OrgID:          "org_1",
		OrgRole:        "org:member",
		OrgPermissions: []string{"leads:read"},
	}, time.Hour)
	require.NoError(t, err)

	identity, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", identity.Subject)
	assert.Equal(t, "org_1", identity.OrganizationID())
	assert.Equal(t, []string{"leads:read"}, identity.OrgPermissions)
	assert.NotEmpty(t, identity.TokenID)
}

func TestValidateTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	signer, _ := NewTokenManager("one", "", "")
	verifier, _ := NewTokenManager("two", "", "")

	token, err := signer.GenerateToken(Identity{Subject: "u"}, time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)

	expired, err := signer.GenerateToken(Identity{Subject: "u"}, -time.Hour)
	require.NoError(t, err)
	// non-positive ttl falls back to the default lifetime
	_, err = signer.ValidateToken(expired)
	assert.NoError(t, err)
}

func TestNewTokenManagerRequiresKeyMaterial(t *testing.T) {
	_, err := NewTokenManager("", "", "")
	assert.Error(t, err)

	_, err = NewTokenManager("", "not a pem", "")
	assert.Error(t, err)
}

func TestOrganizationIDFallsBackToSubject(t *testing.T) {
	assert.Equal(t, "user_9", Identity{Subject: "user_9"}.OrganizationID())
}

func TestClaimsGrant(t *testing.T) {
	assert.True(t, ClaimsGrant(Identity{OrgRole: OrgAdminRole}, PermTeamManage))
	assert.True(t, ClaimsGrant(Identity{OrgPermissions: []string{"leads:write"}}, PermLeadsWrite))
	assert.True(t, ClaimsGrant(Identity{OrgPermissions: []string{"all"}}, PermStudentsWrite))
	assert.False(t, ClaimsGrant(Identity{OrgRole: "org:member"}, PermLeadsWrite))
}

func TestRoleHasPermission(t *testing.T) {
	assert.True(t, RoleHasPermission("owner", PermTeamManage))
	assert.True(t, RoleHasPermission("org:admin", PermLeadsWrite))
	assert.True(t, RoleHasPermission("sdr", PermLeadsWrite))
	assert.False(t, RoleHasPermission("cs", PermLeadsWrite))
	assert.False(t, RoleHasPermission("support", PermReportsRead))
	assert.False(t, RoleHasPermission("unknown", PermLeadsRead))
}

func TestIsAdminRole(t *testing.T) {
	assert.True(t, IsAdminRole("org:admin"))
	assert.True(t, IsAdminRole("owner"))
	assert.False(t, IsAdminRole("manager"))
}

func TestIdentityProofHashing(t *testing.T) {
	proof := "RG 12.345.678-9 frente e verso, com selfie anexada ao pedido de exclusao de dados"
	hash, err := HashIdentityProof(proof)
	require.NoError(t, err)

	assert.True(t, VerifyIdentityProof(proof, hash))
	assert.False(t, VerifyIdentityProof("outra prova qualquer", hash))
	assert.False(t, VerifyIdentityProof(proof, ""))
	assert.False(t, ValidIdentityProof("curta"))
	assert.True(t, ValidIdentityProof("1234567890"))
}
