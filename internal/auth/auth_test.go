package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTCarriesScope(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	cidade := int64(7)

	token, jti, err := mgr.GenerateAccessToken("42", "funcionario", []string{"atendente"}, Scope{CidadeID: &cidade})
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "funcionario", claims.Audience[0])
	assert.Equal(t, []string{"atendente"}, claims.Roles)
	require.NotNil(t, claims.CidadeID)
	assert.Equal(t, int64(7), *claims.CidadeID)
	assert.Nil(t, claims.DepartamentoID)
}

func TestJWTRejectsOtherSecret(t *testing.T) {
	a := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	b := NewJWTManager("fedcba9876543210fedcba9876543210", time.Minute)

	token, _, err := a.GenerateAccessToken("1", "usuario", []string{"municipe"}, Scope{})
	require.NoError(t, err)

	_, err = b.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestVerifyAcceptsArgonAndLegacyBcrypt(t *testing.T) {
	argon, err := Hash("segredo123")
	require.NoError(t, err)
	ok, err := Verify("segredo123", argon)
	require.NoError(t, err)
	assert.True(t, ok)

	legacy, err := HashBcrypt("segredo123")
	require.NoError(t, err)
	assert.True(t, IsLegacyHash(legacy))

	ok, err = Verify("segredo123", legacy)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("outra", legacy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetTokenHashIsStable(t *testing.T) {
	raw, hashed, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, hashed)
	assert.Equal(t, hashed, HashToken(raw))
}

func TestPrincipalCityAccess(t *testing.T) {
	cidade := int64(3)
	global := Principal{Kind: KindAdministrador, ID: 1, Role: RoleAdminGlobal}
	municipal := Principal{Kind: KindAdministrador, ID: 2, Role: RoleAdminCidade, CidadeID: &cidade}
	servidor := Principal{Kind: KindFuncionario, ID: 9, Role: RoleServidor, CidadeID: &cidade}

	assert.True(t, global.CanAccessCidade(99))
	assert.True(t, municipal.CanAccessCidade(3))
	assert.False(t, municipal.CanAccessCidade(4))
	assert.True(t, servidor.IsStaff())
	assert.False(t, servidor.IsAdmin())
	assert.True(t, servidor.HasRole(RoleAtendente, RoleServidor))
}

func TestAdminRoleRequiresAdministradorKind(t *testing.T) {
	forjado := Principal{Kind: KindUsuario, ID: 7, Role: RoleAdminGlobal}
	assert.False(t, forjado.IsAdmin())
	assert.False(t, forjado.IsGlobalAdmin())
	assert.False(t, forjado.CanAccessCidade(1))

	funcionario := Principal{Kind: KindFuncionario, ID: 8, Role: RoleAdminCidade}
	assert.False(t, funcionario.IsAdmin())

	admin := Principal{Kind: KindAdministrador, ID: 1, Role: RoleAdminGlobal}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsGlobalAdmin())
}

func TestPrincipalFromClaims(t *testing.T) {
	mgr := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	token, _, err := mgr.GenerateAccessToken("15", KindUsuario, []string{RoleMunicipe}, Scope{})
	require.NoError(t, err)
	claims, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)

	p, err := PrincipalFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, Principal{Kind: KindUsuario, ID: 15, Role: RoleMunicipe}, p)
}
