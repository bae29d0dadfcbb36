package service

import (
	"testing"

	"github.com/Altrii-recovery/Altrii/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func authConfig(enabled bool, username, password, secret string) *config.Config {
	cfg := &config.Config{}
	cfg.Auth.Enabled = enabled
	cfg.Auth.Username = username
	cfg.Auth.Password = password
	cfg.Auth.JWTSecret = secret
	return cfg
}

func TestAuthenticateAndValidate(t *testing.T) {
	svc := NewAuthService(authConfig(true, "operator", "s3cret", "jwt-secret"))

	token, err := svc.Authenticate("operator", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(authConfig(true, "operator", "s3cret", "jwt-secret"))

	_, err := svc.Authenticate("operator", "wrong")
	assert.Error(t, err)
	_, err = svc.Authenticate("intruder", "s3cret")
	assert.Error(t, err)
}

func TestAuthenticateBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewAuthService(authConfig(true, "operator", string(hash), "jwt-secret"))

	_, err = svc.Authenticate("operator", "s3cret")
	assert.NoError(t, err)
	_, err = svc.Authenticate("operator", "wrong")
	assert.Error(t, err)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	svc := NewAuthService(authConfig(true, "operator", "s3cret", "jwt-secret"))
	other := NewAuthService(authConfig(true, "operator", "s3cret", "different-secret"))

	token, err := svc.Authenticate("operator", "s3cret")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestDisabledAuthPassesThrough(t *testing.T) {
	svc := NewAuthService(authConfig(false, "", "", ""))

	token, err := svc.Authenticate("anyone", "anything")
	require.NoError(t, err)
	assert.Empty(t, token)

	claims, err := svc.Validate("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", claims.Username)
}
