// Package services provides external service integrations and technical concerns like send backends and tokens
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		"test-secret-key-for-jwt-signing-32-chars",
		15*time.Minute,
		"test-issuer",
		"test-audience",
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		secretKey   string
		expectError bool
	}{
		{
			name:        "valid configuration",
			secretKey:   "test-secret-key-for-jwt-signing-32-chars",
			expectError: false,
		},
		{
			name:        "missing secret key",
			secretKey:   "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(tt.secretKey, 15*time.Minute, "test-issuer", "test-audience")

			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, service)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	token, err := service.GenerateToken("operator-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Operator)
	assert.NotEmpty(t, claims.TokenID)
	assert.Greater(t, claims.Expiry, claims.IssuedAt)
}

func TestValidateTokenWrongKey(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	other, err := NewTokenService("another-secret-key-entirely-32-chars!!", 15*time.Minute, "test-issuer", "test-audience")
	require.NoError(t, err)

	token, err := other.GenerateToken("operator-1")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenExpired(t *testing.T) {
	service, err := NewTokenService("test-secret-key-for-jwt-signing-32-chars", -time.Minute, "test-issuer", "test-audience")
	require.NoError(t, err)

	token, err := service.GenerateToken("operator-1")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenWrongAudience(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	other, err := NewTokenService("test-secret-key-for-jwt-signing-32-chars", 15*time.Minute, "test-issuer", "another-audience")
	require.NoError(t, err)

	token, err := other.GenerateToken("operator-1")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenMalformed(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	tests := []string{
		"",
		"not-a-token",
		"aaaa.bbbb.cccc",
	}

	for _, token := range tests {
		_, err := service.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}
