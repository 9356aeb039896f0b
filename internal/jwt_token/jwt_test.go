package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "profilereg/pkg/domain"
	dErrors "profilereg/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

const principal id.Principal = "GALICE"

var expiresIn = time.Hour

func Test_GenerateToken(t *testing.T) {
	token, err := jwtService.GenerateToken(principal, PurposeBearer, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal.String(), claims.Subject)
	assert.Equal(t, PurposeBearer, claims.Purpose)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateToken_Rejects(t *testing.T) {
	_, err := jwtService.GenerateToken("", PurposeBearer, expiresIn)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = jwtService.GenerateToken(principal, "session", expiresIn)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateToken(principal, PurposeBearer, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongAudienceOrKey(t *testing.T) {
	token, err := NewJWTService("test-signing-key", "test-issuer", "other").GenerateToken(principal, PurposeBearer, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	token, err = NewJWTService("other-key", "test-issuer", "test-audience").GenerateToken(principal, PurposeBearer, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidatePrincipal_Purpose(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	cosign, err := jwtService.GenerateToken(principal, PurposeCosign, expiresIn)
	require.NoError(t, err)

	got, err := adapter.ValidateCosign(cosign)
	require.NoError(t, err)
	assert.Equal(t, principal, got)

	_, err = adapter.ValidateBearer(cosign)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "cosign token must not authenticate a caller")
}
