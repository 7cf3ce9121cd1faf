package services

import (
	"testing"
	"time"

	lens_errors "designlens/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("secret")
	signed, err := tokens.Issue("acct-1", "member", time.Hour)
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID())
	assert.Equal(t, "member", claims.Role)
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := NewTokenService("secret")

	expired, err := tokens.Issue("acct-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.ErrorIs(t, err, lens_errors.ErrUnauthorized)

	foreign, err := NewTokenService("other").Issue("acct-1", "", time.Hour)
	require.NoError(t, err)
	_, err = tokens.Parse(foreign)
	assert.ErrorIs(t, err, lens_errors.ErrUnauthorized)

	_, err = tokens.Parse("")
	assert.ErrorIs(t, err, lens_errors.ErrUnauthorized)

	anonymous, err := tokens.Issue("", "", time.Hour)
	require.NoError(t, err)
	_, err = tokens.Parse(anonymous)
	assert.ErrorIs(t, err, lens_errors.ErrUnauthorized)
}
