package registry_test

import (
	"encoding/hex"
	"testing"
	"time"

	registry "github.com/goliatone/go-registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	token, err := registry.NewResetToken()
	require.NoError(t, err)

	assert.Len(t, token, registry.ResetTokenLength*2)

	_, err = hex.DecodeString(token)
	assert.NoError(t, err, "token should be hex encoded")

	other, err := registry.NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestNewResetTokenLengthOverride(t *testing.T) {
	orig := registry.ResetTokenLength
	registry.ResetTokenLength = 8
	defer func() { registry.ResetTokenLength = orig }()

	token, err := registry.NewResetToken()
	require.NoError(t, err)
	assert.Len(t, token, 16)
}

func TestRandomPassword(t *testing.T) {
	pwd, err := registry.RandomPassword()
	require.NoError(t, err)

	assert.Len(t, pwd, registry.ResetPasswordLength*2)

	other, err := registry.RandomPassword()
	require.NoError(t, err)
	assert.NotEqual(t, pwd, other)
}

func TestNewResetCredentials(t *testing.T) {
	before := time.Now().UTC()

	creds, err := registry.NewResetCredentials()
	require.NoError(t, err)

	assert.NotEmpty(t, creds.Token)
	assert.NotEmpty(t, creds.Password)
	assert.NotEqual(t, creds.Token, creds.Password)

	wantExpiry := before.Add(registry.ResetExpiration)
	assert.WithinDuration(t, wantExpiry, creds.ExpiresAt, 5*time.Second)
}
