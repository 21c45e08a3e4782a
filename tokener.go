package registry

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ResetTokenLength is the number of random bytes in a reset token.
// Tokens are hex encoded, so the wire form is twice this long.
var ResetTokenLength = 20

// ResetPasswordLength is the number of random bytes in the replacement
// password written at token issuance.
var ResetPasswordLength = 10

// ResetExpiration is how long an issued reset token stays valid.
var ResetExpiration = time.Hour

// ResetCredentials is the material generated when a password reset is
// requested: an opaque token, a replacement password that invalidates the
// account's previous credential, and the token's expiry.
type ResetCredentials struct {
	Token     string
	Password  string
	ExpiresAt time.Time
}

// NewResetCredentials generates a fresh token and replacement password.
// The replacement password takes effect the moment the reset is issued,
// not when the token is redeemed.
func NewResetCredentials() (*ResetCredentials, error) {
	token, err := NewResetToken()
	if err != nil {
		return nil, err
	}

	password, err := RandomPassword()
	if err != nil {
		return nil, err
	}

	return &ResetCredentials{
		Token:     token,
		Password:  password,
		ExpiresAt: time.Now().UTC().Add(ResetExpiration),
	}, nil
}

// NewResetToken generates a cryptographically random, hex encoded token.
func NewResetToken() (string, error) {
	return randomHex(ResetTokenLength)
}

// RandomPassword generates a hex encoded random password.
func RandomPassword() (string, error) {
	return randomHex(ResetPasswordLength)
}

func randomHex(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
