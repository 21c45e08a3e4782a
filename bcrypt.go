package registry

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost factor used for every password hash.
// Tests may lower it to keep fixtures fast.
var HashCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash generates the hash of a throwaway random password.
// Used to seed placeholder accounts that should never authenticate with
// a known credential.
func RandomPasswordHash() string {
	pwd, err := RandomPassword()
	if err != nil {
		return RandomPasswordHash()
	}

	h, err := HashPassword(pwd)
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
