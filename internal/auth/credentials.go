package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Admin is the single configured admin identity.
type Admin struct {
	Username     string
	PasswordHash []byte
}

// NewAdmin builds the admin identity. An empty hash falls back to a hash of
// defaultPassword and reports usingDefault so the caller can warn about it.
func NewAdmin(username, passwordHash, defaultPassword string) (admin Admin, usingDefault bool, err error) {
	if passwordHash == "" {
		h, err := HashPassword(defaultPassword)
		if err != nil {
			return Admin{}, false, err
		}
		return Admin{Username: username, PasswordHash: []byte(h)}, true, nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return Admin{}, false, errors.New("admin password hash is not a bcrypt hash")
	}
	return Admin{Username: username, PasswordHash: []byte(passwordHash)}, false, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyLogin checks both fields. The bcrypt comparison always runs, so an
// unknown username costs the same as a wrong password and both fail alike.
func (a Admin) VerifyLogin(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
