package services

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized      = errors.New("invalid password")
	ErrAuthNotConfigured = errors.New("inspector password not configured")
)

// AuthService checks the shared inspector password. A bcrypt hash takes
// precedence over a plain password.
type AuthService struct {
	password string
	hash     []byte
}

func NewAuthService(password, hash string) *AuthService {
	s := &AuthService{password: password}
	if hash != "" {
		s.hash = []byte(hash)
	}
	return s
}

func (s *AuthService) Configured() bool {
	return len(s.hash) > 0 || s.password != ""
}

func (s *AuthService) VerifyInspector(password string) error {
	switch {
	case len(s.hash) > 0:
		if bcrypt.CompareHashAndPassword(s.hash, []byte(password)) != nil {
			return ErrUnauthorized
		}
		return nil
	case s.password != "":
		if subtle.ConstantTimeCompare([]byte(s.password), []byte(password)) != 1 {
			return ErrUnauthorized
		}
		return nil
	}
	return ErrAuthNotConfigured
}
