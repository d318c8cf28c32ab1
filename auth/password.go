package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPassword = errors.New("invalid password")

// PasswordChecker guards the single application password. The plain value is
// hashed once at startup and only the hash is kept.
type PasswordChecker struct {
	hash []byte
}

// NewPasswordChecker returns nil when password is empty, meaning login is not required.
func NewPasswordChecker(password string) (*PasswordChecker, error) {
	if password == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &PasswordChecker{hash: hash}, nil
}

// Enabled reports whether a password is configured.
func (p *PasswordChecker) Enabled() bool {
	return p != nil
}

func (p *PasswordChecker) Check(password string) error {
	if !p.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
