package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"spendlog/internal/core"
)

const bcryptCost = bcrypt.DefaultCost

// HashPassword returns core.ErrPasswordTooLong for input bcrypt cannot hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", core.ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword returns core.ErrAuthentication when password does not match hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrAuthentication
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
