package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooWeak  = errors.New("password must be at least 8 characters and contain a letter")
	ErrPasswordMismatch = errors.New("password does not match")
)

const (
	// MinPasswordLength is the minimum password length
	MinPasswordLength = 8

	bcryptCost = 12
)

// IsPasswordValid reports whether a password meets the account policy:
// at least MinPasswordLength characters, at least one letter.
func IsPasswordValid(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	for _, r := range password {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// HashPassword validates the password against the account policy and
// returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if !IsPasswordValid(password) {
		return "", ErrPasswordTooWeak
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// VerifyPassword checks if the provided password matches the hash
func VerifyPassword(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}
