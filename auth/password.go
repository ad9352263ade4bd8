package auth

import (
	"errors"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password with bcrypt's default cost.
// Passwords longer than bcrypt accepts are a client error.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.BadRequest("Field 'password' must be at most 72 bytes")
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash. The OAuth2 sentinel
// never matches.
func CheckPassword(hash, password string) bool {
	if hash == models.OAuth2Password {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
