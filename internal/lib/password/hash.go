// Package password хеширует и проверяет пароли менторов через bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch возвращается, если пароль не соответствует хешу.
var ErrMismatch = errors.New("password mismatch")

// GetHash возвращает bcrypt-хеш пароля.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// CompareHash возвращает nil, если пароль соответствует хешу.
func CompareHash(hash, password string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
