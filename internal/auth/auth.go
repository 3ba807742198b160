package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 11

type PasswordService interface {
	HashPassword(pswd string) (string, error)
	ComparePasswords(hashed, pswd []byte) error
}

type Core struct{}

func New() *Core {
	return &Core{}
}

func (a *Core) HashPassword(pswd string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pswd), bcryptCost)
	return string(bytes), err
}

func (a *Core) ComparePasswords(hashed, pswd []byte) error {
	if err := bcrypt.CompareHashAndPassword(hashed, pswd); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashToken returns the hex-encoded SHA-256 of a signed token string.
// Only this hash is ever persisted, never the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewCSRFToken generates a random CSRF token delivered via a
// non-HttpOnly cookie and echoed back in a request header.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CompareCSRF checks the header echo against the cookie value in
// constant time.
func CompareCSRF(cookie, header string) bool {
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}
