// Package jwt выпускает и проверяет токены доступа менторов.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для токена с неверной подписью, сроком или claims.
var ErrInvalidToken = errors.New("invalid token")

// Claims данные ментора в токене.
type Claims struct {
	MentorID string `json:"mentorId"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Maker выпускает и разбирает токены.
type Maker interface {
	GenerateToken(mentorID, email string) (string, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// MakerImpl подписывает токены HS256 общим секретом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// GenerateToken выпускает токен для ментора со сроком жизни tokenTTL.
func (m *MakerImpl) GenerateToken(mentorID, email string) (string, error) {
	const op = "jwt.GenerateToken"
	now := time.Now()
	claims := Claims{
		MentorID: mentorID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   mentorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок токена и возвращает его claims.
func (m *MakerImpl) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MentorID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
