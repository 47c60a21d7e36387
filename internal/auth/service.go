package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication itself is delegated to the external identity provider; this
// package only validates the session tokens it issues and extracts the stable
// user id from the subject claim.

var ErrInvalidToken = errors.New("invalid token")

type Service interface {
	ValidateToken(token string) (userID string, err error)
	// IssueToken mints a token for the given user id. Used by local tooling
	// and tests; production tokens come from the identity provider.
	IssueToken(userID string, ttl time.Duration) (string, error)
}

type service struct {
	secret []byte
}

func NewService(secret string) Service {
	return &service{secret: []byte(secret)}
}

var _ Service = (*service)(nil)

func (s *service) ValidateToken(token string) (string, error) {
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *service) IssueToken(userID string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}
