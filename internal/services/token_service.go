package services

import (
	"time"

	lens_errors "designlens/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AccountClaims identify the caller. Accounts are issued by the surrounding product; this
// service only verifies the token.
type AccountClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c AccountClaims) AccountID() string { return c.Subject }

type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

func (s *TokenService) Parse(tokenString string) (AccountClaims, error) {
	if tokenString == "" {
		return AccountClaims{}, lens_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, lens_errors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil {
		return AccountClaims{}, lens_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccountClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return AccountClaims{}, lens_errors.ErrUnauthorized
	}
	return *claims, nil
}

// Issue signs a token for accountID. Used by tooling and tests.
func (s *TokenService) Issue(accountID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccountClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
