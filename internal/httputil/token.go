package httputil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// ServiceTokenHeader carries the service-to-service token.
	ServiceTokenHeader = "X-Service-Token"

	DefaultServiceTokenExpiry = time.Hour
)

// ServiceClaims identifies the calling service.
type ServiceClaims struct {
	ServiceID string `json:"service_id"`
	jwt.RegisteredClaims
}

// TokenSigner issues HS256 service tokens.
type TokenSigner struct {
	secret    []byte
	serviceID string
	expiry    time.Duration
	now       func() time.Time
}

func NewTokenSigner(secret []byte, serviceID string, expiry time.Duration) *TokenSigner {
	if expiry == 0 {
		expiry = DefaultServiceTokenExpiry
	}
	return &TokenSigner{secret: secret, serviceID: serviceID, expiry: expiry, now: time.Now}
}

// Sign returns a fresh token.
func (s *TokenSigner) Sign() (string, error) {
	now := s.now()
	claims := ServiceClaims{
		ServiceID: s.serviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.serviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyServiceToken checks an HS256 service token against secret.
func VerifyServiceToken(secret []byte, token string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid service token")
	}
	if claims.ServiceID == "" {
		return nil, errors.New("missing service_id claim")
	}
	return claims, nil
}
