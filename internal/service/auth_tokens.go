package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
)

const (
	tokenIssuer     = "finance-tracker"
	tokenTypeAccess = "access"
)

type accessClaims struct {
	Username string `json:"username"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// ValidateAccessToken checks signature, expiry (against the service clock),
// issuer and token type, and returns who the token belongs to.
func (s *AuthService) ValidateAccessToken(raw string) (*domain.TokenClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.signingKey,
		jwt.WithTimeFunc(s.clock),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err != nil:
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	case claims.Subject == "":
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	case claims.Type != tokenTypeAccess:
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return &domain.TokenClaims{UserID: claims.Subject, Username: claims.Username}, nil
}

func (s *AuthService) signingKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.jwtSecret, nil
}

func (s *AuthService) signAccessToken(userID, username string) (string, error) {
	issued := s.clock()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Username: username,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.accessTTL)),
		},
	}).SignedString(s.jwtSecret)
}
