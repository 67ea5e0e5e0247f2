package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"authsvc/internal/domain/models"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSecret means the signing key is missing from configuration.
// This is a startup-time condition: the service must not come up
// without it.
var ErrNoSecret = errors.New("jwt signing secret is not configured")

const refreshTokenBytes = 64

// Claims carried by an access token.
type Claims struct {
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	jwtlib.RegisteredClaims
}

// Issuer signs access tokens with a process-wide HS256 secret.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewIssuer validates the secret once at startup.
func NewIssuer(secret, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}, nil
}

// TTL returns the configured access token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// IssueAccessToken creates a signed access token binding the user id,
// email, role name, verified flag and a unique jti.
func (i *Issuer) IssueAccessToken(user *models.User, roleName string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:         user.Email,
		Role:          roleName,
		EmailVerified: user.EmailVerified,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    i.issuer,
			Audience:  jwtlib.ClaimStrings{i.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseAccessToken validates the signature and expiry and returns the claims.
func (i *Issuer) ParseAccessToken(tokenString string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// NewRefreshTokenValue generates an opaque refresh token value from a
// cryptographically secure random source.
func NewRefreshTokenValue() (string, error) {
	bytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
