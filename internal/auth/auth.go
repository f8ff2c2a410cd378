// Package auth resolves bearer credential tokens to user identities.
package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token the gateway must treat as
// connection-fatal: expired, malformed, wrongly signed or missing a subject.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is a resolved user.
type Identity struct {
	UserID   int64
	Username string
}

// Resolver turns a credential token into an Identity.
type Resolver interface {
	ResolveToken(ctx context.Context, token string) (Identity, error)
}

// Claims are the JWT claims issued by the identity service. The subject claim
// carries the numeric user id.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver for the given signing secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// ResolveToken validates the token and extracts the identity.
func (r *JWTResolver) ResolveToken(_ context.Context, tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: userID, Username: claims.Username}, nil
}

// SignToken issues a token for a user. The server itself only verifies tokens;
// this is here for tooling and tests.
func (r *JWTResolver) SignToken(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}
