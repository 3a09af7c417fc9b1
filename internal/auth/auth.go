// Package auth verifies the bearer tokens issued by the account service.
// Tokens are never minted here except by Sign, which exists for tests and
// local tooling.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims mirrors the account service token payload.
type Claims struct {
	ID    string     `json:"id"`
	Email string     `json:"email,omitempty"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
	Role   model.Role
}

// Verifier turns a raw token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier checks HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

func (v *JWTVerifier) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrNoToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c Claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if c.ID == "" {
		c.ID = c.Subject
	}
	if c.ID == "" {
		return Identity{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	if !c.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return Identity{UserID: c.ID, Email: c.Email, Role: c.Role}, nil
}

// Sign issues a token the verifier accepts.
func (v *JWTVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		ID:    id.UserID,
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// TokenFromRequest reads "Authorization: Bearer <t>" or, for WebSocket
// upgrades from browsers that cannot set headers, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return r.URL.Query().Get("token")
}

// FromRequest verifies the request's token.
func FromRequest(v Verifier, r *http.Request) (Identity, error) {
	return v.Verify(TokenFromRequest(r))
}
