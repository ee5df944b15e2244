package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleWorker   Role = "worker"
	RoleCustomer Role = "customer"
	RoleService  Role = "service"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleCustomer, RoleService, RoleAdmin:
		return true
	}
	return false
}

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT body. Subject is the worker, customer or service id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type Principal struct {
	Subject string
	Role    Role
}

// Is reports whether the principal has any of roles.
func (p Principal) Is(roles ...Role) bool {
	return slices.Contains(roles, p.Role)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func ExtractBearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// Signer issues and verifies HS256 tokens for one issuer.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret, issuer string) (*Signer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes")
	}
	return &Signer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (s *Signer) Sign(subject string, role Role, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is empty")
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) Verify(token string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return Principal{Subject: claims.Subject, Role: claims.Role}, nil
}
