/*
Package auth resolves the optional caller identity of a request.

Identities are issued elsewhere; this package only verifies bearer tokens.
A missing or invalid token resolves to no identity, and callers decide
whether an operation requires one.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is a verified caller.
type Identity struct {
	// UserID is the caller's UUID.
	UserID string
}

// Resolver maps a bearer token to an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, bool)
}

// Anonymous never resolves an identity.
type Anonymous struct{}

// Resolve always reports no identity.
func (Anonymous) Resolve(context.Context, string) (Identity, bool) {
	return Identity{}, false
}

// ErrNoSecret is returned when a JWTResolver is created without a secret.
var ErrNoSecret = errors.New("auth: jwt secret is required")

// JWTResolver verifies HS256 tokens whose subject claim is the user UUID.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
	logger *zap.Logger
}

// NewJWTResolver creates a resolver for tokens signed with secret. When
// audience is set, tokens must carry it in their aud claim.
func NewJWTResolver(secret, audience string, logger *zap.Logger) (*JWTResolver, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
		logger: logger,
	}, nil
}

// Resolve verifies token and returns the identity in its subject claim.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, err := r.parser.ParseWithClaims(token, &claims, r.keyFunc); err != nil {
		r.logger.Debug("rejected bearer token", zap.Error(err))
		return Identity{}, false
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		r.logger.Debug("bearer token subject is not a uuid", zap.String("sub", claims.Subject))
		return Identity{}, false
	}

	return Identity{UserID: claims.Subject}, true
}

func (r *JWTResolver) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return r.secret, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

var (
	_ Resolver = Anonymous{}
	_ Resolver = (*JWTResolver)(nil)
)
