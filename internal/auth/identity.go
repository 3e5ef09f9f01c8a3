// Package auth extracts the caller identity supplied by the external
// identity provider. Authentication itself happens upstream; this package
// only verifies the provider's token signature and reads the subject.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"kasbuku/internal/core"
)

var (
	ErrInvalidToken = errors.New("invalid or expired identity token")
)

type contextKey string

const callerKey contextKey = "caller_id"

// Verifier resolves the caller identity of an HTTP request. With a
// configured secret it expects an HS256 bearer token and uses its subject
// claim; without one (local development) it trusts the X-Caller-ID header.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// CallerFromRequest returns the caller identity, or "" for an anonymous
// request. A malformed or badly signed token is an error, not anonymity.
func (v *Verifier) CallerFromRequest(r *http.Request) (core.CallerID, error) {
	if v.secret == nil {
		return core.CallerID(strings.TrimSpace(r.Header.Get("X-Caller-ID"))), nil
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("%w: authorization header is not a bearer token", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return core.CallerID(claims.Subject), nil
}

// WithCaller stores the caller identity in the request context.
func WithCaller(ctx context.Context, caller core.CallerID) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the caller stored by the identity middleware;
// "" means anonymous.
func CallerFromContext(ctx context.Context) core.CallerID {
	if id, ok := ctx.Value(callerKey).(core.CallerID); ok {
		return id
	}
	return ""
}
