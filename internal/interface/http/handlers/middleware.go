package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoSecret is returned when neither a secret nor a hash is configured.
var ErrNoSecret = errors.New("no API secret configured")

// UnauthorizedResponse is the 401 body.
type UnauthorizedResponse struct {
	Error string `json:"error"`
}

// BearerAuth checks "Authorization: Bearer <secret>". The secret is either
// configured in plain text or as a bcrypt hash; the hash wins when both are set.
type BearerAuth struct {
	secret []byte
	hash   []byte
}

// NewBearerAuth creates a BearerAuth. A malformed hash is rejected here so a
// typo in configuration fails at startup instead of on every request.
func NewBearerAuth(secret, bcryptHash string) (*BearerAuth, error) {
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
		}
		return &BearerAuth{hash: []byte(bcryptHash)}, nil
	}
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &BearerAuth{secret: []byte(secret)}, nil
}

// Valid reports whether token matches the configured secret.
func (a *BearerAuth) Valid(token string) bool {
	if token == "" {
		return false
	}
	if a.hash != nil {
		return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare(a.secret, []byte(token)) == 1
}

// Middleware rejects requests without a valid bearer token.
func (a *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || !a.Valid(token) {
			WriteJSON(w, http.StatusUnauthorized, UnauthorizedResponse{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain applies middlewares so the first one is outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
