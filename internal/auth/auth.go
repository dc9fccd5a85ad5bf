// Package auth verifies caller identity on callable endpoints. Tokens are
// HS256 JWTs carrying a user_id claim; issuance happens upstream.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"bowlsbackend/internal/httpapi"
)

type contextKey string

const uidKey contextKey = "uid"

// UID returns the authenticated user's identifier, or "" when the request
// did not pass through Middleware.
func UID(ctx context.Context) string {
	if uid, ok := ctx.Value(uidKey).(string); ok {
		return uid
	}
	return ""
}

// WithUID is used by tests to fabricate an authenticated context.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

// Middleware rejects requests without a valid bearer token and puts the
// caller's uid in the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindUnauthenticated, "user is not authenticated"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindUnauthenticated, "invalid authorization header"))
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindUnauthenticated, "invalid or expired token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindUnauthenticated, "invalid token claims"))
				return
			}
			uid, ok := claims["user_id"].(string)
			if !ok || uid == "" {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindUnauthenticated, "token has no user_id"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUID(r.Context(), uid)))
		})
	}
}
