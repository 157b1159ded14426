package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey ctxKey = "auth_user_id"
	claimsKey ctxKey = "auth_claims"
)

// ContextWithClaims attaches verified access-token claims to the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(claims.Subject))
	return context.WithValue(ctx, claimsKey, claims)
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// ClaimsFromContext returns the verified claims previously attached by the
// authentication middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	v, ok := ctx.Value(claimsKey).(*Claims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextAllows checks the context's claims snapshot against a required role.
// Missing claims deny.
func ContextAllows(ctx context.Context, required string) bool {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	return Allowed(claims.Roles, claims.Permissions, required)
}
