// Package auth carries the per-request ERP credential through the request's
// call tree and provides the HTTP middleware that binds it.
//
// The credential travels on the context.Context, never as a parameter or a
// global: two concurrent requests each see only their own token, and code
// running outside a request (seeding, background jobs) sees none and falls
// back to the service-level token configured on the ERP client.
package auth

import (
	"context"
	"errors"
)

type contextKey string

const tokenKey contextKey = "erp-token"

// ErrNoCredential is returned when a downstream call requires a caller
// credential and neither a request token nor a service token is available.
var ErrNoCredential = errors.New("auth: no credential available")

// WithToken binds an ERP bearer token to the context.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFrom retrieves the bound ERP token, or "" if the context carries none.
func TokenFrom(ctx context.Context) string {
	if tok, ok := ctx.Value(tokenKey).(string); ok {
		return tok
	}
	return ""
}
