package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller identity carried inside an ERP-issued JWT. The token
// is verified by the ERP on every call; here it is only decoded for display
// and expiry checks, never trusted for authorization decisions.
type Identity struct {
	Subject   string    `json:"sub"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	TenantID  string    `json:"tenant_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ParseIdentity decodes the claims of an ERP bearer token without verifying
// its signature.
func ParseIdentity(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}

	id := &Identity{}
	if sub, err := claims.GetSubject(); err == nil {
		id.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if v, ok := claims["username"].(string); ok {
		id.Username = v
	}
	if v, ok := claims["full_name"].(string); ok {
		id.FullName = v
	}
	if tenant, ok := claims["tenant"].(map[string]any); ok {
		if v, ok := tenant["tenant_id"].(string); ok {
			id.TenantID = v
		}
	}
	return id, nil
}

// Expired reports whether the identity's token has passed its expiry.
func (id *Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}
