package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/upb/card-control-plane/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for validated token claims
	ClaimsKey contextKey = "claims"

	// OrgIDKey is the context key for the authenticated organization
	OrgIDKey contextKey = "org_id"
)

// GetRequestIDFromContext returns the id assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *auth.ParsedClaims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.ParsedClaims)
	return claims
}

// WithClaims adds token claims and their organization to the context
func WithClaims(ctx context.Context, claims *auth.ParsedClaims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return WithOrgID(ctx, claims.OrgID)
}

// GetOrgIDFromContext retrieves the organization ID from context
func GetOrgIDFromContext(ctx context.Context) uuid.UUID {
	if orgID, ok := ctx.Value(OrgIDKey).(uuid.UUID); ok {
		return orgID
	}
	return uuid.Nil
}

// WithOrgID adds an organization ID to the context
func WithOrgID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}
