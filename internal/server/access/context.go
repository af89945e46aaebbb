package access

import (
	"context"

	"github.com/dmitrijs2005/taskcamp/internal/server/models"
)

type contextKey struct {
	name string
}

var (
	principalCtxKey = &contextKey{"principal"}
	grantCtxKey     = &contextKey{"grant"}
)

// Grant is one user's resolved role in one project.
type Grant struct {
	UserID    string
	ProjectID string
	Role      models.Role
}

// WithPrincipal stores the authenticated caller in ctx.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(*models.Principal)
	return p, ok && p != nil
}

// WithGrant stores the caller's resolved project role in ctx.
func WithGrant(ctx context.Context, g Grant) context.Context {
	return context.WithValue(ctx, grantCtxKey, g)
}

// GrantFromContext returns the role resolved by Gate.Authorize, if any.
func GrantFromContext(ctx context.Context) (Grant, bool) {
	g, ok := ctx.Value(grantCtxKey).(Grant)
	return g, ok
}
