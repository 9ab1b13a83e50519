package grpcserver

import (
	"context"

	"github.com/vaultkeep/server/internal/token"
)

type ctxKey string

const adminClaimsKey ctxKey = "vaultkeep.adminClaims"

// withAdminClaims stores a verified Admin token's claims in context, set
// once by AdminAuthUnary so handlers don't re-verify the bearer token.
func withAdminClaims(ctx context.Context, c *token.AdminClaims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, c)
}

// adminClaimsFromCtx fetches the claims AdminAuthUnary attached to ctx.
func adminClaimsFromCtx(ctx context.Context) (*token.AdminClaims, bool) {
	v, ok := ctx.Value(adminClaimsKey).(*token.AdminClaims)
	return v, ok
}
