package grpcserver

import (
	"context"
	"testing"

	"github.com/vaultkeep/server/internal/token"
)

func newTestCodec(t *testing.T) *token.Codec {
	t.Helper()
	priv, pub, err := token.LoadOrGenerateKeyPair(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrGenerateKeyPair: %v", err)
	}
	return token.New(priv, pub)
}

func TestWithAdminClaims_And_AdminClaimsFromCtx(t *testing.T) {
	t.Parallel()

	if _, ok := adminClaimsFromCtx(context.Background()); ok {
		t.Fatalf("expected no claims in empty ctx")
	}

	codec := newTestCodec(t)
	tok, err := codec.IssueAdmin()
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	claims, err := codec.VerifyAdmin(tok)
	if err != nil {
		t.Fatalf("VerifyAdmin: %v", err)
	}

	ctx := withAdminClaims(context.Background(), claims)
	got, ok := adminClaimsFromCtx(ctx)
	if !ok {
		t.Fatalf("expected claims in ctx")
	}
	if got != claims {
		t.Fatalf("mismatch: got %+v, want %+v", got, claims)
	}
}
