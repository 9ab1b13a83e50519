package token

import (
	"testing"
	"time"

	"github.com/vaultkeep/server/internal/errs"
)

type fakeStamps struct {
	stamp string
	err   error
}

func (f fakeStamps) CurrentSecurityStamp(userID string) (string, error) {
	return f.stamp, f.err
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	priv, pub, err := LoadOrGenerateKeyPair(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrGenerateKeyPair: %v", err)
	}
	return New(priv, pub)
}

func TestLoginAccessRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	tok, exp, err := c.IssueLoginAccess("user-1", "device-1", "stamp-v1", "api offline_access", []string{"totp"})
	if err != nil {
		t.Fatalf("IssueLoginAccess: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expiry should be in the future")
	}

	claims, err := c.VerifyLogin(tok, fakeStamps{stamp: "stamp-v1"})
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if claims.UserID != "user-1" || claims.DeviceID != "device-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

// TestSecurityStampRotationInvalidatesToken covers spec invariant 1: a
// security-stamp rotation (password change, etc.) must invalidate every
// token minted under the old stamp.
func TestSecurityStampRotationInvalidatesToken(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	tok, _, err := c.IssueLoginAccess("user-1", "device-1", "stamp-v1", "api", nil)
	if err != nil {
		t.Fatalf("IssueLoginAccess: %v", err)
	}

	_, err = c.VerifyLogin(tok, fakeStamps{stamp: "stamp-v2"})
	if err == nil {
		t.Fatalf("expected verification failure after stamp rotation")
	}
	if errs.KindOf(err) != errs.KindAuthenticationFailed {
		t.Fatalf("expected KindAuthenticationFailed, got %v", errs.KindOf(err))
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)
	c.WithLifetime(KindEmailVerify, -1*time.Minute)

	tok, err := c.IssueEmailVerify("user-1")
	if err != nil {
		t.Fatalf("IssueEmailVerify: %v", err)
	}

	_, err = c.VerifyEmailVerify(tok)
	if err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
	if errs.KindOf(err) != errs.KindAuthenticationFailed {
		t.Fatalf("expected KindAuthenticationFailed, got %v", errs.KindOf(err))
	}
}

func TestWrongAudienceRejected(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	tok, err := c.IssueInvite("invitee@example.com", "org-1", "member-1")
	if err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}

	// An invite token must not verify as any other kind.
	if _, err := c.VerifyEmailVerify(tok); err == nil {
		t.Fatalf("expected invite token to fail email-verify audience check")
	}
	if _, err := c.VerifySend(tok); err == nil {
		t.Fatalf("expected invite token to fail send audience check")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	tok, err := c.IssueAdmin()
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	// The last base64url character of an Ed25519 signature carries its
	// final 2 bits; swap it for one that differs in those bits.
	repl := "A"
	if tok[len(tok)-1] == 'A' {
		repl = "Q"
	}
	tampered := tok[:len(tok)-1] + repl

	if _, err := c.VerifyAdmin(tampered); err == nil {
		t.Fatalf("expected tampered signature to be rejected")
	}
}

func TestCrossKeypairRejected(t *testing.T) {
	t.Parallel()
	c1 := newTestCodec(t)
	c2 := newTestCodec(t)

	tok, err := c1.IssueFileDownload("cipher-1", "attachment-1")
	if err != nil {
		t.Fatalf("IssueFileDownload: %v", err)
	}
	if _, err := c2.VerifyFileDownload(tok); err == nil {
		t.Fatalf("expected token signed by a different keypair to fail verification")
	}
}

func TestSendTokenRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	tok, err := c.IssueSend("send-1", "file-1")
	if err != nil {
		t.Fatalf("IssueSend: %v", err)
	}
	claims, err := c.VerifySend(tok)
	if err != nil {
		t.Fatalf("VerifySend: %v", err)
	}
	if claims.SendID != "send-1" || claims.FileID != "file-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
