// Package token implements the TokenCodec component: it signs and
// verifies the JWT-shaped tokens listed in spec section 4.2, using a
// per-install Ed25519 keypair persisted to the data directory on first run.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind identifies one of the token shapes TokenCodec issues. Each kind has
// its own audience tag so a token minted for one purpose can never be
// replayed as another.
type Kind string

const (
	KindLoginAccess   Kind = "login_access"
	KindRefresh       Kind = "refresh"
	KindInvite        Kind = "invite"
	KindEmailVerify   Kind = "email_verify"
	KindDeleteAccount Kind = "delete_account"
	KindFileDownload  Kind = "file_download"
	KindAdmin         Kind = "admin"
	KindSend          Kind = "send"
)

// Issuer is the constant issuer claim stamped on every token this codec
// mints; validation rejects any token whose issuer does not match.
const Issuer = "vaultkeep"

// Default lifetimes, per spec section 4.2. Construct a Codec with
// different values via WithLifetime for deployments that need to tune
// these (e.g. shorter LoginAccess TTL under a stricter policy).
var DefaultLifetimes = map[Kind]time.Duration{
	KindLoginAccess:   2 * time.Hour,
	KindInvite:        5 * 24 * time.Hour,
	KindEmailVerify:   5 * 24 * time.Hour,
	KindDeleteAccount: 2 * time.Hour,
	KindFileDownload:  5 * time.Minute,
	KindAdmin:         20 * time.Minute,
	KindSend:          5 * time.Minute,
	// KindRefresh tokens are opaque, store-backed and do not expire via JWT
	// claims (spec 4.2); they are invalidated only by security-stamp
	// rotation, handled in internal/auth.
}

// LoginAccessClaims is embedded in a token of KindLoginAccess.
type LoginAccessClaims struct {
	jwt.RegisteredClaims
	UserID        string   `json:"user_id"`
	DeviceID      string   `json:"device_id"`
	SecurityStamp string   `json:"security_stamp"`
	Scope         string   `json:"scope"`
	AMR           []string `json:"amr"` // 2FA methods used, e.g. ["totp"]
}

// InviteClaims is embedded in a token of KindInvite.
type InviteClaims struct {
	jwt.RegisteredClaims
	InviteeEmail   string `json:"invitee_email"`
	OrganizationID string `json:"organization_id,omitempty"`
	MemberID       string `json:"member_id,omitempty"`
}

// EmailVerifyClaims is embedded in a token of KindEmailVerify.
type EmailVerifyClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// DeleteAccountClaims is embedded in a token of KindDeleteAccount.
type DeleteAccountClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// FileDownloadClaims is embedded in a token of KindFileDownload.
type FileDownloadClaims struct {
	jwt.RegisteredClaims
	CipherID     string `json:"cipher_id"`
	AttachmentID string `json:"attachment_id"`
}

// AdminClaims is embedded in a token of KindAdmin. It carries no payload
// beyond issuer/expiry; possession alone grants admin-panel access.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// SendClaims is embedded in a token of KindSend.
type SendClaims struct {
	jwt.RegisteredClaims
	SendID string `json:"send_id"`
	FileID string `json:"file_id,omitempty"`
}
