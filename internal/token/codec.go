package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultkeep/server/internal/errs"
)

// StampChecker is consulted by VerifyLogin to confirm a LoginAccess token's
// embedded security stamp still matches the user's current one. Rotating
// the stamp — on password change, KDF change, email change, 2FA change, or
// an explicit reset — invalidates every token issued before the rotation
// (spec invariant 1).
type StampChecker interface {
	CurrentSecurityStamp(userID string) (string, error)
}

// Codec signs and verifies every token kind from spec section 4.2.
type Codec struct {
	priv      ed25519.PrivateKey
	pub       ed25519.PublicKey
	lifetimes map[Kind]time.Duration
}

// New constructs a Codec from a persisted or freshly generated keypair.
func New(priv ed25519.PrivateKey, pub ed25519.PublicKey) *Codec {
	lifetimes := make(map[Kind]time.Duration, len(DefaultLifetimes))
	for k, v := range DefaultLifetimes {
		lifetimes[k] = v
	}
	return &Codec{priv: priv, pub: pub, lifetimes: lifetimes}
}

// WithLifetime overrides the TTL for one token kind and returns the codec
// for chaining.
func (c *Codec) WithLifetime(kind Kind, d time.Duration) *Codec {
	c.lifetimes[kind] = d
	return c
}

func (c *Codec) registered(kind Kind, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	rc := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if ttl != 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return rc
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return tok.SignedString(c.priv)
}

// IssueLoginAccess mints a LoginAccess token (spec 4.2, 4.5 step 8).
func (c *Codec) IssueLoginAccess(userID, deviceID, securityStamp, scope string, amr []string) (string, time.Time, error) {
	claims := LoginAccessClaims{
		RegisteredClaims: c.registered(KindLoginAccess, string(KindLoginAccess), c.lifetimes[KindLoginAccess]),
		UserID:           userID,
		DeviceID:         deviceID,
		SecurityStamp:    securityStamp,
		Scope:            scope,
		AMR:              amr,
	}
	signed, err := c.sign(claims)
	return signed, claims.ExpiresAt.Time, err
}

// VerifyLogin validates a LoginAccess token's signature, audience, issuer,
// expiry and — critically — that its embedded security stamp still matches
// the user's current one (spec invariant 1).
func (c *Codec) VerifyLogin(tokenString string, stamps StampChecker) (*LoginAccessClaims, error) {
	var claims LoginAccessClaims
	if err := c.parseAndValidate(tokenString, string(KindLoginAccess), &claims); err != nil {
		return nil, err
	}
	current, err := stamps.CurrentSecurityStamp(claims.UserID)
	if err != nil {
		return nil, errs.Wrap(errs.KindAuthenticationFailed, "load security stamp", err)
	}
	if current != claims.SecurityStamp {
		return nil, errs.New(errs.KindAuthenticationFailed, "security stamp mismatch: session revoked")
	}
	return &claims, nil
}

// IssueInvite mints an Invite token.
func (c *Codec) IssueInvite(inviteeEmail, orgID, memberID string) (string, error) {
	claims := InviteClaims{
		RegisteredClaims: c.registered(KindInvite, string(KindInvite), c.lifetimes[KindInvite]),
		InviteeEmail:     inviteeEmail,
		OrganizationID:   orgID,
		MemberID:         memberID,
	}
	return c.sign(claims)
}

// VerifyInvite validates an Invite token.
func (c *Codec) VerifyInvite(tokenString string) (*InviteClaims, error) {
	var claims InviteClaims
	if err := c.parseAndValidate(tokenString, string(KindInvite), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// IssueEmailVerify mints an EmailVerify token.
func (c *Codec) IssueEmailVerify(userID string) (string, error) {
	claims := EmailVerifyClaims{
		RegisteredClaims: c.registered(KindEmailVerify, string(KindEmailVerify), c.lifetimes[KindEmailVerify]),
		UserID:           userID,
	}
	return c.sign(claims)
}

// VerifyEmailVerify validates an EmailVerify token.
func (c *Codec) VerifyEmailVerify(tokenString string) (*EmailVerifyClaims, error) {
	var claims EmailVerifyClaims
	if err := c.parseAndValidate(tokenString, string(KindEmailVerify), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// IssueDeleteAccount mints a DeleteAccount token.
func (c *Codec) IssueDeleteAccount(userID string) (string, error) {
	claims := DeleteAccountClaims{
		RegisteredClaims: c.registered(KindDeleteAccount, string(KindDeleteAccount), c.lifetimes[KindDeleteAccount]),
		UserID:           userID,
	}
	return c.sign(claims)
}

// VerifyDeleteAccount validates a DeleteAccount token.
func (c *Codec) VerifyDeleteAccount(tokenString string) (*DeleteAccountClaims, error) {
	var claims DeleteAccountClaims
	if err := c.parseAndValidate(tokenString, string(KindDeleteAccount), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// IssueFileDownload mints a FileDownload token.
func (c *Codec) IssueFileDownload(cipherID, attachmentID string) (string, error) {
	claims := FileDownloadClaims{
		RegisteredClaims: c.registered(KindFileDownload, string(KindFileDownload), c.lifetimes[KindFileDownload]),
		CipherID:         cipherID,
		AttachmentID:     attachmentID,
	}
	return c.sign(claims)
}

// VerifyFileDownload validates a FileDownload token.
func (c *Codec) VerifyFileDownload(tokenString string) (*FileDownloadClaims, error) {
	var claims FileDownloadClaims
	if err := c.parseAndValidate(tokenString, string(KindFileDownload), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// IssueAdmin mints an Admin token.
func (c *Codec) IssueAdmin() (string, error) {
	claims := AdminClaims{RegisteredClaims: c.registered(KindAdmin, string(KindAdmin), c.lifetimes[KindAdmin])}
	return c.sign(claims)
}

// VerifyAdmin validates an Admin token.
func (c *Codec) VerifyAdmin(tokenString string) (*AdminClaims, error) {
	var claims AdminClaims
	if err := c.parseAndValidate(tokenString, string(KindAdmin), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// IssueSend mints a Send token.
func (c *Codec) IssueSend(sendID, fileID string) (string, error) {
	claims := SendClaims{
		RegisteredClaims: c.registered(KindSend, string(KindSend), c.lifetimes[KindSend]),
		SendID:           sendID,
		FileID:           fileID,
	}
	return c.sign(claims)
}

// VerifySend validates a Send token.
func (c *Codec) VerifySend(tokenString string) (*SendClaims, error) {
	var claims SendClaims
	if err := c.parseAndValidate(tokenString, string(KindSend), &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// parseAndValidate verifies signature, issuer and audience, then runs the
// standard expiry/not-before validation. On any failure it returns a
// structured errs.Error carrying a kind suitable for the caller to map
// straight to a transport response, per spec section 7 ("Validation
// rejects expired, wrong-audience, wrong-issuer, or tampered tokens,
// returning a structured error kind").
func (c *Codec) parseAndValidate(tokenString, audience string, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(audience),
		jwt.WithLeeway(30*time.Second),
	)
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errs.Wrap(errs.KindAuthenticationFailed, "token expired", err)
		}
		return errs.Wrap(errs.KindAuthenticationFailed, fmt.Sprintf("invalid %s token", audience), err)
	}
	if !tok.Valid {
		return errs.New(errs.KindAuthenticationFailed, fmt.Sprintf("invalid %s token", audience))
	}
	return nil
}
