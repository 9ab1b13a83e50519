package twofactor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	wan "github.com/go-webauthn/webauthn/webauthn"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// webauthnUser adapts model.User plus its persisted credentials to the
// go-webauthn User contract.
type webauthnUser struct {
	user        *model.User
	credentials []wan.Credential
}

func (u *webauthnUser) WebAuthnID() []byte              { return u.user.ID.Bytes() }
func (u *webauthnUser) WebAuthnName() string            { return u.user.Email }
func (u *webauthnUser) WebAuthnDisplayName() string      { return u.user.Email }
func (u *webauthnUser) WebAuthnIcon() string             { return "" }
func (u *webauthnUser) WebAuthnCredentials() []wan.Credential { return u.credentials }

// WebAuthn implements the Webauthn provider: per-credential registration
// and login, each ceremony round-tripped through a transient challenge
// row (kind 1003 register / 1004 login) so the server stays stateless
// between the Present and Verify calls.
type WebAuthn struct {
	RP         *wan.WebAuthn
	TwoFactors store.TwoFactors
}

// NewWebAuthn builds a relying-party handle for the given display name,
// ID and origin.
func NewWebAuthn(rpDisplayName, rpID, rpOrigin string, tf store.TwoFactors) (*WebAuthn, error) {
	rp, err := wan.New(&wan.Config{
		RPDisplayName: rpDisplayName,
		RPID:          rpID,
		RPOrigin:      rpOrigin,
	})
	if err != nil {
		return nil, err
	}
	return &WebAuthn{RP: rp, TwoFactors: tf}, nil
}

func (p *WebAuthn) Kind() model.TwoFactorKind { return model.TwoFactorWebauthn }

type credentialSet struct {
	Credentials []wan.Credential `json:"credentials"`
}

func (p *WebAuthn) loadCredentials(tf *model.TwoFactor) ([]wan.Credential, error) {
	if tf == nil || len(tf.Data) == 0 {
		return nil, nil
	}
	var set credentialSet
	if err := json.Unmarshal(tf.Data, &set); err != nil {
		return nil, err
	}
	return set.Credentials, nil
}

// Present begins registration (tf nil) or login (tf holding the user's
// existing credentials), persists the session in a transient challenge
// row, and returns the client-facing options to complete the ceremony.
func (p *WebAuthn) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	creds, err := p.loadCredentials(tf)
	if err != nil {
		return nil, err
	}
	wu := &webauthnUser{user: user, credentials: creds}

	challengeKind := model.TwoFactorWebauthnLoginChallenge
	var options any
	var session *wan.SessionData
	if tf == nil {
		challengeKind = model.TwoFactorWebauthnRegisterChallenge
		options, session, err = p.RP.BeginRegistration(wu)
	} else {
		options, session, err = p.RP.BeginLogin(wu)
	}
	if err != nil {
		return nil, err
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	if err := p.TwoFactors.SaveTwoFactor(ctx, &model.TwoFactor{
		UserID:  user.ID,
		Kind:    challengeKind,
		Data:    sessionJSON,
		Enabled: true,
	}); err != nil {
		return nil, err
	}

	return json.Marshal(options)
}

// Verify finishes whichever ceremony is pending for user (registration
// if tf is nil, login otherwise), consuming the transient challenge row.
// token is the raw JSON attestation/assertion response body.
func (p *WebAuthn) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	creds, err := p.loadCredentials(tf)
	if err != nil {
		return err
	}
	wu := &webauthnUser{user: user, credentials: creds}

	challengeKind := model.TwoFactorWebauthnLoginChallenge
	if tf == nil {
		challengeKind = model.TwoFactorWebauthnRegisterChallenge
	}
	challenge, err := p.TwoFactors.GetTwoFactor(ctx, user.ID, challengeKind)
	if err != nil {
		return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
	}
	var session wan.SessionData
	if err := json.Unmarshal(challenge.Data, &session); err != nil {
		return err
	}

	req := &http.Request{Body: io.NopCloser(bytes.NewReader([]byte(token)))}

	if tf == nil {
		cred, err := p.RP.FinishRegistration(wu, session, req)
		if err != nil {
			return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
		}
		creds = append(creds, *cred)
	} else {
		cred, err := p.RP.FinishLogin(wu, session, req)
		if err != nil {
			return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
		}
		if cred.Authenticator.CloneWarning {
			return &VerifyError{Err: errCredentialCloned{}, Event: model.EventUserFailedLogIn2FA}
		}
		for i, existing := range creds {
			if bytes.Equal(existing.ID, cred.ID) {
				creds[i] = *cred
			}
		}
	}

	if err := p.TwoFactors.DeleteTwoFactor(ctx, user.ID, challengeKind); err != nil {
		return err
	}

	payload, err := json.Marshal(credentialSet{Credentials: creds})
	if err != nil {
		return err
	}
	return p.TwoFactors.SaveTwoFactor(ctx, &model.TwoFactor{
		UserID:  user.ID,
		Kind:    model.TwoFactorWebauthn,
		Data:    payload,
		Enabled: true,
	})
}

type errCredentialCloned struct{}

func (errCredentialCloned) Error() string { return "webauthn credential signature counter regressed" }
