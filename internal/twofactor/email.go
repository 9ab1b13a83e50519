package twofactor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Mailer is the narrow dependency Email needs to deliver a code. No type
// in this module outside tests implements it.
type Mailer interface {
	SendTwoFactorEmail(ctx context.Context, to, code string) error
}

// Email implements the on-demand emailed-code provider.
type Email struct {
	Store       store.TwoFactors
	Mailer      Mailer
	CodeDigits  int           // 6-255 per config
	TTL         time.Duration // code lifetime
	MaxAttempts int           // attempts before the code is discarded
}

// NewEmail builds an Email provider with sane defaults (6 digits, 5
// minute TTL, 3 attempts) overridable on the returned value.
func NewEmail(s store.TwoFactors, m Mailer) *Email {
	return &Email{Store: s, Mailer: m, CodeDigits: 6, TTL: 5 * time.Minute, MaxAttempts: 3}
}

func (p *Email) Kind() model.TwoFactorKind { return model.TwoFactorEmail }

type emailState struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Present generates and emails a fresh code, persisting its state so
// Verify can check it without re-deriving anything.
func (p *Email) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	code, err := crypto.GenerateEmailToken(p.CodeDigits)
	if err != nil {
		return nil, err
	}
	state := emailState{Code: code, ExpiresAt: time.Now().Add(p.TTL)}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	if err := p.Store.SaveTwoFactor(ctx, &model.TwoFactor{
		UserID: user.ID, Kind: model.TwoFactorEmail, Data: data, Enabled: true,
	}); err != nil {
		return nil, err
	}
	if err := p.Mailer.SendTwoFactorEmail(ctx, user.Email, code); err != nil {
		return nil, err
	}
	return json.Marshal(struct{}{})
}

// Verify checks token against the persisted code in constant time,
// enforcing expiry and a maximum attempt count before the code resets.
func (p *Email) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	var state emailState
	if err := json.Unmarshal(tf.Data, &state); err != nil {
		return err
	}

	if time.Now().After(state.ExpiresAt) {
		return &VerifyError{Err: errEmailCodeExpired{}, Event: model.EventUserFailedLogIn2FA}
	}
	if state.Attempts >= p.MaxAttempts {
		return &VerifyError{Err: errEmailCodeAttemptsExceeded{}, Event: model.EventUserFailedLogIn2FA}
	}

	if crypto.CtEq([]byte(state.Code), []byte(token)) {
		return nil
	}

	state.Attempts++
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tf.Data = data
	if err := p.Store.SaveTwoFactor(ctx, tf); err != nil {
		return err
	}
	return &VerifyError{Err: errEmailCodeMismatch{}, Event: model.EventUserFailedLogIn2FA}
}

type errEmailCodeExpired struct{}

func (errEmailCodeExpired) Error() string { return "email code expired" }

type errEmailCodeAttemptsExceeded struct{}

func (errEmailCodeAttemptsExceeded) Error() string { return "too many email code attempts" }

type errEmailCodeMismatch struct{}

func (errEmailCodeMismatch) Error() string { return "email code is incorrect" }
