package twofactor

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// TOTPSecretLen is the byte length of a generated shared secret.
const TOTPSecretLen = 20

// TOTP implements the Authenticator provider: a base32 shared secret,
// 30-second steps, HMAC-SHA1, 6 digits.
type TOTP struct {
	Store            store.TwoFactors
	DisableTimeDrift bool // config: accept only the exact current step
	Now              func() time.Time
}

// NewTOTP builds a TOTP provider persisting watermark updates through s.
func NewTOTP(s store.TwoFactors) *TOTP { return &TOTP{Store: s, Now: time.Now} }

func (p *TOTP) Kind() model.TwoFactorKind { return model.TwoFactorAuthenticator }

// GenerateSecret returns a fresh base32-encoded shared secret.
func GenerateSecret() (string, error) {
	raw, err := crypto.RandomBytes(TOTPSecretLen)
	if err != nil {
		return "", err
	}
	return base32.StdEncoding.EncodeToString(raw), nil
}

type totpChallenge struct {
	Enabled bool   `json:"enabled"`
	Key     string `json:"key"`
}

// Present returns the currently configured secret if enabled, or a fresh
// one for the setup flow (the caller persists it only once the client
// proves possession via Verify).
func (p *TOTP) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	if tf != nil {
		return json.Marshal(totpChallenge{Enabled: true, Key: string(tf.Data)})
	}
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	return json.Marshal(totpChallenge{Enabled: false, Key: secret})
}

// Verify checks token against the secret in tf.Data, scanning a ±1 step
// window (disabled to ±0 when DisableTimeDrift is set) and rejecting any
// step at or before tf.LastUsed to prevent replay within the window.
func (p *TOTP) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	secret := string(tf.Data)

	steps := int64(1)
	if p.DisableTimeDrift {
		steps = 0
	}

	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	currentTimestamp := now.Unix()

	for step := -steps; step <= steps; step++ {
		timeStep := currentTimestamp/30 + step
		at := time.Unix(currentTimestamp+step*30, 0)

		generated, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
		}

		if generated == token {
			if timeStep <= tf.LastUsed {
				return &VerifyError{Err: errInvalidTOTP(now), Event: model.EventUserFailedLogIn2FA}
			}
			tf.LastUsed = timeStep
			return p.Store.SaveTwoFactor(ctx, tf)
		}
	}

	return &VerifyError{Err: errInvalidTOTP(now), Event: model.EventUserFailedLogIn2FA}
}

func errInvalidTOTP(now time.Time) error {
	return &invalidTOTPError{at: now}
}

type invalidTOTPError struct{ at time.Time }

func (e *invalidTOTPError) Error() string {
	return "invalid TOTP code at " + e.at.UTC().Format(time.RFC3339)
}
