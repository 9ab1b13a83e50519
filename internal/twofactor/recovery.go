package twofactor

import (
	"context"
	"encoding/base32"
	"encoding/json"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// RecoveryCodeLen is the byte length of the generated recovery code.
const RecoveryCodeLen = 20

// RecoveryCode implements the single-use recovery-code provider: set on
// first 2FA enablement, its successful use disables every 2FA provider
// the user has configured.
type RecoveryCode struct {
	Users      store.Users
	TwoFactors store.TwoFactors
}

// NewRecoveryCode builds a RecoveryCode provider.
func NewRecoveryCode(users store.Users, tf store.TwoFactors) *RecoveryCode {
	return &RecoveryCode{Users: users, TwoFactors: tf}
}

func (p *RecoveryCode) Kind() model.TwoFactorKind { return model.TwoFactorRecoveryCode }

// GenerateCode returns a fresh base32-encoded recovery code.
func GenerateCode() (string, error) {
	raw, err := crypto.RandomBytes(RecoveryCodeLen)
	if err != nil {
		return "", err
	}
	return base32.StdEncoding.EncodeToString(raw), nil
}

// Present returns the user's current recovery code. The caller is
// responsible for requiring password reverification before exposing it.
func (p *RecoveryCode) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	return json.Marshal(struct {
		Code string `json:"code"`
	}{Code: user.TOTPRecover})
}

// Verify checks token in constant time against user.TOTPRecover and, on
// match, disables every durable 2FA provider the user has enabled.
func (p *RecoveryCode) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	if user.TOTPRecover == "" || !crypto.CtEq([]byte(user.TOTPRecover), []byte(token)) {
		return &VerifyError{Err: errInvalidRecoveryCode{}, Event: model.EventUserFailedLogIn2FA}
	}

	rows, err := p.TwoFactors.ListTwoFactorsByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	for _, tf := range rows {
		if !tf.Kind.IsDurable() {
			continue
		}
		if err := p.TwoFactors.DeleteTwoFactor(ctx, user.ID, tf.Kind); err != nil {
			return err
		}
	}

	user.TOTPRecover = ""
	return p.Users.SaveUser(ctx, user)
}

type errInvalidRecoveryCode struct{}

func (errInvalidRecoveryCode) Error() string { return "recovery code is incorrect" }
