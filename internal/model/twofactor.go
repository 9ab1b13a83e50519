package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TwoFactorKind is a closed enum of 2FA provider/challenge types. Durable
// providers reserve 0-99, transient challenges 1000-1999, protected-action
// challenges 2000+.
type TwoFactorKind int

const (
	TwoFactorAuthenticator TwoFactorKind = iota // TOTP, 0
	TwoFactorEmail                               // 1
	TwoFactorDuo                                  // 2
	TwoFactorYubiKey                              // 3
	TwoFactorRecoveryCode                         // 4
	TwoFactorRemember                             // 5, pseudo-provider for device.TwoFactorRemember

	TwoFactorWebauthn TwoFactorKind = 7

	TwoFactorWebauthnRegisterChallenge TwoFactorKind = 1003
	TwoFactorWebauthnLoginChallenge    TwoFactorKind = 1004

	TwoFactorProtectedActionChallenge TwoFactorKind = 2000
)

// IsDurable reports whether kind is a persistent, user-enabled provider
// rather than a transient challenge row.
func (k TwoFactorKind) IsDurable() bool { return k >= 0 && k < 1000 }

// IsTransientChallenge reports whether kind is a short-lived challenge row.
func (k TwoFactorKind) IsTransientChallenge() bool { return k >= 1000 && k < 2000 }

// TwoFactor is a (user, kind) row. Data is a provider-specific JSON blob.
type TwoFactor struct {
	UserID   uuid.UUID
	Kind     TwoFactorKind
	Data     []byte
	Enabled  bool
	LastUsed int64 // monotonic time-step, replay protection
	CreatedAt time.Time
	UpdatedAt time.Time
}
