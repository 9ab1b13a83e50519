package main

import (
	"github.com/vaultkeep/server/internal/config"
	"github.com/vaultkeep/server/internal/store"
	"github.com/vaultkeep/server/internal/twofactor"
)

// buildTwoFactorRegistry registers every provider that needs no external
// credential unconditionally (TOTP, RecoveryCode) and each optional
// provider only when its required config fields are set — an operator
// who never configures Duo simply never sees it offered. The Email
// provider needs a twofactor.Mailer (an SMTP transport), which spec
// section 1 leaves as an external-collaborator concern, so it is left
// unregistered here.
func buildTwoFactorRegistry(cfg config.Config, st interface {
	store.Users
	store.TwoFactors
}) (*twofactor.Registry, error) {
	providers := []twofactor.Provider{
		twofactor.NewTOTP(st),
		twofactor.NewRecoveryCode(st, st),
	}

	if d := cfg.TwoFactor.Duo; d.IntegrationKey != "" && d.SecretKey != "" {
		providers = append(providers, twofactor.NewDuo(d.IntegrationKey, d.SecretKey, d.APIHost))
	}

	if w := cfg.TwoFactor.WebAuthn; w.RPID != "" {
		wa, err := twofactor.NewWebAuthn(w.RPDisplayName, w.RPID, w.RPOrigin, st)
		if err != nil {
			return nil, err
		}
		providers = append(providers, wa)
	}

	if y := cfg.TwoFactor.YubiKey; y.ClientID != "" && y.SecretKeyB64 != "" {
		yk, err := twofactor.NewYubiKey(y.ClientID, y.SecretKeyB64, y.Servers)
		if err != nil {
			return nil, err
		}
		providers = append(providers, yk)
	}

	return twofactor.NewRegistry(providers...), nil
}
