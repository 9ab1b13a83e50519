package twofactor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
)

func TestRegistry_Dispatch(t *testing.T) {
	s := memory.New()
	totpP := NewTOTP(s)
	recoveryP := NewRecoveryCode(s, s)

	r := NewRegistry(totpP, recoveryP)

	p, ok := r.Provider(model.TwoFactorAuthenticator)
	require.True(t, ok)
	require.Equal(t, model.TwoFactorAuthenticator, p.Kind())

	p, ok = r.Provider(model.TwoFactorRecoveryCode)
	require.True(t, ok)
	require.Equal(t, model.TwoFactorRecoveryCode, p.Kind())

	_, ok = r.Provider(model.TwoFactorDuo)
	require.False(t, ok)
}
