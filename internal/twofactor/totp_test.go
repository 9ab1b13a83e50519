package twofactor

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
)

// TestTOTP_S1_LoginAndReplay is scenario S1 plus invariant 5: a valid
// code accepted at a given time step cannot be replayed at that same
// step, and the provider persists last_used equal to the accepted step.
func TestTOTP_S1_LoginAndReplay(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	const secret = "JBSWY3DPEHPK3PXP"
	const step int64 = 58_123_456
	const code = "931895"

	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	tf := &model.TwoFactor{UserID: user.ID, Kind: model.TwoFactorAuthenticator, Data: []byte(secret), Enabled: true}
	require.NoError(t, s.SaveTwoFactor(ctx, tf))

	fixedNow := time.Unix(step*30, 0)
	p := &TOTP{Store: s, DisableTimeDrift: true, Now: func() time.Time { return fixedNow }}

	require.NoError(t, p.Verify(ctx, user, tf, code, "1.2.3.4"))
	require.Equal(t, step, tf.LastUsed)

	stored, err := s.GetTwoFactor(ctx, user.ID, model.TwoFactorAuthenticator)
	require.NoError(t, err)
	require.Equal(t, step, stored.LastUsed)

	err = p.Verify(ctx, user, stored, code, "1.2.3.4")
	require.Error(t, err)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, model.EventUserFailedLogIn2FA, verr.Event)
}

// TestTOTP_WrongCode rejects an unrelated code outright.
func TestTOTP_WrongCode(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4())}
	tf := &model.TwoFactor{UserID: user.ID, Kind: model.TwoFactorAuthenticator, Data: []byte("JBSWY3DPEHPK3PXP")}

	p := &TOTP{Store: s, DisableTimeDrift: true, Now: time.Now}
	err := p.Verify(ctx, user, tf, "000000", "1.2.3.4")
	require.Error(t, err)
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 32) // 20 bytes base32-encoded, padded
}
