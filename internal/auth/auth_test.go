package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
	"github.com/vaultkeep/server/internal/token"
	"github.com/vaultkeep/server/internal/twofactor"
)

// passLimiter is an always-allow fake, mirroring the teacher's
// fakeLimiter-in-test-file style for services that depend on an
// interface rather than a concrete backend.
type passLimiter struct {
	failures int
}

func (l *passLimiter) Allow(ctx context.Context, principal string, ipHash []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
func (l *passLimiter) Success(ctx context.Context, principal string, ipHash []byte) error { return nil }
func (l *passLimiter) Failure(ctx context.Context, principal string, ipHash []byte) (bool, time.Duration, error) {
	l.failures++
	return false, 0, nil
}

type fakeNotifier struct {
	loggedOutUser uuid.UUID
}

func (n *fakeNotifier) NotifyLogOut(ctx context.Context, userID uuid.UUID, exceptDeviceID uuid.UUID) error {
	n.loggedOutUser = userID
	return nil
}

func newEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	priv, pub, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	codec := token.New(priv, pub)
	registry := twofactor.NewRegistry(twofactor.NewTOTP(s))
	return New(s, s, s, s, &passLimiter{}, codec, registry, &fakeNotifier{}), s
}

func newTestUser(t *testing.T, s *memory.Store, email string) *model.User {
	t.Helper()
	salt, err := crypto.RandomBytes(16)
	require.NoError(t, err)
	masterHash := []byte("aGVsbG8=")
	user := &model.User{
		ID: uuid.Must(uuid.NewV4()), Email: email, Salt: salt, PasswordIterations: 100000,
		PasswordHash:  crypto.HashPassword(masterHash, salt, 100000),
		SecurityStamp: "stamp-v1",
	}
	require.NoError(t, s.SaveUser(context.Background(), user))
	return user
}

func TestPasswordLogin_Success(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	user := newTestUser(t, s, "alice@x")

	res, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "alice@x", MasterPasswordHash: []byte("aGVsbG8="),
		Device: DeviceInfo{ID: uuid.Must(uuid.NewV4()), Type: model.DeviceDesktop},
		Scope:  "api offline_access", ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	claims, err := e.Codec.VerifyLogin(res.AccessToken, e.StampChecker(ctx))
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), claims.UserID)
}

func TestPasswordLogin_WrongPassword(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	newTestUser(t, s, "alice@x")

	_, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "alice@x", MasterPasswordHash: []byte("wrong"),
		Device: DeviceInfo{ID: uuid.Must(uuid.NewV4())}, ClientIP: "1.2.3.4",
	})
	require.Error(t, err)
	require.Equal(t, errs.KindAuthenticationFailed, errs.KindOf(err))
}

func TestPasswordLogin_UnknownUserIndistinguishable(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "nobody@x", MasterPasswordHash: []byte("aGVsbG8="),
		Device: DeviceInfo{ID: uuid.Must(uuid.NewV4())}, ClientIP: "1.2.3.4",
	})
	require.Error(t, err)
	require.Equal(t, errs.KindAuthenticationFailed, errs.KindOf(err))
	require.Equal(t, "AuthenticationFailed: username or password is incorrect", err.Error())
}

func TestPasswordLogin_TwoFactorChallengeIssued(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	user := newTestUser(t, s, "alice@x")

	require.NoError(t, s.SaveTwoFactor(ctx, &model.TwoFactor{
		UserID: user.ID, Kind: model.TwoFactorAuthenticator, Data: []byte("JBSWY3DPEHPK3PXP"), Enabled: true,
	}))

	res, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "alice@x", MasterPasswordHash: []byte("aGVsbG8="),
		Device: DeviceInfo{ID: uuid.Must(uuid.NewV4())}, ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)
	require.True(t, res.TwoFactorRequired)
	require.Len(t, res.Challenges, 1)
	require.Equal(t, model.TwoFactorAuthenticator, res.Challenges[0].Kind)
}

// TestSecurityStamp_RevokesAccessToken is scenario S5 / invariant 1: a
// token minted before a password change is rejected afterward.
func TestSecurityStamp_RevokesAccessToken(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	user := newTestUser(t, s, "alice@x")
	deviceID := uuid.Must(uuid.NewV4())

	res, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "alice@x", MasterPasswordHash: []byte("aGVsbG8="),
		Device: DeviceInfo{ID: deviceID}, ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)

	newSalt, err := crypto.RandomBytes(16)
	require.NoError(t, err)
	require.NoError(t, e.SetPassword(ctx, user.ID, []byte("aGVsbG8="), []byte("bmV3cGFzcw=="), newSalt, 100000, deviceID))

	_, err = e.Codec.VerifyLogin(res.AccessToken, e.StampChecker(ctx))
	require.Error(t, err)
	require.Equal(t, errs.KindAuthenticationFailed, errs.KindOf(err))
}

func TestChangeEmail_LowercasesAndValidates(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	user := newTestUser(t, s, "alice@x.com")
	deviceID := uuid.Must(uuid.NewV4())

	err := e.ChangeEmail(ctx, user.ID, []byte("aGVsbG8="), "ALICE@Example.COM", deviceID)
	require.NoError(t, err)

	reloaded, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", reloaded.Email)
}

func TestChangeEmail_RejectsInvalidAddress(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	user := newTestUser(t, s, "alice@x.com")
	deviceID := uuid.Must(uuid.NewV4())

	err := e.ChangeEmail(ctx, user.ID, []byte("aGVsbG8="), "not-an-email", deviceID)
	require.Error(t, err)
	require.Equal(t, errs.KindValidationFailed, errs.KindOf(err))
}

func TestRefreshLogin_SurvivesUse(t *testing.T) {
	e, s := newEngine(t)
	ctx := context.Background()
	newTestUser(t, s, "alice@x")
	deviceID := uuid.Must(uuid.NewV4())

	res, err := e.PasswordLogin(ctx, PasswordLoginRequest{
		Email: "alice@x", MasterPasswordHash: []byte("aGVsbG8="),
		Device: DeviceInfo{ID: deviceID}, ClientIP: "1.2.3.4",
	})
	require.NoError(t, err)

	first, err := e.RefreshLogin(ctx, res.RefreshToken, "api")
	require.NoError(t, err)
	second, err := e.RefreshLogin(ctx, res.RefreshToken, "api")
	require.NoError(t, err)
	require.Equal(t, res.RefreshToken, first.RefreshToken)
	require.Equal(t, res.RefreshToken, second.RefreshToken)
}
