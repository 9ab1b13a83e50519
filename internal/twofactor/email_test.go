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

type fakeMailer struct {
	lastCode string
	lastTo   string
}

func (m *fakeMailer) SendTwoFactorEmail(ctx context.Context, to, code string) error {
	m.lastTo, m.lastCode = to, code
	return nil
}

func TestEmail_PresentAndVerify(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "bob@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	mailer := &fakeMailer{}

	p := NewEmail(s, mailer)
	_, err := p.Present(ctx, user, nil)
	require.NoError(t, err)
	require.NotEmpty(t, mailer.lastCode)
	require.Equal(t, "bob@x", mailer.lastTo)

	tf, err := s.GetTwoFactor(ctx, user.ID, model.TwoFactorEmail)
	require.NoError(t, err)
	require.NoError(t, p.Verify(ctx, user, tf, mailer.lastCode, "1.2.3.4"))
}

func TestEmail_ExpiredCodeRejected(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "bob@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	p := NewEmail(s, &fakeMailer{})
	p.TTL = -time.Second

	_, err := p.Present(ctx, user, nil)
	require.NoError(t, err)
	tf, err := s.GetTwoFactor(ctx, user.ID, model.TwoFactorEmail)
	require.NoError(t, err)

	err = p.Verify(ctx, user, tf, "000000", "1.2.3.4")
	require.Error(t, err)
}

func TestEmail_AttemptsExhausted(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "bob@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	p := NewEmail(s, &fakeMailer{})
	p.MaxAttempts = 2

	_, err := p.Present(ctx, user, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		tf, err := s.GetTwoFactor(ctx, user.ID, model.TwoFactorEmail)
		require.NoError(t, err)
		require.Error(t, p.Verify(ctx, user, tf, "wrong", "1.2.3.4"))
	}

	tf, err := s.GetTwoFactor(ctx, user.ID, model.TwoFactorEmail)
	require.NoError(t, err)
	err = p.Verify(ctx, user, tf, "wrong", "1.2.3.4")
	require.Error(t, err)
	require.Contains(t, err.Error(), "too many")
}
