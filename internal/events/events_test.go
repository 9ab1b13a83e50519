package events

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
)

func TestRecordAndReadBack(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	org := &model.Organization{ID: uuid.Must(uuid.NewV4()), Name: "acme"}
	require.NoError(t, s.SaveOrganization(ctx, org))

	l := New(s)
	_, err := l.Record(ctx, Entry{
		Type:           model.EventUserLoggedIn,
		ActorUserID:    &user.ID,
		OrganizationID: &org.ID,
		IP:             "10.0.0.1",
		DeviceType:     model.DeviceDesktop,
	})
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour)
	byUser, err := l.ForUser(ctx, user.ID, since)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	require.Equal(t, model.EventUserLoggedIn, byUser[0].Type)

	byOrg, err := l.ForOrganization(ctx, org.ID, since)
	require.NoError(t, err)
	require.Len(t, byOrg, 1)
}

func TestPurge_RemovesOnlyOlderThanRetention(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "bob@x"}
	require.NoError(t, s.SaveUser(ctx, user))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &Log{Events: s, Now: func() time.Time { return now }}

	_, err := l.Record(ctx, Entry{Type: model.EventUserLoggedIn, ActorUserID: &user.ID})
	require.NoError(t, err)

	now = now.Add(48 * time.Hour)
	_, err = l.Record(ctx, Entry{Type: model.EventUserLoggedOut, ActorUserID: &user.ID})
	require.NoError(t, err)

	n, err := l.Purge(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	remaining, err := l.ForUser(ctx, user.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, model.EventUserLoggedOut, remaining[0].Type)
}
