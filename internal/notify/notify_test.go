package notify

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
)

func TestCipherRecipients_PersonalAccessAllAndCollectionGrant(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	org := &model.Organization{ID: uuid.Must(uuid.NewV4()), Name: "acme"}
	require.NoError(t, s.SaveOrganization(ctx, org))

	ownerAccessAll := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "owner@x"}
	directGrantee := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "direct@x"}
	unrelated := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "outside@x"}
	for _, u := range []*model.User{ownerAccessAll, directGrantee, unrelated} {
		require.NoError(t, s.SaveUser(ctx, u))
	}

	require.NoError(t, s.SaveMembership(ctx, &model.Membership{
		ID: uuid.Must(uuid.NewV4()), UserID: ownerAccessAll.ID, OrganizationID: org.ID,
		Status: model.MembershipConfirmed, AccessAll: true,
	}))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{
		ID: uuid.Must(uuid.NewV4()), UserID: directGrantee.ID, OrganizationID: org.ID,
		Status: model.MembershipConfirmed,
	}))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{
		ID: uuid.Must(uuid.NewV4()), UserID: unrelated.ID, OrganizationID: org.ID,
		Status: model.MembershipConfirmed,
	}))

	collection := &model.Collection{ID: uuid.Must(uuid.NewV4()), OrganizationID: org.ID, Name: "c1"}
	require.NoError(t, s.SaveCollection(ctx, collection))
	require.NoError(t, s.SaveCollectionUser(ctx, &model.CollectionUser{CollectionID: collection.ID, UserID: directGrantee.ID}))

	cipher := &model.Cipher{ID: uuid.Must(uuid.NewV4()), OrganizationID: &org.ID, Type: model.CipherLogin, Data: []byte("ct")}
	require.NoError(t, s.SaveCipher(ctx, cipher))
	require.NoError(t, s.SaveCollectionCipher(ctx, &model.CollectionCipher{CollectionID: collection.ID, CipherID: cipher.ID}))

	svc := New(NewHub(), nil, s, s)
	recipients, err := svc.CipherRecipients(ctx, org.ID, cipher.ID)
	require.NoError(t, err)

	ids := map[uuid.UUID]bool{}
	for _, id := range recipients {
		ids[id] = true
	}
	require.True(t, ids[ownerAccessAll.ID])
	require.True(t, ids[directGrantee.ID])
	require.False(t, ids[unrelated.ID])
}

func TestNotifyLogOut_SkipsExcludedDeviceForPush(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x"}
	require.NoError(t, s.SaveUser(ctx, user))

	keptDevice := &model.Device{ID: uuid.Must(uuid.NewV4()), UserID: user.ID, PushToken: "tok-a"}
	excludedDevice := &model.Device{ID: uuid.Must(uuid.NewV4()), UserID: user.ID, PushToken: "tok-b"}
	require.NoError(t, s.SaveDevice(ctx, keptDevice))
	require.NoError(t, s.SaveDevice(ctx, excludedDevice))

	svc := New(NewHub(), nil, s, s)
	err := svc.NotifyLogOut(ctx, user.ID, excludedDevice.ID)
	require.NoError(t, err)
}
