package vault

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/access"
	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/notify"
	"github.com/vaultkeep/server/internal/store/memory"
)

type fakeNotifier struct {
	loggedOut     bool
	cipherUpdates []notify.UpdateType
}

func (n *fakeNotifier) NotifyLogOut(ctx context.Context, userID, exceptDeviceID uuid.UUID) error {
	n.loggedOut = true
	return nil
}

func (n *fakeNotifier) NotifyCipher(ctx context.Context, c *model.Cipher, updateType notify.UpdateType, actingDeviceID uuid.UUID) error {
	n.cipherUpdates = append(n.cipherUpdates, updateType)
	return nil
}

func setup(t *testing.T) (*Engine, *memory.Store, *model.User) {
	t.Helper()
	s := memory.New()
	resolver := access.New(s)
	e := New(s, s, s, resolver, &fakeNotifier{})
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x", Salt: []byte("salt"), PasswordIterations: 1}
	user.PasswordHash = crypto.HashPassword([]byte("hello"), user.Salt, user.PasswordIterations)
	require.NoError(t, s.SaveUser(context.Background(), user))
	return e, s, user
}

func TestCreateAndUpdateCipher_PersonalOwnership(t *testing.T) {
	e, _, user := setup(t)
	ctx := context.Background()
	device := uuid.Must(uuid.NewV4())

	c := &model.Cipher{Data: model.EncryptedBlob("enc-data")}
	require.NoError(t, e.CreateCipher(ctx, user, c, device))
	require.NotEqual(t, uuid.Nil, c.ID)
	require.Equal(t, user.ID, *c.UserID)

	edits := &model.Cipher{ID: c.ID, Data: model.EncryptedBlob("enc-data-2"), Favorite: true}
	require.NoError(t, e.UpdateCipher(ctx, user, edits, device))

	stored, err := e.Vault.GetCipher(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, stored.Favorite)
	require.Equal(t, model.EncryptedBlob("enc-data-2"), stored.Data)

	notifier := e.Notifier.(*fakeNotifier)
	require.Equal(t, []notify.UpdateType{notify.SyncCipherCreate, notify.SyncCipherUpdate}, notifier.cipherUpdates)
}

func TestUpdateCipher_OtherUserDenied(t *testing.T) {
	e, s, user := setup(t)
	ctx := context.Background()
	device := uuid.Must(uuid.NewV4())

	c := &model.Cipher{Data: model.EncryptedBlob("enc-data")}
	require.NoError(t, e.CreateCipher(ctx, user, c, device))

	stranger := &model.User{ID: uuid.Must(uuid.NewV4())}
	require.NoError(t, s.SaveUser(ctx, stranger))

	err := e.UpdateCipher(ctx, stranger, &model.Cipher{ID: c.ID, Data: model.EncryptedBlob("x")}, device)
	require.Error(t, err)
	require.Equal(t, errs.KindNotAuthorized, errs.KindOf(err))
}

func TestSoftDeleteAndRestoreCipher(t *testing.T) {
	e, _, user := setup(t)
	ctx := context.Background()
	device := uuid.Must(uuid.NewV4())

	c := &model.Cipher{Data: model.EncryptedBlob("enc-data")}
	require.NoError(t, e.CreateCipher(ctx, user, c, device))

	require.NoError(t, e.SoftDeleteCipher(ctx, user, c.ID, device))
	stored, err := e.Vault.GetCipher(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeletedAt)

	require.NoError(t, e.RestoreCipher(ctx, user, c.ID, device))
	stored, err = e.Vault.GetCipher(ctx, c.ID)
	require.NoError(t, err)
	require.Nil(t, stored.DeletedAt)

	notifier := e.Notifier.(*fakeNotifier)
	require.Equal(t, []notify.UpdateType{notify.SyncCipherCreate, notify.SyncCipherDelete, notify.SyncCipherUpdate}, notifier.cipherUpdates)
}

func TestCreateSend_RejectsLongDeletion(t *testing.T) {
	e, _, user := setup(t)
	ctx := context.Background()

	s := &model.Send{DeletionDate: e.now().Add(40 * 24 * time.Hour)}
	err := e.CreateSend(ctx, user, s)
	require.Error(t, err)
	require.Equal(t, errs.KindValidationFailed, errs.KindOf(err))
}

func TestCreateSend_AcceptsWithinBound(t *testing.T) {
	e, _, user := setup(t)
	ctx := context.Background()

	s := &model.Send{DeletionDate: e.now().Add(10 * 24 * time.Hour)}
	require.NoError(t, e.CreateSend(ctx, user, s))
	require.Equal(t, user.ID, *s.UserID)
}

// TestS3_RotateKeyMissingEntity is scenario S3: user has folders F1, F2;
// the request only lists F1; the rotation is refused and nothing changes.
func TestS3_RotateKeyMissingEntity(t *testing.T) {
	e, s, user := setup(t)
	ctx := context.Background()

	f1 := &model.Folder{Name: model.EncryptedBlob("f1")}
	require.NoError(t, e.CreateFolder(ctx, user, f1))
	f2 := &model.Folder{Name: model.EncryptedBlob("f2")}
	require.NoError(t, e.CreateFolder(ctx, user, f2))

	originalAKey := "original-akey"
	user.AKey = originalAKey
	require.NoError(t, s.SaveUser(ctx, user))

	err := e.RotateKey(ctx, user, RotateKeyRequest{
		MasterPasswordHash: []byte("hello"),
		Folders:            []RotatedFolder{{ID: f1.ID, Name: model.EncryptedBlob("new-f1")}},
		AKey:               "new-akey",
	})
	require.Error(t, err)
	require.Equal(t, errs.KindValidationFailed, errs.KindOf(err))
	require.Contains(t, err.Error(), "All existing folders must be included in the rotation")

	stillF2, err := e.Vault.GetFolder(ctx, f2.ID)
	require.NoError(t, err)
	require.Equal(t, model.EncryptedBlob("f2"), stillF2.Name)

	reloadedUser, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, originalAKey, reloadedUser.AKey)
}

func TestRotateKey_Success(t *testing.T) {
	e, s, user := setup(t)
	ctx := context.Background()

	f := &model.Folder{Name: model.EncryptedBlob("f")}
	require.NoError(t, e.CreateFolder(ctx, user, f))
	c := &model.Cipher{Data: model.EncryptedBlob("d")}
	require.NoError(t, e.CreateCipher(ctx, user, c, uuid.Must(uuid.NewV4())))

	originalStamp := user.SecurityStamp
	device := uuid.Must(uuid.NewV4())

	err := e.RotateKey(ctx, user, RotateKeyRequest{
		MasterPasswordHash: []byte("hello"),
		Folders:            []RotatedFolder{{ID: f.ID, Name: model.EncryptedBlob("new-f")}},
		Ciphers:            []RotatedCipher{{ID: c.ID, Key: model.EncryptedBlob("new-key"), Data: model.EncryptedBlob("new-d")}},
		AKey:               "new-akey",
		PrivateKey:         "new-priv",
		CurrentDeviceID:    device,
	})
	require.NoError(t, err)

	reloadedUser, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new-akey", reloadedUser.AKey)
	require.NotEqual(t, originalStamp, reloadedUser.SecurityStamp)

	reloadedFolder, err := e.Vault.GetFolder(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, model.EncryptedBlob("new-f"), reloadedFolder.Name)
}

func TestRotateKey_WrongPassword(t *testing.T) {
	e, _, user := setup(t)
	ctx := context.Background()

	err := e.RotateKey(ctx, user, RotateKeyRequest{MasterPasswordHash: []byte("wrong")})
	require.Error(t, err)
	require.Equal(t, errs.KindAuthenticationFailed, errs.KindOf(err))
}
