// Package vault implements VaultOps (spec section 4.8): cipher, folder,
// attachment and send lifecycle, cipher sharing between a personal vault
// and an organization, and the key-rotation transaction.
package vault

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/access"
	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/notify"
	"github.com/vaultkeep/server/internal/store"
)

// Notifier is the dependency cipher mutation and key rotation use to push
// sync updates to the caller's other devices (spec 4.10).
type Notifier interface {
	NotifyLogOut(ctx context.Context, userID uuid.UUID, exceptDeviceID uuid.UUID) error
	NotifyCipher(ctx context.Context, c *model.Cipher, updateType notify.UpdateType, actingDeviceID uuid.UUID) error
}

// Engine implements cipher/folder/send CRUD and the RotateKey transaction.
type Engine struct {
	Vault         store.Vault
	Users         store.Users
	Organizations store.Organizations
	Access        *access.Resolver
	Notifier      Notifier

	Now func() time.Time
}

// New builds an Engine from its dependencies.
func New(vault store.Vault, users store.Users, orgs store.Organizations, resolver *access.Resolver, notifier Notifier) *Engine {
	return &Engine{Vault: vault, Users: users, Organizations: orgs, Access: resolver, Notifier: notifier, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func notAuthorized() error { return errs.New(errs.KindNotAuthorized, "not authorized") }

// notifyCipher fans a sync update out for c, a no-op when no Notifier was
// wired (e.g. in tests that don't exercise push).
func (e *Engine) notifyCipher(ctx context.Context, c *model.Cipher, updateType notify.UpdateType, actingDeviceID uuid.UUID) error {
	if e.Notifier == nil {
		return nil
	}
	return e.Notifier.NotifyCipher(ctx, c, updateType, actingDeviceID)
}

// --- Ciphers ---

// CreateCipher persists a new cipher, defaulting personal ownership when
// no organization is supplied.
func (e *Engine) CreateCipher(ctx context.Context, user *model.User, c *model.Cipher, actingDeviceID uuid.UUID) error {
	if len(c.Data) == 0 {
		return errs.New(errs.KindValidationFailed, "cipher data must not be empty")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV4())
	}
	if c.OrganizationID == nil {
		id := user.ID
		c.UserID = &id
	}
	now := e.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if err := e.Vault.SaveCipher(ctx, c); err != nil {
		return err
	}
	return e.notifyCipher(ctx, c, notify.SyncCipherCreate, actingDeviceID)
}

// UpdateCipher applies edits to an existing cipher after checking the
// caller's write access via AccessResolver.
func (e *Engine) UpdateCipher(ctx context.Context, user *model.User, edits *model.Cipher, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, edits.ID)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, existing, false)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}
	if len(edits.Data) == 0 {
		return errs.New(errs.KindValidationFailed, "cipher data must not be empty")
	}

	existing.Type = edits.Type
	existing.Data = edits.Data
	existing.Fields = edits.Fields
	existing.PasswordHistory = edits.PasswordHistory
	existing.Key = edits.Key
	existing.Favorite = edits.Favorite
	existing.UpdatedAt = e.now()
	if err := e.Vault.SaveCipher(ctx, existing); err != nil {
		return err
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherUpdate, actingDeviceID)
}

// SoftDeleteCipher moves a cipher to the trash (spec 4.8); it remains
// restorable until PurgeTrash sweeps it.
func (e *Engine) SoftDeleteCipher(ctx context.Context, user *model.User, id uuid.UUID, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, id)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, existing, false)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}
	now := e.now()
	existing.DeletedAt = &now
	existing.UpdatedAt = now
	if err := e.Vault.SaveCipher(ctx, existing); err != nil {
		return err
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherDelete, actingDeviceID)
}

// RestoreCipher clears a cipher's trash marker.
func (e *Engine) RestoreCipher(ctx context.Context, user *model.User, id uuid.UUID, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, id)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, existing, false)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}
	existing.DeletedAt = nil
	existing.UpdatedAt = e.now()
	if err := e.Vault.SaveCipher(ctx, existing); err != nil {
		return err
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherUpdate, actingDeviceID)
}

// PurgeTrash permanently deletes ciphers soft-deleted before the cutoff.
func (e *Engine) PurgeTrash(ctx context.Context, olderThan time.Duration) (int, error) {
	return e.Vault.PurgeTrashedCiphersBefore(ctx, e.now().Add(-olderThan))
}

// SetFavorite toggles a cipher's favorite flag for the caller.
func (e *Engine) SetFavorite(ctx context.Context, user *model.User, id uuid.UUID, favorite bool, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, id)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, existing, false)
	if err != nil {
		return err
	}
	if grant == nil {
		return notAuthorized()
	}
	existing.Favorite = favorite
	existing.UpdatedAt = e.now()
	if err := e.Vault.SaveCipher(ctx, existing); err != nil {
		return err
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherUpdate, actingDeviceID)
}

// ShareCipher moves a personally-owned cipher into an organization,
// re-keying it under newKey and assigning it to the given collections.
func (e *Engine) ShareCipher(ctx context.Context, user *model.User, cipherID, orgID uuid.UUID, collectionIDs []uuid.UUID, newKey model.EncryptedBlob, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, cipherID)
	if err != nil {
		return err
	}
	if !existing.IsPersonal() || *existing.UserID != user.ID {
		return notAuthorized()
	}
	membership, err := e.Organizations.GetMembershipByUserOrg(ctx, user.ID, orgID)
	if err != nil || membership.Status != model.MembershipConfirmed {
		return notAuthorized()
	}

	existing.UserID = nil
	existing.OrganizationID = &orgID
	existing.Key = newKey
	existing.UpdatedAt = e.now()
	if err := e.Vault.SaveCipher(ctx, existing); err != nil {
		return err
	}
	for _, cid := range collectionIDs {
		if err := e.Organizations.SaveCollectionCipher(ctx, &model.CollectionCipher{CollectionID: cid, CipherID: existing.ID}); err != nil {
			return err
		}
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherUpdate, actingDeviceID)
}

// SetCollections replaces the full set of collections an org cipher
// belongs to, used by the management UI to move a cipher between
// collections (requires management-context write access).
func (e *Engine) SetCollections(ctx context.Context, user *model.User, cipherID uuid.UUID, collectionIDs []uuid.UUID, actingDeviceID uuid.UUID) error {
	existing, err := e.Vault.GetCipher(ctx, cipherID)
	if err != nil {
		return err
	}
	if !existing.IsOrgOwned() {
		return errs.New(errs.KindValidationFailed, "cipher is not organization-owned")
	}
	grant, err := e.Access.Resolve(ctx, user, existing, true)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}

	current, err := e.Organizations.ListCollectionCiphersByCipher(ctx, cipherID)
	if err != nil {
		return err
	}
	want := make(map[uuid.UUID]bool, len(collectionIDs))
	for _, cid := range collectionIDs {
		want[cid] = true
	}
	have := make(map[uuid.UUID]bool, len(current))
	for _, cc := range current {
		have[cc.CollectionID] = true
		if !want[cc.CollectionID] {
			if err := e.Organizations.DeleteCollectionCipher(ctx, cc.CollectionID, cipherID); err != nil {
				return err
			}
		}
	}
	for cid := range want {
		if !have[cid] {
			if err := e.Organizations.SaveCollectionCipher(ctx, &model.CollectionCipher{CollectionID: cid, CipherID: cipherID}); err != nil {
				return err
			}
		}
	}
	return e.notifyCipher(ctx, existing, notify.SyncCipherUpdate, actingDeviceID)
}

// --- Folders ---

// CreateFolder persists a new personal folder.
func (e *Engine) CreateFolder(ctx context.Context, user *model.User, f *model.Folder) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.Must(uuid.NewV4())
	}
	f.UserID = user.ID
	now := e.now()
	f.CreatedAt, f.UpdatedAt = now, now
	return e.Vault.SaveFolder(ctx, f)
}

// UpdateFolder renames an existing folder the caller owns.
func (e *Engine) UpdateFolder(ctx context.Context, user *model.User, id uuid.UUID, name model.EncryptedBlob) error {
	existing, err := e.Vault.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != user.ID {
		return notAuthorized()
	}
	existing.Name = name
	existing.UpdatedAt = e.now()
	return e.Vault.SaveFolder(ctx, existing)
}

// DeleteFolder removes a folder the caller owns; ciphers inside it are not
// deleted, only unassigned (spec leaves cipher lifecycle independent of
// folder membership).
func (e *Engine) DeleteFolder(ctx context.Context, user *model.User, id uuid.UUID) error {
	existing, err := e.Vault.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != user.ID {
		return notAuthorized()
	}
	return e.Vault.DeleteFolder(ctx, id)
}

// AssignCipherToFolder places a cipher the caller can see into one of the
// caller's own folders.
func (e *Engine) AssignCipherToFolder(ctx context.Context, user *model.User, folderID, cipherID uuid.UUID) error {
	folder, err := e.Vault.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.UserID != user.ID {
		return notAuthorized()
	}
	cipher, err := e.Vault.GetCipher(ctx, cipherID)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, cipher, false)
	if err != nil {
		return err
	}
	if grant == nil {
		return notAuthorized()
	}
	return e.Vault.SaveFolderCipher(ctx, &model.FolderCipher{FolderID: folderID, CipherID: cipherID})
}

// RemoveCipherFromFolder detaches a cipher from a folder.
func (e *Engine) RemoveCipherFromFolder(ctx context.Context, user *model.User, folderID, cipherID uuid.UUID) error {
	folder, err := e.Vault.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.UserID != user.ID {
		return notAuthorized()
	}
	return e.Vault.DeleteFolderCipher(ctx, folderID, cipherID)
}

// --- Attachments ---

// CreateAttachment stores attachment metadata for a cipher the caller can
// write to; the blob itself is written to object storage by the caller.
func (e *Engine) CreateAttachment(ctx context.Context, user *model.User, a *model.Attachment) error {
	cipher, err := e.Vault.GetCipher(ctx, a.CipherID)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, cipher, false)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.Must(uuid.NewV4())
	}
	a.CreatedAt = e.now()
	return e.Vault.SaveAttachment(ctx, a)
}

// DeleteAttachment removes attachment metadata; the caller is responsible
// for reclaiming the underlying blob.
func (e *Engine) DeleteAttachment(ctx context.Context, user *model.User, id uuid.UUID) error {
	a, err := e.Vault.GetAttachment(ctx, id)
	if err != nil {
		return err
	}
	cipher, err := e.Vault.GetCipher(ctx, a.CipherID)
	if err != nil {
		return err
	}
	grant, err := e.Access.Resolve(ctx, user, cipher, false)
	if err != nil {
		return err
	}
	if !grant.CanWrite() {
		return notAuthorized()
	}
	return e.Vault.DeleteAttachment(ctx, id)
}

// --- Sends ---

// CreateSend persists a new Send, rejecting a deletion date further out
// than 31 days (spec invariant 8).
func (e *Engine) CreateSend(ctx context.Context, user *model.User, s *model.Send) error {
	if s.DeletionDate.Sub(e.now()) > model.MaxSendLifetime {
		return errs.New(errs.KindValidationFailed, "deletion date must be at most 31 days from now")
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.Must(uuid.NewV4())
	}
	id := user.ID
	s.UserID = &id
	now := e.now()
	s.CreatedAt, s.UpdatedAt = now, now
	return e.Vault.SaveSend(ctx, s)
}

// UpdateSend edits an existing Send the caller owns.
func (e *Engine) UpdateSend(ctx context.Context, user *model.User, edits *model.Send) error {
	existing, err := e.Vault.GetSend(ctx, edits.ID)
	if err != nil {
		return err
	}
	if existing.UserID == nil || *existing.UserID != user.ID {
		return notAuthorized()
	}
	if edits.DeletionDate.Sub(e.now()) > model.MaxSendLifetime {
		return errs.New(errs.KindValidationFailed, "deletion date must be at most 31 days from now")
	}
	existing.Data = edits.Data
	existing.MaxAccessCount = edits.MaxAccessCount
	existing.ExpirationDate = edits.ExpirationDate
	existing.DeletionDate = edits.DeletionDate
	existing.Disabled = edits.Disabled
	existing.HideEmail = edits.HideEmail
	existing.UpdatedAt = e.now()
	return e.Vault.SaveSend(ctx, existing)
}

// DeleteSend removes a Send the caller owns.
func (e *Engine) DeleteSend(ctx context.Context, user *model.User, id uuid.UUID) error {
	existing, err := e.Vault.GetSend(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID == nil || *existing.UserID != user.ID {
		return notAuthorized()
	}
	return e.Vault.DeleteSend(ctx, id)
}

// AccessSend is the anonymous access path: it loads a Send by id, rejects
// it if expired/exhausted, verifies an optional password, and records one
// more access.
func (e *Engine) AccessSend(ctx context.Context, id uuid.UUID, passwordHash []byte) (*model.Send, error) {
	s, err := e.Vault.GetSend(ctx, id)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, "Send does not exist or is no longer available")
	}
	if s.IsExpired(e.now()) {
		return nil, errs.New(errs.KindNotFound, "Send does not exist or is no longer available")
	}
	if s.PasswordHash != nil {
		if !crypto.VerifyPassword(passwordHash, s.PasswordSalt, s.PasswordHash, 1) {
			return nil, errs.New(errs.KindAuthenticationFailed, "invalid send password")
		}
	}
	s.AccessCount++
	if err := e.Vault.SaveSend(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// PurgeExpiredSends permanently deletes sends past their deletion date.
func (e *Engine) PurgeExpiredSends(ctx context.Context) (int, error) {
	return e.Vault.PurgeExpiredSends(ctx, e.now())
}
