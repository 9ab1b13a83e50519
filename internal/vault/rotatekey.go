package vault

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

// RotatedCipher carries one cipher's re-encrypted key material for
// RotateKey.
type RotatedCipher struct {
	ID                             uuid.UUID
	Key, Data, Fields, PassHistory model.EncryptedBlob
}

// RotatedFolder carries one folder's re-encrypted name.
type RotatedFolder struct {
	ID   uuid.UUID
	Name model.EncryptedBlob
}

// RotatedSend carries one send's re-encrypted data.
type RotatedSend struct {
	ID   uuid.UUID
	Data model.EncryptedBlob
}

// RotatedMembership carries one organization membership's re-wrapped
// reset-password key.
type RotatedMembership struct {
	ID               uuid.UUID
	ResetPasswordKey string
}

// RotateKeyRequest is the full payload of a vault key-rotation request:
// every entity the client re-encrypted under the user's new account key,
// plus the new account key material itself.
type RotateKeyRequest struct {
	MasterPasswordHash []byte
	Ciphers            []RotatedCipher
	Folders            []RotatedFolder
	Sends              []RotatedSend
	Memberships        []RotatedMembership
	AKey               string
	PrivateKey         string
	CurrentDeviceID    uuid.UUID
}

// RotateKey implements spec 4.8's rotate_key transaction. Every owned
// entity loaded at the start must appear in req's corresponding list
// (a superset check per entity kind) before any write is made; missing
// even one entity refuses the whole request (spec invariant 4, scenario
// S3).
func (e *Engine) RotateKey(ctx context.Context, user *model.User, req RotateKeyRequest) error {
	if !crypto.VerifyPassword(req.MasterPasswordHash, user.Salt, user.PasswordHash, user.PasswordIterations) {
		return errs.New(errs.KindAuthenticationFailed, "invalid master password")
	}

	ciphers, err := e.Vault.ListCiphersByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	folders, err := e.Vault.ListFoldersByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	sends, err := e.Vault.ListSendsByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	memberships, err := e.Organizations.ListMembershipsByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	var resettable []model.Membership
	for _, m := range memberships {
		if m.ResetPasswordKey != "" {
			resettable = append(resettable, m)
		}
	}

	cipherByID := make(map[uuid.UUID]RotatedCipher, len(req.Ciphers))
	for _, rc := range req.Ciphers {
		cipherByID[rc.ID] = rc
	}
	if err := requireSuperset(ciphers, func(c model.Cipher) uuid.UUID { return c.ID }, cipherByID, "ciphers"); err != nil {
		return err
	}

	folderByID := make(map[uuid.UUID]RotatedFolder, len(req.Folders))
	for _, rf := range req.Folders {
		folderByID[rf.ID] = rf
	}
	if err := requireSuperset(folders, func(f model.Folder) uuid.UUID { return f.ID }, folderByID, "folders"); err != nil {
		return err
	}

	sendByID := make(map[uuid.UUID]RotatedSend, len(req.Sends))
	for _, rs := range req.Sends {
		sendByID[rs.ID] = rs
	}
	if err := requireSuperset(sends, func(s model.Send) uuid.UUID { return s.ID }, sendByID, "sends"); err != nil {
		return err
	}

	membershipByID := make(map[uuid.UUID]RotatedMembership, len(req.Memberships))
	for _, rm := range req.Memberships {
		membershipByID[rm.ID] = rm
	}
	if err := requireSuperset(resettable, func(m model.Membership) uuid.UUID { return m.ID }, membershipByID, "organization keys"); err != nil {
		return err
	}

	// All superset checks passed; now apply every write.
	for _, c := range ciphers {
		rc := cipherByID[c.ID]
		c.Key, c.Data, c.Fields, c.PasswordHistory = rc.Key, rc.Data, rc.Fields, rc.PassHistory
		c.UpdatedAt = e.now()
		if err := e.Vault.SaveCipher(ctx, &c); err != nil {
			return err
		}
	}
	for _, f := range folders {
		rf := folderByID[f.ID]
		f.Name = rf.Name
		f.UpdatedAt = e.now()
		if err := e.Vault.SaveFolder(ctx, &f); err != nil {
			return err
		}
	}
	for _, s := range sends {
		rs := sendByID[s.ID]
		s.Data = rs.Data
		s.UpdatedAt = e.now()
		if err := e.Vault.SaveSend(ctx, &s); err != nil {
			return err
		}
	}
	for _, m := range resettable {
		rm := membershipByID[m.ID]
		m.ResetPasswordKey = rm.ResetPasswordKey
		m.UpdatedAt = e.now()
		if err := e.Organizations.SaveMembership(ctx, &m); err != nil {
			return err
		}
	}

	user.AKey = req.AKey
	user.PrivateKey = req.PrivateKey
	stamp, err := rotateStamp()
	if err != nil {
		return err
	}
	user.SecurityStamp = stamp
	if err := e.Users.SaveUser(ctx, user); err != nil {
		return err
	}

	if e.Notifier != nil {
		return e.Notifier.NotifyLogOut(ctx, user.ID, req.CurrentDeviceID)
	}
	return nil
}

// requireSuperset reports a ValidationFailed error naming entityLabel if
// any id(item) among owned is absent from supplied.
func requireSuperset[T any, K comparable](owned []T, id func(T) uuid.UUID, supplied map[uuid.UUID]K, entityLabel string) error {
	for _, item := range owned {
		if _, ok := supplied[id(item)]; !ok {
			return errs.New(errs.KindValidationFailed, fmt.Sprintf("All existing %s must be included in the rotation", entityLabel))
		}
	}
	return nil
}

// rotateStamp generates a fresh opaque security stamp.
func rotateStamp() (string, error) { return crypto.GenerateAPIKey() }
