package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// CipherType enumerates the vault item kinds.
type CipherType int

const (
	CipherLogin CipherType = iota + 1
	CipherNote
	CipherCard
	CipherIdentity
	CipherSSHKey
)

// Cipher is a vault item. Exactly one of UserID or OrganizationID is set.
type Cipher struct {
	ID               uuid.UUID
	UserID           *uuid.UUID // personal owner, mutually exclusive with OrganizationID
	OrganizationID   *uuid.UUID // org owner, mutually exclusive with UserID
	Type             CipherType
	Data             EncryptedBlob
	Fields           EncryptedBlob
	PasswordHistory  EncryptedBlob
	Key              EncryptedBlob // per-cipher wrapping key
	Favorite         bool
	DeletedAt        *time.Time // soft delete; purged after a configurable window
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPersonal reports whether the cipher is owned directly by a user.
func (c Cipher) IsPersonal() bool { return c.UserID != nil }

// IsOrgOwned reports whether the cipher belongs to an organization.
func (c Cipher) IsOrgOwned() bool { return c.OrganizationID != nil }

// Folder is personal to one User.
type Folder struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      EncryptedBlob
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FolderCipher assigns a Cipher to a Folder within one user's vault.
type FolderCipher struct {
	FolderID uuid.UUID
	CipherID uuid.UUID
}

// Attachment is metadata for a blob stored in the object store, addressed
// as <cipher_uuid>/<attachment_uuid>.
type Attachment struct {
	ID        uuid.UUID
	CipherID  uuid.UUID
	FileName  EncryptedBlob
	FileSize  int64
	Key       EncryptedBlob
	CreatedAt time.Time
}
