// Package store defines the DataStore component (spec section 4.3): a
// storage-agnostic interface over every entity in the vault data model,
// plus the invariants every implementation must uphold (idempotent
// upsert, foreign-key enforcement on save of an orphaned child row, and
// bulk loaders the AccessResolver needs to compute effective grants
// without N+1 queries).
package store

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
)

// Users covers account CRUD and the lookups auth/token verification need.
type Users interface {
	SaveUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	CurrentSecurityStamp(ctx context.Context, id uuid.UUID) (string, error)
}

// Devices covers per-device refresh tokens and push registration.
type Devices interface {
	SaveDevice(ctx context.Context, d *model.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error)
	GetDeviceByRefreshToken(ctx context.Context, refreshToken string) (*model.Device, error)
	ListDevicesByUser(ctx context.Context, userID uuid.UUID) ([]model.Device, error)
	DeleteDevice(ctx context.Context, id uuid.UUID) error
}

// Organizations covers org, membership, group and collection access rows.
type Organizations interface {
	SaveOrganization(ctx context.Context, o *model.Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	SaveMembership(ctx context.Context, m *model.Membership) error
	GetMembership(ctx context.Context, id uuid.UUID) (*model.Membership, error)
	GetMembershipByUserOrg(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]model.Membership, error)
	DeleteMembership(ctx context.Context, id uuid.UUID) error

	SaveGroup(ctx context.Context, g *model.Group) error
	GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error)
	ListGroupsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Group, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	SaveGroupUser(ctx context.Context, gu *model.GroupUser) error
	ListGroupUsersByGroup(ctx context.Context, groupID uuid.UUID) ([]model.GroupUser, error)
	ListGroupsByUser(ctx context.Context, userID, orgID uuid.UUID) ([]model.GroupUser, error)
	DeleteGroupUser(ctx context.Context, groupID, userID uuid.UUID) error

	SaveCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, id uuid.UUID) (*model.Collection, error)
	ListCollectionsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error

	SaveCollectionUser(ctx context.Context, cu *model.CollectionUser) error
	ListCollectionUsersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionUser, error)
	ListCollectionUsersByUser(ctx context.Context, userID uuid.UUID) ([]model.CollectionUser, error)
	DeleteCollectionUser(ctx context.Context, collectionID, userID uuid.UUID) error

	SaveCollectionGroup(ctx context.Context, cg *model.CollectionGroup) error
	ListCollectionGroupsByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionGroup, error)
	DeleteCollectionGroup(ctx context.Context, collectionID, groupID uuid.UUID) error

	SaveCollectionCipher(ctx context.Context, cc *model.CollectionCipher) error
	ListCollectionCiphersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionCipher, error)
	ListCollectionCiphersByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.CollectionCipher, error)
	DeleteCollectionCipher(ctx context.Context, collectionID, cipherID uuid.UUID) error
}

// Vault covers ciphers, folders, attachments and sends.
type Vault interface {
	SaveCipher(ctx context.Context, c *model.Cipher) error
	GetCipher(ctx context.Context, id uuid.UUID) (*model.Cipher, error)
	ListCiphersByUser(ctx context.Context, userID uuid.UUID) ([]model.Cipher, error)
	ListCiphersByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Cipher, error)
	DeleteCipher(ctx context.Context, id uuid.UUID) error
	PurgeTrashedCiphersBefore(ctx context.Context, cutoff time.Time) (int, error)

	SaveFolder(ctx context.Context, f *model.Folder) error
	GetFolder(ctx context.Context, id uuid.UUID) (*model.Folder, error)
	ListFoldersByUser(ctx context.Context, userID uuid.UUID) ([]model.Folder, error)
	DeleteFolder(ctx context.Context, id uuid.UUID) error

	SaveFolderCipher(ctx context.Context, fc *model.FolderCipher) error
	ListFolderCiphersByFolder(ctx context.Context, folderID uuid.UUID) ([]model.FolderCipher, error)
	DeleteFolderCipher(ctx context.Context, folderID, cipherID uuid.UUID) error

	SaveAttachment(ctx context.Context, a *model.Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error)
	ListAttachmentsByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.Attachment, error)
	DeleteAttachment(ctx context.Context, id uuid.UUID) error

	SaveSend(ctx context.Context, s *model.Send) error
	GetSend(ctx context.Context, id uuid.UUID) (*model.Send, error)
	ListSendsByUser(ctx context.Context, userID uuid.UUID) ([]model.Send, error)
	DeleteSend(ctx context.Context, id uuid.UUID) error
	PurgeExpiredSends(ctx context.Context, now time.Time) (int, error)
}

// TwoFactors covers durable 2FA providers and transient challenge rows.
type TwoFactors interface {
	SaveTwoFactor(ctx context.Context, tf *model.TwoFactor) error
	GetTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) (*model.TwoFactor, error)
	ListTwoFactorsByUser(ctx context.Context, userID uuid.UUID) ([]model.TwoFactor, error)
	DeleteTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) error
}

// AuthRequests covers passwordless cross-device login.
type AuthRequests interface {
	SaveAuthRequest(ctx context.Context, r *model.AuthRequest) error
	GetAuthRequest(ctx context.Context, id uuid.UUID) (*model.AuthRequest, error)
	ListPendingAuthRequestsByUser(ctx context.Context, userID uuid.UUID) ([]model.AuthRequest, error)
	DeleteAuthRequest(ctx context.Context, id uuid.UUID) error
	PurgeExpiredAuthRequests(ctx context.Context, now time.Time) (int, error)
}

// Events covers the append-only audit log.
type Events interface {
	SaveEvent(ctx context.Context, e *model.Event) error
	ListEventsByOrg(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.Event, error)
	ListEventsByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.Event, error)
	PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Policies covers per-organization policy rows PolicyEngine reads.
type Policies interface {
	SavePolicy(ctx context.Context, p *model.Policy) error
	GetPolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) (*model.Policy, error)
	ListPoliciesByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Policy, error)
	DeletePolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) error
}

// AccessData is the batch of rows the AccessResolver needs to compute a
// user's effective grants within one organization without issuing a
// query per collection or group (spec 4.4).
type AccessData struct {
	Membership       model.Membership
	GroupIDs         []uuid.UUID // groups the user belongs to
	GroupAccessAll   map[uuid.UUID]bool
	CollectionUsers  []model.CollectionUser
	CollectionGroups []model.CollectionGroup
}

// Access loads the batched data AccessResolver depends on, and the raw
// cipher-collection memberships VaultOps needs for sync payloads.
type Access interface {
	LoadAccessData(ctx context.Context, userID, orgID uuid.UUID) (*AccessData, error)
}

// Store is the full DataStore surface. Concrete backends (memory,
// postgres) implement all of it; callers typically depend on the
// narrower per-domain interfaces above.
type Store interface {
	Users
	Devices
	Organizations
	Vault
	TwoFactors
	AuthRequests
	Events
	Access
	Policies

	// Backup serializes the entire store to a portable snapshot. Only the
	// embedded/memory backend is required to support this (spec 4.3's
	// "Backup() (embedded-only)").
	Backup(ctx context.Context) ([]byte, error)
}
