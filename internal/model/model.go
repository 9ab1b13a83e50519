// Package model defines the domain entities persisted by the vault
// synchronization server. All entities are plain structs; referential
// integrity and lifecycle invariants live at the internal/store boundary,
// not in these types.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// EncryptedBlob is opaque ciphertext produced client-side. The server never
// inspects it.
type EncryptedBlob []byte

// KDFType identifies the client-side key-derivation algorithm advertised at
// prelogin.
type KDFType int

const (
	KDFPBKDF2 KDFType = iota
	KDFArgon2id
)

// DeviceType enumerates the client platforms recognized by the protocol.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceDesktop
	DeviceMobile
	DeviceBrowser
	DeviceCLI
)

// User is an account. Email is stored lowercased; PasswordHash is the
// server-side PBKDF2 of the client-supplied master-password-hash.
type User struct {
	ID                   uuid.UUID
	Email                string
	PasswordHash         []byte
	Salt                 []byte
	PasswordIterations    int
	ClientKdfType        KDFType
	ClientKdfIterations   int
	ClientKdfMemory       int // Argon2id only, MiB
	ClientKdfParallelism  int // Argon2id only
	AKey                 string // client-encrypted symmetric vault key
	PrivateKey           string // client-encrypted asymmetric private key
	PublicKey            string
	SecurityStamp        string // rotated on any credential-changing event
	TOTPRecover          string
	EmailVerifiedAt      *time.Time
	UpdatedAt            time.Time
	CreatedAt            time.Time
}

// Device is a client endpoint belonging to a User.
type Device struct {
	ID                uuid.UUID // client-chosen
	UserID            uuid.UUID
	Type              DeviceType
	Name              string
	RefreshToken      string
	PushToken         string
	PushUUID          string
	TwoFactorRemember string // token permitting a TOTP-free relogin
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Organization groups Memberships, Collections and org-owned Ciphers.
type Organization struct {
	ID           uuid.UUID
	Name         string
	BillingEmail string
	CreatedAt    time.Time
}

// MembershipStatus is the invite/accept/confirm lifecycle of a Membership.
type MembershipStatus int

const (
	MembershipInvited MembershipStatus = iota
	MembershipAccepted
	MembershipConfirmed
)

// MembershipType is ordered by privilege: Owner > Admin > Manager > User.
type MembershipType int

const (
	MembershipUser MembershipType = iota
	MembershipManager
	MembershipAdmin
	MembershipOwner
)

// AtLeast reports whether m has at least the privilege of other.
func (m MembershipType) AtLeast(other MembershipType) bool { return m >= other }

// Membership links a User to an Organization.
type Membership struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	OrganizationID   uuid.UUID
	Status           MembershipStatus
	Type             MembershipType
	AccessAll        bool
	Key              string // org symmetric key wrapped to the user
	ResetPasswordKey string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExempt reports whether the membership is exempt from ordinary policy
// enforcement by virtue of privilege (Owner/Admin are always exempt).
func (m Membership) IsExempt() bool {
	return m.Type == MembershipOwner || m.Type == MembershipAdmin
}

// Group is an optional organization-scoped collection of users.
type Group struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	AccessAll      bool
	CreatedAt      time.Time
}

// GroupUser assigns a User to a Group.
type GroupUser struct {
	GroupID uuid.UUID
	UserID  uuid.UUID
}

// Collection belongs to an Organization and groups org-owned Ciphers.
type Collection struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	CreatedAt      time.Time
}

// CollectionCipher is the many-to-many assignment of a Cipher to a
// Collection; an org cipher may live in several collections.
type CollectionCipher struct {
	CollectionID uuid.UUID
	CipherID     uuid.UUID
}

// CollectionUser grants a direct (user, collection) access right.
type CollectionUser struct {
	CollectionID  uuid.UUID
	UserID        uuid.UUID
	ReadOnly      bool
	HidePasswords bool
}

// CollectionGroup mirrors CollectionUser but grants access via Group
// membership.
type CollectionGroup struct {
	CollectionID  uuid.UUID
	GroupID       uuid.UUID
	ReadOnly      bool
	HidePasswords bool
}
