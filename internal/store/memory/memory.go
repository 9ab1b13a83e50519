// Package memory is an in-memory reference implementation of store.Store.
// It is the canonical implementation for every entity (Group, GroupUser,
// CollectionGroup, Attachment and Event included) and backs package tests
// throughout the module; store/postgres only covers the
// highest-traffic entities and defers to this package's behavior as the
// specification of correct semantics.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Store is a goroutine-safe, process-local implementation of store.Store.
// Every entry is stored as a value copy so callers can never mutate
// internal state through a returned pointer.
type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]model.User
	usersByEmail  map[string]uuid.UUID
	devices       map[uuid.UUID]model.Device
	orgs          map[uuid.UUID]model.Organization
	memberships   map[uuid.UUID]model.Membership
	groups        map[uuid.UUID]model.Group
	groupUsers    map[groupUserKey]model.GroupUser
	collections   map[uuid.UUID]model.Collection
	collUsers     map[collUserKey]model.CollectionUser
	collGroups    map[collGroupKey]model.CollectionGroup
	collCiphers   map[collCipherKey]model.CollectionCipher
	ciphers       map[uuid.UUID]model.Cipher
	folders       map[uuid.UUID]model.Folder
	folderCiphers map[folderCipherKey]model.FolderCipher
	attachments   map[uuid.UUID]model.Attachment
	sends         map[uuid.UUID]model.Send
	twoFactors    map[twoFactorKey]model.TwoFactor
	authRequests  map[uuid.UUID]model.AuthRequest
	events        map[uuid.UUID]model.Event
	policies      map[policyKey]model.Policy
}

type policyKey struct {
	OrganizationID uuid.UUID
	Type           model.PolicyType
}

type groupUserKey struct{ GroupID, UserID uuid.UUID }
type collUserKey struct{ CollectionID, UserID uuid.UUID }
type collGroupKey struct{ CollectionID, GroupID uuid.UUID }
type collCipherKey struct{ CollectionID, CipherID uuid.UUID }
type folderCipherKey struct{ FolderID, CipherID uuid.UUID }
type twoFactorKey struct {
	UserID uuid.UUID
	Kind   model.TwoFactorKind
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]model.User),
		usersByEmail:  make(map[string]uuid.UUID),
		devices:       make(map[uuid.UUID]model.Device),
		orgs:          make(map[uuid.UUID]model.Organization),
		memberships:   make(map[uuid.UUID]model.Membership),
		groups:        make(map[uuid.UUID]model.Group),
		groupUsers:    make(map[groupUserKey]model.GroupUser),
		collections:   make(map[uuid.UUID]model.Collection),
		collUsers:     make(map[collUserKey]model.CollectionUser),
		collGroups:    make(map[collGroupKey]model.CollectionGroup),
		collCiphers:   make(map[collCipherKey]model.CollectionCipher),
		ciphers:       make(map[uuid.UUID]model.Cipher),
		folders:       make(map[uuid.UUID]model.Folder),
		folderCiphers: make(map[folderCipherKey]model.FolderCipher),
		attachments:   make(map[uuid.UUID]model.Attachment),
		sends:         make(map[uuid.UUID]model.Send),
		twoFactors:    make(map[twoFactorKey]model.TwoFactor),
		authRequests:  make(map[uuid.UUID]model.AuthRequest),
		events:        make(map[uuid.UUID]model.Event),
		policies:      make(map[policyKey]model.Policy),
	}
}

var _ store.Store = (*Store)(nil)

// Backup serializes the whole store to JSON. It is the only backend
// required to implement Backup (spec 4.3).
func (s *Store) Backup(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := struct {
		Users         map[uuid.UUID]model.User
		Devices       map[uuid.UUID]model.Device
		Organizations map[uuid.UUID]model.Organization
		Memberships   map[uuid.UUID]model.Membership
		Groups        map[uuid.UUID]model.Group
		Collections   map[uuid.UUID]model.Collection
		Ciphers       map[uuid.UUID]model.Cipher
		Folders       map[uuid.UUID]model.Folder
		Attachments   map[uuid.UUID]model.Attachment
		Sends         map[uuid.UUID]model.Send
		AuthRequests  map[uuid.UUID]model.AuthRequest
		Events        map[uuid.UUID]model.Event
		Policies      map[policyKey]model.Policy
	}{
		s.users, s.devices, s.orgs, s.memberships, s.groups, s.collections,
		s.ciphers, s.folders, s.attachments, s.sends, s.authRequests, s.events,
		s.policies,
	}
	return json.Marshal(snapshot)
}

func notFound(what string) error {
	return errs.Wrap(errs.KindNotFound, what, errs.ErrNotFound)
}

func fkViolation(what string) error {
	return errs.Wrap(errs.KindConflict, what, errs.ErrForeignKeyViolation)
}
