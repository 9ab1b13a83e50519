// Package access implements the AccessResolver component (spec section
// 4.4): given a user and a cipher, compute whether the user can see it
// at all and, if so, whether that visibility is read-only or masks
// passwords. Org-owned ciphers route through collection grants that can
// be combined from several independent paths (direct user grant, group
// membership), so the interesting part of this package is the
// AND-combination rule in Resolve.
package access

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Grant is the resolved visibility for one (user, cipher) pair. A nil
// *Grant means the user cannot see the cipher at all.
type Grant struct {
	ReadOnly      bool
	HidePasswords bool
}

// CanWrite reports whether the grant permits mutating the cipher.
func (g *Grant) CanWrite() bool { return g != nil && !g.ReadOnly }

// and combines two grants along the same collection-intersection the
// spec's AND-rule describes: the broader (less restrictive) path wins,
// so both flags are ANDed across every contributing row.
func (g *Grant) and(other Grant) {
	g.ReadOnly = g.ReadOnly && other.ReadOnly
	g.HidePasswords = g.HidePasswords && other.HidePasswords
}

// CollectionLookup is the narrow slice of store.Organizations Resolve
// needs to find which collections a cipher lives in.
type CollectionLookup interface {
	ListCollectionCiphersByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.CollectionCipher, error)
}

// Resolver computes AccessResolver grants from a store.Access loader
// plus a collection-membership lookup. Both are satisfied by any
// store.Store implementation.
type Resolver struct {
	access      store.Access
	collections CollectionLookup
}

// New builds a Resolver over s, which must implement both store.Access
// and CollectionLookup — true of every store.Store backend.
func New(s interface {
	store.Access
	CollectionLookup
}) *Resolver {
	return &Resolver{access: s, collections: s}
}

// Resolve computes the user's grant for cipher. management, when true,
// grants org Admins and Owners full access even without a collection
// grant or access_all membership flag — the "management contexts" carve-
// out in step 2 of the algorithm, used by org-admin vault browsing
// rather than ordinary client sync.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, cipher *model.Cipher, management bool) (*Grant, error) {
	if cipher.IsPersonal() {
		if *cipher.UserID == user.ID {
			return &Grant{}, nil
		}
		return nil, nil
	}
	if !cipher.IsOrgOwned() {
		return nil, nil
	}
	orgID := *cipher.OrganizationID

	data, err := r.access.LoadAccessData(ctx, user.ID, orgID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if data.Membership.AccessAll {
		return &Grant{}, nil
	}
	if management && data.Membership.Type.AtLeast(model.MembershipAdmin) {
		return &Grant{}, nil
	}
	for _, gid := range data.GroupIDs {
		if data.GroupAccessAll[gid] {
			return &Grant{}, nil
		}
	}

	ciphersCollections, err := r.collections.ListCollectionCiphersByCipher(ctx, cipher.ID)
	if err != nil {
		return nil, err
	}
	if len(ciphersCollections) == 0 {
		return nil, nil
	}
	inCipher := make(map[uuid.UUID]bool, len(ciphersCollections))
	for _, cc := range ciphersCollections {
		inCipher[cc.CollectionID] = true
	}

	var grant *Grant
	combine := func(readOnly, hidePasswords bool) {
		if grant == nil {
			grant = &Grant{ReadOnly: readOnly, HidePasswords: hidePasswords}
			return
		}
		grant.and(Grant{ReadOnly: readOnly, HidePasswords: hidePasswords})
	}

	for _, cu := range data.CollectionUsers {
		if inCipher[cu.CollectionID] {
			combine(cu.ReadOnly, cu.HidePasswords)
		}
	}
	for _, cg := range data.CollectionGroups {
		if inCipher[cg.CollectionID] {
			combine(cg.ReadOnly, cg.HidePasswords)
		}
	}

	return grant, nil
}
