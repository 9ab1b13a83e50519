package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SaveOrganization(ctx context.Context, o *model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.orgs[cp.ID] = cp
	*o = cp
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[id]
	if !ok {
		return nil, notFound("organization")
	}
	return &o, nil
}

// DeleteOrganization cascades to every membership, group and collection
// scoped to it, and the grant rows that reference those.
func (s *Store) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[id]; !ok {
		return notFound("organization")
	}
	delete(s.orgs, id)
	for mid, m := range s.memberships {
		if m.OrganizationID == id {
			delete(s.memberships, mid)
		}
	}
	for gid, g := range s.groups {
		if g.OrganizationID == id {
			delete(s.groups, gid)
			for k := range s.groupUsers {
				if k.GroupID == gid {
					delete(s.groupUsers, k)
				}
			}
		}
	}
	for cid, c := range s.collections {
		if c.OrganizationID == id {
			delete(s.collections, cid)
			s.deleteCollectionGrantsLocked(cid)
		}
	}
	return nil
}

func (s *Store) deleteCollectionGrantsLocked(collectionID uuid.UUID) {
	for k := range s.collUsers {
		if k.CollectionID == collectionID {
			delete(s.collUsers, k)
		}
	}
	for k := range s.collGroups {
		if k.CollectionID == collectionID {
			delete(s.collGroups, k)
		}
	}
	for k := range s.collCiphers {
		if k.CollectionID == collectionID {
			delete(s.collCiphers, k)
		}
	}
}

func (s *Store) SaveMembership(ctx context.Context, m *model.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[m.UserID]; !ok {
		return fkViolation("membership references a deleted user")
	}
	if _, ok := s.orgs[m.OrganizationID]; !ok {
		return fkViolation("membership references a deleted organization")
	}
	cp := *m
	now := time.Now()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.memberships[cp.ID] = cp
	*m = cp
	return nil
}

func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (*model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, notFound("membership")
	}
	return &m, nil
}

func (s *Store) GetMembershipByUserOrg(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			return &m, nil
		}
	}
	return nil, notFound("membership")
}

func (s *Store) ListMembershipsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return notFound("membership")
	}
	delete(s.memberships, id)
	for k := range s.groupUsers {
		if k.UserID == m.UserID {
			if g, ok := s.groups[k.GroupID]; ok && g.OrganizationID == m.OrganizationID {
				delete(s.groupUsers, k)
			}
		}
	}
	for k := range s.collUsers {
		if k.UserID == m.UserID {
			if c, ok := s.collections[k.CollectionID]; ok && c.OrganizationID == m.OrganizationID {
				delete(s.collUsers, k)
			}
		}
	}
	return nil
}

func (s *Store) SaveGroup(ctx context.Context, g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[g.OrganizationID]; !ok {
		return fkViolation("group references a deleted organization")
	}
	cp := *g
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.groups[cp.ID] = cp
	*g = cp
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, notFound("group")
	}
	return &g, nil
}

func (s *Store) ListGroupsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Group
	for _, g := range s.groups {
		if g.OrganizationID == orgID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return notFound("group")
	}
	delete(s.groups, id)
	for k := range s.groupUsers {
		if k.GroupID == id {
			delete(s.groupUsers, k)
		}
	}
	for k := range s.collGroups {
		if k.GroupID == id {
			delete(s.collGroups, k)
		}
	}
	return nil
}

func (s *Store) SaveGroupUser(ctx context.Context, gu *model.GroupUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[gu.GroupID]; !ok {
		return fkViolation("group-user references a deleted group")
	}
	if _, ok := s.users[gu.UserID]; !ok {
		return fkViolation("group-user references a deleted user")
	}
	s.groupUsers[groupUserKey{gu.GroupID, gu.UserID}] = *gu
	return nil
}

func (s *Store) ListGroupUsersByGroup(ctx context.Context, groupID uuid.UUID) ([]model.GroupUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.GroupUser
	for k, gu := range s.groupUsers {
		if k.GroupID == groupID {
			out = append(out, gu)
		}
	}
	return out, nil
}

func (s *Store) ListGroupsByUser(ctx context.Context, userID, orgID uuid.UUID) ([]model.GroupUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.GroupUser
	for k, gu := range s.groupUsers {
		if k.UserID != userID {
			continue
		}
		if g, ok := s.groups[k.GroupID]; ok && g.OrganizationID == orgID {
			out = append(out, gu)
		}
	}
	return out, nil
}

func (s *Store) DeleteGroupUser(ctx context.Context, groupID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := groupUserKey{groupID, userID}
	if _, ok := s.groupUsers[k]; !ok {
		return notFound("group-user")
	}
	delete(s.groupUsers, k)
	return nil
}

func (s *Store) SaveCollection(ctx context.Context, c *model.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[c.OrganizationID]; !ok {
		return fkViolation("collection references a deleted organization")
	}
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.collections[cp.ID] = cp
	*c = cp
	return nil
}

func (s *Store) GetCollection(ctx context.Context, id uuid.UUID) (*model.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, notFound("collection")
	}
	return &c, nil
}

func (s *Store) ListCollectionsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Collection
	for _, c := range s.collections {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[id]; !ok {
		return notFound("collection")
	}
	delete(s.collections, id)
	s.deleteCollectionGrantsLocked(id)
	return nil
}

func (s *Store) SaveCollectionUser(ctx context.Context, cu *model.CollectionUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[cu.CollectionID]; !ok {
		return fkViolation("collection-user references a deleted collection")
	}
	if _, ok := s.users[cu.UserID]; !ok {
		return fkViolation("collection-user references a deleted user")
	}
	s.collUsers[collUserKey{cu.CollectionID, cu.UserID}] = *cu
	return nil
}

func (s *Store) ListCollectionUsersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CollectionUser
	for k, cu := range s.collUsers {
		if k.CollectionID == collectionID {
			out = append(out, cu)
		}
	}
	return out, nil
}

func (s *Store) ListCollectionUsersByUser(ctx context.Context, userID uuid.UUID) ([]model.CollectionUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CollectionUser
	for k, cu := range s.collUsers {
		if k.UserID == userID {
			out = append(out, cu)
		}
	}
	return out, nil
}

func (s *Store) DeleteCollectionUser(ctx context.Context, collectionID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := collUserKey{collectionID, userID}
	if _, ok := s.collUsers[k]; !ok {
		return notFound("collection-user")
	}
	delete(s.collUsers, k)
	return nil
}

func (s *Store) SaveCollectionGroup(ctx context.Context, cg *model.CollectionGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[cg.CollectionID]; !ok {
		return fkViolation("collection-group references a deleted collection")
	}
	if _, ok := s.groups[cg.GroupID]; !ok {
		return fkViolation("collection-group references a deleted group")
	}
	s.collGroups[collGroupKey{cg.CollectionID, cg.GroupID}] = *cg
	return nil
}

func (s *Store) ListCollectionGroupsByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CollectionGroup
	for k, cg := range s.collGroups {
		if k.CollectionID == collectionID {
			out = append(out, cg)
		}
	}
	return out, nil
}

func (s *Store) DeleteCollectionGroup(ctx context.Context, collectionID, groupID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := collGroupKey{collectionID, groupID}
	if _, ok := s.collGroups[k]; !ok {
		return notFound("collection-group")
	}
	delete(s.collGroups, k)
	return nil
}

func (s *Store) SaveCollectionCipher(ctx context.Context, cc *model.CollectionCipher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[cc.CollectionID]; !ok {
		return fkViolation("collection-cipher references a deleted collection")
	}
	if _, ok := s.ciphers[cc.CipherID]; !ok {
		return fkViolation("collection-cipher references a deleted cipher")
	}
	s.collCiphers[collCipherKey{cc.CollectionID, cc.CipherID}] = *cc
	return nil
}

func (s *Store) ListCollectionCiphersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionCipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CollectionCipher
	for k, cc := range s.collCiphers {
		if k.CollectionID == collectionID {
			out = append(out, cc)
		}
	}
	return out, nil
}

func (s *Store) ListCollectionCiphersByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.CollectionCipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CollectionCipher
	for k, cc := range s.collCiphers {
		if k.CipherID == cipherID {
			out = append(out, cc)
		}
	}
	return out, nil
}

func (s *Store) DeleteCollectionCipher(ctx context.Context, collectionID, cipherID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := collCipherKey{collectionID, cipherID}
	if _, ok := s.collCiphers[k]; !ok {
		return notFound("collection-cipher")
	}
	delete(s.collCiphers, k)
	return nil
}
