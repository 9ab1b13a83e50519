package memory

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/store"
)

// LoadAccessData batches every row AccessResolver needs to compute a
// user's effective grants within one organization: their membership, the
// groups they belong to (and each group's access_all flag), and every
// direct or group-mediated collection grant.
func (s *Store) LoadAccessData(ctx context.Context, userID, orgID uuid.UUID) (*store.AccessData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found bool
	data := &store.AccessData{GroupAccessAll: make(map[uuid.UUID]bool)}
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			data.Membership = m
			found = true
			break
		}
	}
	if !found {
		return nil, notFound("membership")
	}

	for k := range s.groupUsers {
		if k.UserID != userID {
			continue
		}
		g, ok := s.groups[k.GroupID]
		if !ok || g.OrganizationID != orgID {
			continue
		}
		data.GroupIDs = append(data.GroupIDs, g.ID)
		data.GroupAccessAll[g.ID] = g.AccessAll
	}

	for k, cu := range s.collUsers {
		if k.UserID != userID {
			continue
		}
		if c, ok := s.collections[k.CollectionID]; ok && c.OrganizationID == orgID {
			data.CollectionUsers = append(data.CollectionUsers, cu)
		}
	}

	groupSet := make(map[uuid.UUID]bool, len(data.GroupIDs))
	for _, gid := range data.GroupIDs {
		groupSet[gid] = true
	}
	for k, cg := range s.collGroups {
		if !groupSet[k.GroupID] {
			continue
		}
		if c, ok := s.collections[k.CollectionID]; ok && c.OrganizationID == orgID {
			data.CollectionGroups = append(data.CollectionGroups, cg)
		}
	}

	return data, nil
}
