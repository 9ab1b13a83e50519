package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/store"
)

// LoadAccessData combines the pgx-backed membership/collection_user rows
// with group data from the embedded memory store (Group/GroupUser/
// CollectionGroup are not duplicated in Postgres — see DESIGN.md).
func (s *Store) LoadAccessData(ctx context.Context, userID, orgID uuid.UUID) (*store.AccessData, error) {
	membership, err := s.GetMembershipByUserOrg(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	collUsers, err := s.ListCollectionUsersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered := collUsers[:0]
	for _, cu := range collUsers {
		c, err := s.GetCollection(ctx, cu.CollectionID)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				continue
			}
			return nil, err
		}
		if c.OrganizationID == orgID {
			filtered = append(filtered, cu)
		}
	}

	auxData, err := s.aux.LoadAccessData(ctx, userID, orgID)
	groupIDs := []uuid.UUID{}
	groupAccessAll := map[uuid.UUID]bool{}
	if err == nil && auxData != nil {
		groupIDs = auxData.GroupIDs
		groupAccessAll = auxData.GroupAccessAll
	}

	data := &store.AccessData{
		Membership:      *membership,
		CollectionUsers: filtered,
		GroupIDs:        groupIDs,
		GroupAccessAll:  groupAccessAll,
	}
	if auxData != nil {
		data.CollectionGroups = auxData.CollectionGroups
	}
	return data, nil
}
