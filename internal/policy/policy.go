// Package policy implements PolicyEngine (spec 4.9): a pure predicate over
// an organization's policy rows and a user's memberships. It never blocks a
// request by itself; a caller consults it and decides what to do with the
// answer. cmd/vaultkeep constructs an Engine; no package under internal/
// calls it.
package policy

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Engine answers IsApplicableToUser against a Policies store and the
// caller's membership store.
type Engine struct {
	Policies      store.Policies
	Organizations store.Organizations
}

func New(policies store.Policies, orgs store.Organizations) *Engine {
	return &Engine{Policies: policies, Organizations: orgs}
}

// IsApplicableToUser reports whether policyType applies to user: true iff
// the user holds a non-exempt, confirmed membership in at least one
// organization (other than excludingOrg, if given) that has the policy
// enabled. Owner/Admin memberships are always exempt; invited/accepted
// memberships not yet confirmed are exempt regardless of privilege, since
// the user has not finished joining the organization.
func (e *Engine) IsApplicableToUser(ctx context.Context, user *model.User, policyType model.PolicyType, excludingOrg *uuid.UUID) (bool, error) {
	memberships, err := e.Organizations.ListMembershipsByUser(ctx, user.ID)
	if err != nil {
		return false, err
	}

	for _, m := range memberships {
		if excludingOrg != nil && m.OrganizationID == *excludingOrg {
			continue
		}
		if m.Status != model.MembershipConfirmed {
			continue
		}
		if m.IsExempt() {
			continue
		}

		p, err := e.Policies.GetPolicy(ctx, m.OrganizationID, policyType)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				continue
			}
			return false, err
		}
		if p.Enabled {
			return true, nil
		}
	}
	return false, nil
}
