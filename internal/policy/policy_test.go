package policy

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store/memory"
)

func setup(t *testing.T) (*Engine, *memory.Store, *model.User) {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "alice@x"}
	require.NoError(t, s.SaveUser(ctx, user))
	return New(s, s), s, user
}

func newOrg(t *testing.T, s *memory.Store) *model.Organization {
	t.Helper()
	org := &model.Organization{ID: uuid.Must(uuid.NewV4()), Name: "acme"}
	require.NoError(t, s.SaveOrganization(context.Background(), org))
	return org
}

func join(t *testing.T, s *memory.Store, user *model.User, org *model.Organization, status model.MembershipStatus, typ model.MembershipType) *model.Membership {
	t.Helper()
	m := &model.Membership{
		ID:             uuid.Must(uuid.NewV4()),
		UserID:         user.ID,
		OrganizationID: org.ID,
		Status:         status,
		Type:           typ,
	}
	require.NoError(t, s.SaveMembership(context.Background(), m))
	return m
}

func enable(t *testing.T, s *memory.Store, org *model.Organization, pt model.PolicyType, enabled bool) {
	t.Helper()
	require.NoError(t, s.SavePolicy(context.Background(), &model.Policy{
		OrganizationID: org.ID,
		Type:           pt,
		Enabled:        enabled,
	}))
}

func TestIsApplicableToUser_DisabledPolicy(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipConfirmed, model.MembershipUser)
	enable(t, s, org, model.PolicyDisableSend, false)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyDisableSend, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsApplicableToUser_EnabledPolicy(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipConfirmed, model.MembershipUser)
	enable(t, s, org, model.PolicyDisableSend, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyDisableSend, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsApplicableToUser_OwnerExempt(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipConfirmed, model.MembershipOwner)
	enable(t, s, org, model.PolicyRequireTwoFactor, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyRequireTwoFactor, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsApplicableToUser_AdminExempt(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipConfirmed, model.MembershipAdmin)
	enable(t, s, org, model.PolicySingleOrg, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicySingleOrg, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsApplicableToUser_NotYetConfirmedExempt(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipAccepted, model.MembershipUser)
	enable(t, s, org, model.PolicyMasterPassword, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyMasterPassword, nil)
	require.NoError(t, err)
	require.False(t, ok)

	m, err := s.GetMembershipByUserOrg(context.Background(), user.ID, org.ID)
	require.NoError(t, err)
	m.Status = model.MembershipConfirmed
	require.NoError(t, s.SaveMembership(context.Background(), m))

	ok, err = e.IsApplicableToUser(context.Background(), user, model.PolicyMasterPassword, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsApplicableToUser_ExcludingOrg(t *testing.T) {
	e, s, user := setup(t)
	org := newOrg(t, s)
	join(t, s, user, org, model.MembershipConfirmed, model.MembershipUser)
	enable(t, s, org, model.PolicyResetPassword, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyResetPassword, &org.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsApplicableToUser_TrueIfAnyOrgHasItEnabled(t *testing.T) {
	e, s, user := setup(t)
	orgA := newOrg(t, s)
	orgB := newOrg(t, s)
	join(t, s, user, orgA, model.MembershipConfirmed, model.MembershipUser)
	join(t, s, user, orgB, model.MembershipConfirmed, model.MembershipUser)
	enable(t, s, orgA, model.PolicyPasswordGenerator, false)
	enable(t, s, orgB, model.PolicyPasswordGenerator, true)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicyPasswordGenerator, nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIsApplicableToUser_NoMembershipAtAll(t *testing.T) {
	e, _, user := setup(t)

	ok, err := e.IsApplicableToUser(context.Background(), user, model.PolicySendOptions, nil)
	require.NoError(t, err)
	require.False(t, ok)
}
