package notify

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Service is the concrete Notifier every other component depends on
// through its own narrow interface (auth.Notifier, vault.Notifier,
// authrequest.Notifier): it fans a push out over the subscribed hub and,
// for devices that registered one, the out-of-band push relay.
type Service struct {
	Hub           *Hub
	Push          *PushRelay
	Devices       store.Devices
	Organizations store.Organizations
}

// New builds a Service from its dependencies. push may be nil to disable
// the out-of-band channel entirely.
func New(hub *Hub, push *PushRelay, devices store.Devices, orgs store.Organizations) *Service {
	return &Service{Hub: hub, Push: push, Devices: devices, Organizations: orgs}
}

func (s *Service) fanOutToUser(ctx context.Context, userID uuid.UUID, env PushEnvelope, exceptDeviceID *uuid.UUID) error {
	if err := s.Hub.PublishToUser(ctx, userID, env, exceptDeviceID); err != nil {
		return err
	}
	devices, err := s.Devices.ListDevicesByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if exceptDeviceID != nil && d.ID == *exceptDeviceID {
			continue
		}
		if d.PushToken == "" {
			continue
		}
		// Per spec 4.10, push-provider failures are per-device and never
		// block the subscribed channel or the caller.
		_ = s.Push.Send(ctx, d.PushToken, env)
	}
	return nil
}

// NotifyLogOut satisfies auth.Notifier and vault.Notifier: it pushes a
// LogOut update to every device of userID except exceptDeviceID.
func (s *Service) NotifyLogOut(ctx context.Context, userID uuid.UUID, exceptDeviceID uuid.UUID) error {
	return s.fanOutToUser(ctx, userID, PushEnvelope{
		Type:           LogOut,
		ActingDeviceID: exceptDeviceID,
	}, &exceptDeviceID)
}

// NotifyAuthRequestCreated satisfies authrequest.Notifier: it alerts the
// approving user's devices that a new passwordless-login request exists.
func (s *Service) NotifyAuthRequestCreated(ctx context.Context, userID, requestID uuid.UUID) error {
	return s.fanOutToUser(ctx, userID, PushEnvelope{
		Type:    AuthRequestEvent,
		Payload: map[string]any{"Id": requestID.String()},
	}, nil)
}

// NotifyAuthRequestResponse satisfies authrequest.Notifier: it delivers
// the approval/denial to the anonymous connection the requesting device
// opened against /notifications/anonymous-hub.
func (s *Service) NotifyAuthRequestResponse(ctx context.Context, userID, requestID uuid.UUID) error {
	if err := s.Hub.PublishToAuthRequest(ctx, requestID, PushEnvelope{
		Type:    AuthRequestAnswer,
		Payload: map[string]any{"Id": requestID.String()},
	}); err != nil {
		return err
	}
	return s.fanOutToUser(ctx, userID, PushEnvelope{
		Type:    AuthRequestAnswer,
		Payload: map[string]any{"Id": requestID.String()},
	}, nil)
}

// NotifyCipher pushes a cipher sync update to every device that can see
// it: just the owner's devices for a personal cipher, or the full
// organization fan-out set computed by CipherRecipients for an org-owned
// one (spec 4.10's fan-out rules).
func (s *Service) NotifyCipher(ctx context.Context, c *model.Cipher, updateType UpdateType, actingDeviceID uuid.UUID) error {
	env := PushEnvelope{
		Type:           updateType,
		Payload:        map[string]any{"Id": c.ID.String()},
		ActingDeviceID: actingDeviceID,
	}
	if c.IsPersonal() {
		return s.fanOutToUser(ctx, *c.UserID, env, nil)
	}
	if !c.IsOrgOwned() {
		return nil
	}
	recipients, err := s.CipherRecipients(ctx, *c.OrganizationID, c.ID)
	if err != nil {
		return err
	}
	for _, userID := range recipients {
		if err := s.fanOutToUser(ctx, userID, env, nil); err != nil {
			return err
		}
	}
	return nil
}

// CipherRecipients computes every user who can see cipherID within orgID:
// every confirmed member with access_all, every member of a group with
// access_all, and every user with a direct or group grant touching a
// collection the cipher belongs to (spec 4.10).
func (s *Service) CipherRecipients(ctx context.Context, orgID, cipherID uuid.UUID) ([]uuid.UUID, error) {
	memberships, err := s.Organizations.ListMembershipsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	recipients := make(map[uuid.UUID]bool)
	for _, m := range memberships {
		if m.Status == model.MembershipConfirmed && m.AccessAll {
			recipients[m.UserID] = true
		}
	}

	groups, err := s.Organizations.ListGroupsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	accessAllGroups := make(map[uuid.UUID]bool)
	for _, g := range groups {
		if g.AccessAll {
			accessAllGroups[g.ID] = true
		}
	}
	for gid := range accessAllGroups {
		members, err := s.Organizations.ListGroupUsersByGroup(ctx, gid)
		if err != nil {
			return nil, err
		}
		for _, gu := range members {
			recipients[gu.UserID] = true
		}
	}

	collCiphers, err := s.Organizations.ListCollectionCiphersByCipher(ctx, cipherID)
	if err != nil {
		return nil, err
	}
	for _, cc := range collCiphers {
		collUsers, err := s.Organizations.ListCollectionUsersByCollection(ctx, cc.CollectionID)
		if err != nil {
			return nil, err
		}
		for _, cu := range collUsers {
			recipients[cu.UserID] = true
		}

		collGroups, err := s.Organizations.ListCollectionGroupsByCollection(ctx, cc.CollectionID)
		if err != nil {
			return nil, err
		}
		for _, cg := range collGroups {
			members, err := s.Organizations.ListGroupUsersByGroup(ctx, cg.GroupID)
			if err != nil {
				return nil, err
			}
			for _, gu := range members {
				recipients[gu.UserID] = true
			}
		}
	}

	out := make([]uuid.UUID, 0, len(recipients))
	for id := range recipients {
		out = append(out, id)
	}
	return out, nil
}
