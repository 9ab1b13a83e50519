package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// EventType codes the audited action. Ranges mirror the affected entity
// family (user, cipher, collection, group, org-user, org, policy).
type EventType int

const (
	EventUserLoggedIn EventType = 1000 + iota
	EventUserChangedEmail
	EventUserChangedPassword
	EventUserEnabledTwoFactor
	EventUserDisabledTwoFactor
	EventUserFailedLogIn
	EventUserFailedLogIn2FA
	EventUserLoggedInIncomplete2FA
	EventUserLoggedOut
)

const (
	EventCipherCreated EventType = 1100 + iota
	EventCipherUpdated
	EventCipherDeleted
	EventCipherShared
)

const (
	EventCollectionCreated EventType = 1300 + iota
	EventCollectionUpdated
	EventCollectionDeleted
)

const (
	EventOrgUserInvited EventType = 1500 + iota
	EventOrgUserConfirmed
	EventOrgUserRemoved
)

const (
	EventOrgUpdated EventType = 1600 + iota
)

const (
	EventPolicyUpdated EventType = 1700 + iota
)

// Event is an immutable audit record.
type Event struct {
	ID             uuid.UUID
	Type           EventType
	ActorUserID    *uuid.UUID
	OrganizationID *uuid.UUID
	EntityID       *uuid.UUID
	IP             string
	DeviceType     DeviceType
	Timestamp      time.Time
}
