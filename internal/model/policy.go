package model

import "github.com/gofrs/uuid/v5"

// PolicyType enumerates the organization policy kinds PolicyEngine
// evaluates (spec 4.9).
type PolicyType int

const (
	PolicyDisableSend PolicyType = iota
	PolicySendOptions             // HideEmail
	PolicySingleOrg
	PolicyRequireTwoFactor
	PolicyPasswordGenerator
	PolicyMasterPassword
	PolicyResetPassword
)

// Policy is one organization's configuration for a single PolicyType.
// Data carries type-specific parameters (e.g. PasswordGenerator's minimum
// length) as an opaque JSON document; PolicyEngine's predicate does not
// need to parse it, only enforcement sites that apply the specific rule.
type Policy struct {
	OrganizationID uuid.UUID
	Type           PolicyType
	Enabled        bool
	Data           []byte
}
