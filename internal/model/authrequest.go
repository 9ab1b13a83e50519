package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// AuthRequestLifetime bounds how long a pending cross-device login request
// remains valid, per spec invariant 7.
const AuthRequestLifetime = 5 * time.Minute

// AuthRequest is a pending passwordless login, approved out-of-band by
// another signed-in device of the same user.
type AuthRequest struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	RequestDeviceID   uuid.UUID
	DeviceType        DeviceType
	RequestIP         string
	AccessCode        string // client secret used for polling
	PublicKey         string
	Approved          *bool // nil = pending
	EncKey            string // vault key wrapped to requester's pubkey, set on approval
	MasterPasswordHash string // optional proof supplied by the approver
	CreationDate      time.Time
	ResponseDate      *time.Time
}

// Expired reports whether the request has outlived AuthRequestLifetime.
func (r AuthRequest) Expired(now time.Time) bool {
	return now.Sub(r.CreationDate) > AuthRequestLifetime
}

// Pending reports whether the request has not yet been answered.
func (r AuthRequest) Pending() bool { return r.Approved == nil }
