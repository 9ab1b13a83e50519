// Package authrequest implements the AuthRequestBroker component (spec
// section 4.7): cross-device passwordless login, mediated entirely by a
// pending AuthRequest row and out-of-band approval from a device already
// signed in as the same user.
package authrequest

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Notifier delivers the two notifications the broker emits: the initial
// request to the user's other signed-in devices, and the response back
// to both the anonymous requesting device and the user's account channel.
type Notifier interface {
	NotifyAuthRequestCreated(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) error
	NotifyAuthRequestResponse(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) error
}

// Broker implements create/get/list_pending/respond/poll/purge.
type Broker struct {
	Requests store.AuthRequests
	Devices  store.Devices
	Users    store.Users
	Notifier Notifier

	Now func() time.Time
}

// New builds a Broker from its dependencies.
func New(requests store.AuthRequests, devices store.Devices, users store.Users, notifier Notifier) *Broker {
	return &Broker{Requests: requests, Devices: devices, Users: users, Notifier: notifier, Now: time.Now}
}

func (b *Broker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// notFound is the single indistinguishable error returned for every
// pre-creation validation failure, mirroring the original's blanket
// "AuthRequest doesn't exist" response so an unauthenticated caller learns
// nothing about which user or device exists.
func notFound() error {
	return errs.New(errs.KindNotFound, "auth request doesn't exist")
}

// Create locates the user by email, verifies the declared device exists
// and matches its registered type, then persists and announces a pending
// AuthRequest (spec 4.7 create).
func (b *Broker) Create(ctx context.Context, email string, deviceID uuid.UUID, deviceType model.DeviceType, clientIP, accessCode, publicKey string) (*model.AuthRequest, error) {
	user, err := b.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, notFound()
	}

	device, err := b.Devices.GetDevice(ctx, deviceID)
	if err != nil || device.UserID != user.ID || device.Type != deviceType {
		return nil, notFound()
	}

	req := &model.AuthRequest{
		ID:              uuid.Must(uuid.NewV4()),
		UserID:          user.ID,
		RequestDeviceID: deviceID,
		DeviceType:      deviceType,
		RequestIP:       clientIP,
		AccessCode:      accessCode,
		PublicKey:       publicKey,
		CreationDate:    b.now(),
	}
	if err := b.Requests.SaveAuthRequest(ctx, req); err != nil {
		return nil, err
	}

	if b.Notifier != nil {
		_ = b.Notifier.NotifyAuthRequestCreated(ctx, user.ID, req.ID)
	}
	return req, nil
}

// Get returns a request by id, scoped to user, honoring the 5-minute
// lifetime (spec invariant 7).
func (b *Broker) Get(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*model.AuthRequest, error) {
	req, err := b.Requests.GetAuthRequest(ctx, id)
	if err != nil {
		return nil, notFound()
	}
	if req.UserID != userID || req.Expired(b.now()) {
		return nil, notFound()
	}
	return req, nil
}

// ListPending returns the user's not-yet-answered, not-yet-expired
// requests, for the approver's device list.
func (b *Broker) ListPending(ctx context.Context, userID uuid.UUID) ([]model.AuthRequest, error) {
	rows, err := b.Requests.ListPendingAuthRequestsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := b.now()
	out := make([]model.AuthRequest, 0, len(rows))
	for _, r := range rows {
		if r.Pending() && !r.Expired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Respond records the approval or denial from an already-authenticated
// device. It mutates the request exactly once: approved must have been
// null, or this call returns Conflict (spec 4.7, scenario S4's "a second
// PUT on the same request returns 400 Conflict").
func (b *Broker) Respond(ctx context.Context, id uuid.UUID, userID uuid.UUID, approved bool, encKey, masterPasswordHash string, responderDeviceID uuid.UUID) (*model.AuthRequest, error) {
	req, err := b.Requests.GetAuthRequest(ctx, id)
	if err != nil {
		return nil, notFound()
	}
	if req.UserID != userID {
		return nil, notFound()
	}
	if !req.Pending() {
		return nil, errs.New(errs.KindConflict, "auth request has already been answered")
	}
	if req.Expired(b.now()) {
		return nil, notFound()
	}

	now := b.now()
	req.Approved = &approved
	req.ResponseDate = &now
	if approved {
		req.EncKey = encKey
		req.MasterPasswordHash = masterPasswordHash
	}
	if err := b.Requests.SaveAuthRequest(ctx, req); err != nil {
		return nil, err
	}

	if b.Notifier != nil {
		_ = b.Notifier.NotifyAuthRequestResponse(ctx, userID, req.ID)
	}
	return req, nil
}

// Poll is called by the original, still-anonymous requesting device. It
// re-verifies device_type and client IP and checks access_code in
// constant time before releasing the wrapped key (spec 4.7 poll).
func (b *Broker) Poll(ctx context.Context, id uuid.UUID, accessCode, clientIP string, deviceType model.DeviceType) (*model.AuthRequest, error) {
	req, err := b.Requests.GetAuthRequest(ctx, id)
	if err != nil {
		return nil, notFound()
	}
	if req.Expired(b.now()) {
		return nil, notFound()
	}
	if req.DeviceType != deviceType || req.RequestIP != clientIP {
		return nil, notFound()
	}
	if !crypto.CtEq([]byte(req.AccessCode), []byte(accessCode)) {
		return nil, notFound()
	}
	return req, nil
}

// Purge deletes every request older than the 5-minute lifetime,
// independent of whether it was answered. It is idempotent (spec
// invariant 7).
func (b *Broker) Purge(ctx context.Context) (int, error) {
	return b.Requests.PurgeExpiredAuthRequests(ctx, b.now())
}
