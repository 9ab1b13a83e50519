// Package grpcserver exposes the narrow internal control-plane RPC named
// in SPEC_FULL.md section 4: a push-fan-out trigger for ops tooling to
// force a resync, and an admin-triggered store.Backup() call. It is not
// the client-facing HTTP/JSON API (spec section 6's external
// collaborator) — only this one internal surface is kept in gRPC, the
// teacher's original transport, so that dependency stays exercised.
package grpcserver

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/notify"
	"github.com/vaultkeep/server/internal/store"
)

// BackupRequest and BackupResponse stand in for the generated protobuf
// messages a `.proto` toolchain would normally produce; see this file's
// doc comment and DESIGN.md for why none is available here.
type BackupRequest struct{}

type BackupResponse struct {
	Snapshot []byte
}

// PushFanOutRequest asks the server to recompute and deliver the live
// notification fan-out for one organization cipher.
type PushFanOutRequest struct {
	OrganizationID uuid.UUID
	CipherID       uuid.UUID
	UpdateType     notify.UpdateType
	ActingDeviceID uuid.UUID
}

type PushFanOutResponse struct {
	DeliveredToUserCount int
}

// Server wires the data store and notifier into the internal RPC
// surface. Every call requires a valid Admin token (spec 4.2's
// KindAdmin) carried as a gRPC bearer credential and enforced by
// AdminAuthUnary before a handler ever runs.
type Server struct {
	Store  store.Store
	Notify *notify.Service
}

// New builds a Server from its dependencies.
func New(s store.Store, n *notify.Service) *Server {
	return &Server{Store: s, Notify: n}
}

// Backup serializes the entire store and returns it to the caller.
func (s *Server) Backup(ctx context.Context, _ *BackupRequest) (*BackupResponse, error) {
	if _, ok := adminClaimsFromCtx(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "no admin claims in context")
	}
	snapshot, err := s.Store.Backup(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "backup: %v", err)
	}
	return &BackupResponse{Snapshot: snapshot}, nil
}

// PushFanOut recomputes the fan-out set for one org cipher and delivers
// the update to every recipient's subscribed/push channel.
func (s *Server) PushFanOut(ctx context.Context, req *PushFanOutRequest) (*PushFanOutResponse, error) {
	if _, ok := adminClaimsFromCtx(ctx); !ok {
		return nil, status.Error(codes.Unauthenticated, "no admin claims in context")
	}
	cipher, err := s.Store.GetCipher(ctx, req.CipherID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "cipher not found")
		}
		return nil, status.Errorf(codes.Internal, "get cipher: %v", err)
	}
	recipients, err := s.Notify.CipherRecipients(ctx, req.OrganizationID, req.CipherID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "compute recipients: %v", err)
	}
	if err := s.Notify.NotifyCipher(ctx, cipher, req.UpdateType, req.ActingDeviceID); err != nil {
		return nil, status.Errorf(codes.Internal, "notify: %v", err)
	}
	return &PushFanOutResponse{DeliveredToUserCount: len(recipients)}, nil
}
