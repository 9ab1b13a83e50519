package grpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/notify"
	"github.com/vaultkeep/server/internal/store/memory"
	"github.com/vaultkeep/server/internal/token"
)

const bufSize = 1 << 20

// testRig wires a Server behind a real in-memory gRPC connection with the
// full interceptor chain, the gob codec, and a live admin token.
type testRig struct {
	cc       *grpc.ClientConn
	codec    *token.Codec
	adminTok string
}

func startBufGRPC(t *testing.T, srv *Server, codec *token.Codec) *testRig {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	log := zap.NewNop()
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AdminAuthUnary(codec),
	))
	Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(gobCodecName)),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })

	tok, err := codec.IssueAdmin()
	require.NoError(t, err)

	return &testRig{cc: cc, codec: codec, adminTok: tok}
}

func ctxWithAdmin(tok string) context.Context {
	return metadata.NewOutgoingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
}

func invokeBackup(ctx context.Context, cc *grpc.ClientConn, req *BackupRequest) (*BackupResponse, error) {
	out := new(BackupResponse)
	err := cc.Invoke(ctx, "/vaultkeep.internal.ControlPlane/Backup", req, out)
	return out, err
}

func invokePushFanOut(ctx context.Context, cc *grpc.ClientConn, req *PushFanOutRequest) (*PushFanOutResponse, error) {
	out := new(PushFanOutResponse)
	err := cc.Invoke(ctx, "/vaultkeep.internal.ControlPlane/PushFanOut", req, out)
	return out, err
}

func TestServer_Backup_RequiresAdminToken(t *testing.T) {
	t.Parallel()

	s := memory.New()
	codec := newTestCodec(t)
	srv := New(s, notify.New(notify.NewHub(), nil, s, s))
	rig := startBufGRPC(t, srv, codec)

	_, err := invokeBackup(context.Background(), rig.cc, &BackupRequest{})
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.Unauthenticated, st.Code())
}

func TestServer_Backup_WithAdminToken(t *testing.T) {
	t.Parallel()

	s := memory.New()
	user := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@x"}
	require.NoError(t, s.SaveUser(context.Background(), user))

	codec := newTestCodec(t)
	srv := New(s, notify.New(notify.NewHub(), nil, s, s))
	rig := startBufGRPC(t, srv, codec)

	resp, err := invokeBackup(ctxWithAdmin(rig.adminTok), rig.cc, &BackupRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Snapshot)
}

func TestServer_PushFanOut_NotFound(t *testing.T) {
	t.Parallel()

	s := memory.New()
	codec := newTestCodec(t)
	srv := New(s, notify.New(notify.NewHub(), nil, s, s))
	rig := startBufGRPC(t, srv, codec)

	_, err := invokePushFanOut(ctxWithAdmin(rig.adminTok), rig.cc, &PushFanOutRequest{
		CipherID:   uuid.Must(uuid.NewV4()),
		UpdateType: notify.SyncCipherUpdate,
	})
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())
}

func TestServer_PushFanOut_DeliversToAccessAllMember(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()

	org := &model.Organization{ID: uuid.Must(uuid.NewV4()), Name: "acme"}
	require.NoError(t, s.SaveOrganization(ctx, org))

	member := &model.User{ID: uuid.Must(uuid.NewV4()), Email: "member@x"}
	require.NoError(t, s.SaveUser(ctx, member))
	require.NoError(t, s.SaveMembership(ctx, &model.Membership{
		ID: uuid.Must(uuid.NewV4()), UserID: member.ID, OrganizationID: org.ID,
		Status: model.MembershipConfirmed, AccessAll: true,
	}))

	cipher := &model.Cipher{ID: uuid.Must(uuid.NewV4()), OrganizationID: &org.ID, Type: model.CipherLogin, Data: []byte("ct")}
	require.NoError(t, s.SaveCipher(ctx, cipher))

	codec := newTestCodec(t)
	srv := New(s, notify.New(notify.NewHub(), nil, s, s))
	rig := startBufGRPC(t, srv, codec)

	resp, err := invokePushFanOut(ctxWithAdmin(rig.adminTok), rig.cc, &PushFanOutRequest{
		OrganizationID: org.ID,
		CipherID:       cipher.ID,
		UpdateType:     notify.SyncCipherUpdate,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.DeliveredToUserCount)
}
