package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestParseHandshake(t *testing.T) {
	require.True(t, parseHandshake([]byte(`{"protocol":"messagepack","version":1}`+string(rune(handshakeTerminator)))))
	require.False(t, parseHandshake([]byte(`{}`)))
	require.False(t, parseHandshake(nil))
}

func TestEncodeFrame_RoundTrips(t *testing.T) {
	env := PushEnvelope{Type: LogOut, Payload: map[string]any{"UserId": "u1"}}
	frame, err := encodeFrame(env.toInvocation("ctx-1"))
	require.NoError(t, err)
	require.NotEmpty(t, frame)

	// Strip the single-byte varint length prefix (payload is well under
	// 128 bytes) and decode the MsgPack body underneath.
	var decoded []any
	require.NoError(t, msgpack.Unmarshal(frame[1:], &decoded))
	require.EqualValues(t, 1, decoded[0])
	require.Equal(t, "ReceiveMessage", decoded[3])
}
