package notify

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// handshakeTerminator is the 0x1E "record separator" SignalR's text
// handshake protocol frames messages with.
const handshakeTerminator = 0x1E

// handshakeAck is the literal 3-byte acknowledgement the spec requires:
// "{}" followed by the record separator.
var handshakeAck = []byte{'{', '}', handshakeTerminator}

// parseHandshake validates a client handshake frame (a JSON object
// terminated by 0x1E) and reports whether it was well-formed enough to
// ack. The hub doesn't need the negotiated protocol/version, only that a
// terminator arrived.
func parseHandshake(frame []byte) bool {
	return len(frame) > 0 && frame[len(frame)-1] == handshakeTerminator
}

// encodeFrame serializes an invocation as length-prefixed MsgPack: a
// base-128 varint byte count followed by the MsgPack-encoded array.
func encodeFrame(inv invocation) ([]byte, error) {
	body, err := msgpack.Marshal([]any{
		inv.MessageType, inv.Headers, inv.InvocationID, inv.Target, inv.Arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	var buf bytes.Buffer
	n := uint64(len(body))
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if n == 0 {
			break
		}
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
