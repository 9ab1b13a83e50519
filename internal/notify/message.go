package notify

import "github.com/gofrs/uuid/v5"

// UpdateType enumerates the notification kinds PushEnvelope.Type carries
// (spec 4.10).
type UpdateType string

const (
	SyncCipherCreate   UpdateType = "SyncCipherCreate"
	SyncCipherUpdate   UpdateType = "SyncCipherUpdate"
	SyncCipherDelete   UpdateType = "SyncCipherDelete"
	SyncFolderCreate   UpdateType = "SyncFolderCreate"
	SyncFolderUpdate   UpdateType = "SyncFolderUpdate"
	SyncFolderDelete   UpdateType = "SyncFolderDelete"
	SyncSendCreate     UpdateType = "SyncSendCreate"
	SyncSendUpdate     UpdateType = "SyncSendUpdate"
	SyncSendDelete     UpdateType = "SyncSendDelete"
	SyncSettings       UpdateType = "SyncSettings"
	SyncVault          UpdateType = "SyncVault"
	SyncOrgKeys        UpdateType = "SyncOrgKeys"
	LogOut             UpdateType = "LogOut"
	AuthRequestEvent   UpdateType = "AuthRequest"
	AuthRequestAnswer  UpdateType = "AuthRequestResponse"
)

// PushEnvelope is the payload both channels carry (spec 4.10's "payload
// mirrors the subscribed channel semantics"). ActingDeviceID lets the
// originating client suppress its own echo.
type PushEnvelope struct {
	Type           UpdateType
	Payload        map[string]any
	ActingDeviceID uuid.UUID
}

// invocation is the SignalR-shaped MsgPack array the subscribed channel
// writes: [messageType, headers, invocationId, target, arguments].
type invocation struct {
	MessageType  int
	Headers      map[string]string
	InvocationID any
	Target       string
	Arguments    []any
}

func (e PushEnvelope) toInvocation(contextID string) invocation {
	return invocation{
		MessageType:  1, // SignalR Invocation
		Headers:      map[string]string{},
		InvocationID: nil,
		Target:       "ReceiveMessage",
		Arguments: []any{
			map[string]any{
				"ContextId": contextID,
				"Type":      e.Type,
				"Payload":   e.Payload,
			},
		},
	}
}
