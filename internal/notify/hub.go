// Package notify implements the Notifier component (spec 4.10): a
// subscribed WebSocket channel keyed by user-uuid (and, for passwordless
// login, by auth-request-uuid) plus an out-of-band HTTP push relay.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
)

const heartbeatInterval = 15 * time.Second

// connection is one subscribed client. Writes go through a single
// goroutine per connection so per-device ordering is preserved even
// though Publish can be called concurrently from many handlers.
type connection struct {
	id       uuid.UUID
	deviceID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *connection) stop() {
	c.once.Do(func() { close(c.closed) })
}

// Hub holds every live subscribed connection, keyed by user-uuid for the
// authenticated channel and by auth-request-uuid for the anonymous one
// passwordless-login devices use.
type Hub struct {
	mu            sync.Mutex
	byUser        map[uuid.UUID]map[uuid.UUID]*connection
	byAuthRequest map[uuid.UUID]map[uuid.UUID]*connection
	upgrader      websocket.Upgrader
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		byUser:        make(map[uuid.UUID]map[uuid.UUID]*connection),
		byAuthRequest: make(map[uuid.UUID]map[uuid.UUID]*connection),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeUserHub upgrades r into a WebSocket connection subscribed to
// userID's notifications (/notifications/hub). It blocks until the
// connection closes.
func (h *Hub) ServeUserHub(w http.ResponseWriter, r *http.Request, userID, deviceID uuid.UUID) error {
	c, err := h.accept(w, r, deviceID)
	if err != nil {
		return err
	}
	h.register(h.byUser, userID, c)
	defer h.unregister(h.byUser, userID, c)
	return h.run(c)
}

// ServeAuthRequestHub upgrades r into a WebSocket connection subscribed
// to one pending AuthRequest (/notifications/anonymous-hub). It blocks
// until the connection closes.
func (h *Hub) ServeAuthRequestHub(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) error {
	c, err := h.accept(w, r, uuid.Nil)
	if err != nil {
		return err
	}
	h.register(h.byAuthRequest, requestID, c)
	defer h.unregister(h.byAuthRequest, requestID, c)
	return h.run(c)
}

func (h *Hub) accept(w http.ResponseWriter, r *http.Request, deviceID uuid.UUID) (*connection, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !parseHandshake(frame) {
		_ = conn.Close()
		return nil, websocket.ErrBadHandshake
	}
	if err := conn.WriteMessage(websocket.TextMessage, handshakeAck); err != nil {
		_ = conn.Close()
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &connection{
		id:       id,
		deviceID: deviceID,
		conn:     conn,
		send:     make(chan []byte, 32),
		closed:   make(chan struct{}),
	}, nil
}

func (h *Hub) register(table map[uuid.UUID]map[uuid.UUID]*connection, key uuid.UUID, c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := table[key]
	if !ok {
		conns = make(map[uuid.UUID]*connection)
		table[key] = conns
	}
	conns[c.id] = c
}

func (h *Hub) unregister(table map[uuid.UUID]map[uuid.UUID]*connection, key uuid.UUID, c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := table[key]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(table, key)
		}
	}
}

func (h *Hub) run(c *connection) error {
	go c.writeLoop()
	defer c.stop()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

// Publish fans an envelope out to every subscribed connection for key in
// table, skipping excludeDevice if non-nil (LogOut's "every device
// except the requesting one" rule). A connection whose send buffer is
// full or already closing is dropped silently per the cancellation
// guard — the caller never blocks on a slow or dead client.
func publish(ctx context.Context, table map[uuid.UUID]map[uuid.UUID]*connection, mu *sync.Mutex, key uuid.UUID, env PushEnvelope, excludeDevice *uuid.UUID) error {
	frame, err := encodeFrame(env.toInvocation(env.ActingDeviceID.String()))
	if err != nil {
		return err
	}

	mu.Lock()
	conns := make([]*connection, 0, len(table[key]))
	for _, c := range table[key] {
		if excludeDevice != nil && c.deviceID == *excludeDevice {
			continue
		}
		conns = append(conns, c)
	}
	mu.Unlock()

	for _, c := range conns {
		select {
		case c.send <- frame:
		case <-c.closed:
		default:
			// slow consumer: drop rather than block the caller.
		}
	}
	return nil
}

// PublishToUser fans an envelope out to userID's subscribed connections.
func (h *Hub) PublishToUser(ctx context.Context, userID uuid.UUID, env PushEnvelope, excludeDevice *uuid.UUID) error {
	return publish(ctx, h.byUser, &h.mu, userID, env, excludeDevice)
}

// PublishToAuthRequest fans an envelope out to the anonymous connection
// watching requestID, if one is attached.
func (h *Hub) PublishToAuthRequest(ctx context.Context, requestID uuid.UUID, env PushEnvelope) error {
	return publish(ctx, h.byAuthRequest, &h.mu, requestID, env, nil)
}
