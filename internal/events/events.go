// Package events is the write path for the immutable audit log (spec
// 3's Event entity). It is a thin wrapper over store.Events that fills in
// Timestamp/ID and exposes the org/user-scoped readers and the
// configurable-retention purge job every other component logs through.
package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
	"github.com/vaultkeep/server/internal/store"
)

// Log writes audit events and reads them back scoped to a user or org.
type Log struct {
	Events store.Events
	Now    func() time.Time
}

func New(store store.Events) *Log {
	return &Log{Events: store}
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Entry is the set of fields a call site supplies; ID and Timestamp are
// assigned by Record.
type Entry struct {
	Type           model.EventType
	ActorUserID    *uuid.UUID
	OrganizationID *uuid.UUID
	EntityID       *uuid.UUID
	IP             string
	DeviceType     model.DeviceType
}

// Record appends one audit event and returns the stored copy.
func (l *Log) Record(ctx context.Context, e Entry) (*model.Event, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	ev := &model.Event{
		ID:             id,
		Type:           e.Type,
		ActorUserID:    e.ActorUserID,
		OrganizationID: e.OrganizationID,
		EntityID:       e.EntityID,
		IP:             e.IP,
		DeviceType:     e.DeviceType,
		Timestamp:      l.now(),
	}
	if err := l.Events.SaveEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ForOrganization returns every event recorded against orgID since since.
func (l *Log) ForOrganization(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.Event, error) {
	return l.Events.ListEventsByOrg(ctx, orgID, since)
}

// ForUser returns every event whose actor is userID since since.
func (l *Log) ForUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.Event, error) {
	return l.Events.ListEventsByUser(ctx, userID, since)
}

// Purge deletes events older than the configured retention window and
// reports how many rows were removed.
func (l *Log) Purge(ctx context.Context, retention time.Duration) (int, error) {
	return l.Events.PurgeEventsBefore(ctx, l.now().Add(-retention))
}
