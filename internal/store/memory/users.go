package memory

import (
	"context"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
)

// SaveUser upserts idempotently: a user with an ID already present is
// replaced in place, matching the email index.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if existing, ok := s.usersByEmail[email]; ok && existing != u.ID {
		return fkViolation("email already registered to another user")
	}
	if old, ok := s.users[u.ID]; ok {
		delete(s.usersByEmail, strings.ToLower(old.Email))
	}
	cp := *u
	cp.Email = email
	cp.UpdatedAt = time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.users[cp.ID] = cp
	s.usersByEmail[email] = cp.ID
	*u = cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, notFound("user")
	}
	u := s.users[id]
	return &u, nil
}

// DeleteUser removes a user and every device belonging to it, mirroring
// the cascade Vaultwarden-style deployments apply at the database layer.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return notFound("user")
	}
	delete(s.users, id)
	delete(s.usersByEmail, strings.ToLower(u.Email))
	for devID, d := range s.devices {
		if d.UserID == id {
			delete(s.devices, devID)
		}
	}
	return nil
}

func (s *Store) CurrentSecurityStamp(ctx context.Context, id uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return "", notFound("user")
	}
	return u.SecurityStamp, nil
}

// SaveDevice upserts; DeviceID is client-chosen, so unlike other entities
// there is no auto-generation path here.
func (s *Store) SaveDevice(ctx context.Context, d *model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[d.UserID]; !ok {
		return fkViolation("device references a deleted user")
	}
	cp := *d
	cp.UpdatedAt = time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.devices[cp.ID] = cp
	*d = cp
	return nil
}

func (s *Store) GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, notFound("device")
	}
	return &d, nil
}

func (s *Store) GetDeviceByRefreshToken(ctx context.Context, refreshToken string) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.RefreshToken != "" && d.RefreshToken == refreshToken {
			return &d, nil
		}
	}
	return nil, notFound("device")
}

func (s *Store) ListDevicesByUser(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Device
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return notFound("device")
	}
	delete(s.devices, id)
	return nil
}
