package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SaveTwoFactor(ctx context.Context, tf *model.TwoFactor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[tf.UserID]; !ok {
		return fkViolation("two-factor references a deleted user")
	}
	cp := *tf
	now := time.Now()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.twoFactors[twoFactorKey{tf.UserID, tf.Kind}] = cp
	*tf = cp
	return nil
}

func (s *Store) GetTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) (*model.TwoFactor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tf, ok := s.twoFactors[twoFactorKey{userID, kind}]
	if !ok {
		return nil, notFound("two-factor")
	}
	return &tf, nil
}

func (s *Store) ListTwoFactorsByUser(ctx context.Context, userID uuid.UUID) ([]model.TwoFactor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TwoFactor
	for k, tf := range s.twoFactors {
		if k.UserID == userID {
			out = append(out, tf)
		}
	}
	return out, nil
}

func (s *Store) DeleteTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := twoFactorKey{userID, kind}
	if _, ok := s.twoFactors[k]; !ok {
		return notFound("two-factor")
	}
	delete(s.twoFactors, k)
	return nil
}

func (s *Store) SaveAuthRequest(ctx context.Context, r *model.AuthRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[r.UserID]; !ok {
		return fkViolation("auth request references a deleted user")
	}
	cp := *r
	if cp.CreationDate.IsZero() {
		cp.CreationDate = time.Now()
	}
	s.authRequests[cp.ID] = cp
	*r = cp
	return nil
}

func (s *Store) GetAuthRequest(ctx context.Context, id uuid.UUID) (*model.AuthRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.authRequests[id]
	if !ok {
		return nil, notFound("auth request")
	}
	return &r, nil
}

func (s *Store) ListPendingAuthRequestsByUser(ctx context.Context, userID uuid.UUID) ([]model.AuthRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AuthRequest
	for _, r := range s.authRequests {
		if r.UserID == userID && r.Pending() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) DeleteAuthRequest(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.authRequests[id]; !ok {
		return notFound("auth request")
	}
	delete(s.authRequests, id)
	return nil
}

func (s *Store) PurgeExpiredAuthRequests(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.authRequests {
		if r.Expired(now) {
			delete(s.authRequests, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveEvent(ctx context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	s.events[cp.ID] = cp
	*e = cp
	return nil
}

func (s *Store) ListEventsByOrg(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if e.OrganizationID != nil && *e.OrganizationID == orgID && e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListEventsByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if e.ActorUserID != nil && *e.ActorUserID == userID && e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SavePolicy(ctx context.Context, p *model.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[p.OrganizationID]; !ok {
		return fkViolation("policy references a deleted organization")
	}
	cp := *p
	s.policies[policyKey{p.OrganizationID, p.Type}] = cp
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) (*model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyKey{orgID, kind}]
	if !ok {
		return nil, notFound("policy")
	}
	return &p, nil
}

func (s *Store) ListPoliciesByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Policy
	for k, p := range s.policies {
		if k.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeletePolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := policyKey{orgID, kind}
	if _, ok := s.policies[key]; !ok {
		return notFound("policy")
	}
	delete(s.policies, key)
	return nil
}
