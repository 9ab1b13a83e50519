package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/vaultkeep/server/internal/model"
)

// SaveCipher requires exactly one of UserID/OrganizationID to reference a
// live owner; the FK check runs against whichever is set.
func (s *Store) SaveCipher(ctx context.Context, c *model.Cipher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.UserID != nil {
		if _, ok := s.users[*c.UserID]; !ok {
			return fkViolation("cipher references a deleted user")
		}
	}
	if c.OrganizationID != nil {
		if _, ok := s.orgs[*c.OrganizationID]; !ok {
			return fkViolation("cipher references a deleted organization")
		}
	}
	cp := *c
	now := time.Now()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.ciphers[cp.ID] = cp
	*c = cp
	return nil
}

func (s *Store) GetCipher(ctx context.Context, id uuid.UUID) (*model.Cipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.ciphers[id]
	if !ok {
		return nil, notFound("cipher")
	}
	return &c, nil
}

func (s *Store) ListCiphersByUser(ctx context.Context, userID uuid.UUID) ([]model.Cipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Cipher
	for _, c := range s.ciphers {
		if c.UserID != nil && *c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListCiphersByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Cipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Cipher
	for _, c := range s.ciphers {
		if c.OrganizationID != nil && *c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteCipher(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ciphers[id]; !ok {
		return notFound("cipher")
	}
	delete(s.ciphers, id)
	for k := range s.collCiphers {
		if k.CipherID == id {
			delete(s.collCiphers, k)
		}
	}
	for k := range s.folderCiphers {
		if k.CipherID == id {
			delete(s.folderCiphers, k)
		}
	}
	for aid, a := range s.attachments {
		if a.CipherID == id {
			delete(s.attachments, aid)
		}
	}
	return nil
}

// PurgeTrashedCiphersBefore hard-deletes any cipher soft-deleted before
// cutoff, returning the count removed.
func (s *Store) PurgeTrashedCiphersBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.ciphers {
		if c.DeletedAt != nil && c.DeletedAt.Before(cutoff) {
			delete(s.ciphers, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SaveFolder(ctx context.Context, f *model.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[f.UserID]; !ok {
		return fkViolation("folder references a deleted user")
	}
	cp := *f
	now := time.Now()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.folders[cp.ID] = cp
	*f = cp
	return nil
}

func (s *Store) GetFolder(ctx context.Context, id uuid.UUID) (*model.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[id]
	if !ok {
		return nil, notFound("folder")
	}
	return &f, nil
}

func (s *Store) ListFoldersByUser(ctx context.Context, userID uuid.UUID) ([]model.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Folder
	for _, f := range s.folders {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[id]; !ok {
		return notFound("folder")
	}
	delete(s.folders, id)
	for k := range s.folderCiphers {
		if k.FolderID == id {
			delete(s.folderCiphers, k)
		}
	}
	return nil
}

func (s *Store) SaveFolderCipher(ctx context.Context, fc *model.FolderCipher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[fc.FolderID]; !ok {
		return fkViolation("folder-cipher references a deleted folder")
	}
	if _, ok := s.ciphers[fc.CipherID]; !ok {
		return fkViolation("folder-cipher references a deleted cipher")
	}
	s.folderCiphers[folderCipherKey{fc.FolderID, fc.CipherID}] = *fc
	return nil
}

func (s *Store) ListFolderCiphersByFolder(ctx context.Context, folderID uuid.UUID) ([]model.FolderCipher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.FolderCipher
	for k, fc := range s.folderCiphers {
		if k.FolderID == folderID {
			out = append(out, fc)
		}
	}
	return out, nil
}

func (s *Store) DeleteFolderCipher(ctx context.Context, folderID, cipherID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := folderCipherKey{folderID, cipherID}
	if _, ok := s.folderCiphers[k]; !ok {
		return notFound("folder-cipher")
	}
	delete(s.folderCiphers, k)
	return nil
}

func (s *Store) SaveAttachment(ctx context.Context, a *model.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ciphers[a.CipherID]; !ok {
		return fkViolation("attachment references a deleted cipher")
	}
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.attachments[cp.ID] = cp
	*a = cp
	return nil
}

func (s *Store) GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attachments[id]
	if !ok {
		return nil, notFound("attachment")
	}
	return &a, nil
}

func (s *Store) ListAttachmentsByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Attachment
	for _, a := range s.attachments {
		if a.CipherID == cipherID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[id]; !ok {
		return notFound("attachment")
	}
	delete(s.attachments, id)
	return nil
}

// SaveSend requires UserID (when set) to reference a live user; an
// anonymous Send has a nil UserID and no FK to check.
func (s *Store) SaveSend(ctx context.Context, send *model.Send) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if send.UserID != nil {
		if _, ok := s.users[*send.UserID]; !ok {
			return fkViolation("send references a deleted user")
		}
	}
	cp := *send
	now := time.Now()
	cp.UpdatedAt = now
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	s.sends[cp.ID] = cp
	*send = cp
	return nil
}

func (s *Store) GetSend(ctx context.Context, id uuid.UUID) (*model.Send, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	send, ok := s.sends[id]
	if !ok {
		return nil, notFound("send")
	}
	return &send, nil
}

func (s *Store) ListSendsByUser(ctx context.Context, userID uuid.UUID) ([]model.Send, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Send
	for _, send := range s.sends {
		if send.UserID != nil && *send.UserID == userID {
			out = append(out, send)
		}
	}
	return out, nil
}

func (s *Store) DeleteSend(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sends[id]; !ok {
		return notFound("send")
	}
	delete(s.sends, id)
	return nil
}

func (s *Store) PurgeExpiredSends(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, send := range s.sends {
		if send.IsExpired(now) {
			delete(s.sends, id)
			n++
		}
	}
	return n, nil
}
