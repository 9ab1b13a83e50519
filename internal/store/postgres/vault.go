package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SaveCipher(ctx context.Context, c *model.Cipher) error {
	const q = `
INSERT INTO ciphers (id, user_id, organization_id, type, data, fields, password_history, key, favorite, deleted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  type = EXCLUDED.type, data = EXCLUDED.data, fields = EXCLUDED.fields,
  password_history = EXCLUDED.password_history, key = EXCLUDED.key,
  favorite = EXCLUDED.favorite, deleted_at = EXCLUDED.deleted_at, updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, c.ID, c.UserID, c.OrganizationID, c.Type, []byte(c.Data), []byte(c.Fields), []byte(c.PasswordHistory), []byte(c.Key), c.Favorite, c.DeletedAt)
	if err := row.Scan(&c.UpdatedAt, &c.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "cipher references a deleted owner", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

const selectCipherCols = `
SELECT id, user_id, organization_id, type, data, fields, password_history, key, favorite, deleted_at, created_at, updated_at
FROM ciphers`

func scanCipher(row pgx.Row) (*model.Cipher, error) {
	var c model.Cipher
	var data, fields, history, key []byte
	err := row.Scan(&c.ID, &c.UserID, &c.OrganizationID, &c.Type, &data, &fields, &history, &key, &c.Favorite, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "cipher", errs.ErrNotFound)
		}
		return nil, err
	}
	c.Data, c.Fields, c.PasswordHistory, c.Key = data, fields, history, key
	return &c, nil
}

func (s *Store) GetCipher(ctx context.Context, id uuid.UUID) (*model.Cipher, error) {
	return scanCipher(s.Pool.QueryRow(ctx, selectCipherCols+` WHERE id=$1`, id))
}

func (s *Store) ListCiphersByUser(ctx context.Context, userID uuid.UUID) ([]model.Cipher, error) {
	return queryCiphers(ctx, s.Pool, selectCipherCols+` WHERE user_id=$1`, userID)
}

func (s *Store) ListCiphersByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Cipher, error) {
	return queryCiphers(ctx, s.Pool, selectCipherCols+` WHERE organization_id=$1`, orgID)
}

func queryCiphers(ctx context.Context, pool PgxPool, q string, arg uuid.UUID) ([]model.Cipher, error) {
	rows, err := pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Cipher
	for rows.Next() {
		var c model.Cipher
		var data, fields, history, key []byte
		if err := rows.Scan(&c.ID, &c.UserID, &c.OrganizationID, &c.Type, &data, &fields, &history, &key, &c.Favorite, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Data, c.Fields, c.PasswordHistory, c.Key = data, fields, history, key
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCipher(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM ciphers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "cipher", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeTrashedCiphersBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM ciphers WHERE deleted_at IS NOT NULL AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) SaveFolder(ctx context.Context, f *model.Folder) error {
	const q = `
INSERT INTO folders (id, user_id, name) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, f.ID, f.UserID, []byte(f.Name))
	if err := row.Scan(&f.UpdatedAt, &f.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "folder references a deleted user", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

func (s *Store) GetFolder(ctx context.Context, id uuid.UUID) (*model.Folder, error) {
	var f model.Folder
	var name []byte
	err := s.Pool.QueryRow(ctx, `SELECT id, user_id, name, created_at, updated_at FROM folders WHERE id=$1`, id).
		Scan(&f.ID, &f.UserID, &name, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Wrap(errs.KindNotFound, "folder", errs.ErrNotFound)
	}
	f.Name = name
	return &f, err
}

func (s *Store) ListFoldersByUser(ctx context.Context, userID uuid.UUID) ([]model.Folder, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, user_id, name, created_at, updated_at FROM folders WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Folder
	for rows.Next() {
		var f model.Folder
		var name []byte
		if err := rows.Scan(&f.ID, &f.UserID, &name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Name = name
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM folders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "folder", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveFolderCipher(ctx context.Context, fc *model.FolderCipher) error {
	const q = `
INSERT INTO folder_ciphers (folder_id, cipher_id) VALUES ($1,$2)
ON CONFLICT (folder_id, cipher_id) DO NOTHING`
	_, err := s.Pool.Exec(ctx, q, fc.FolderID, fc.CipherID)
	if isFKViolation(err) {
		return errs.Wrap(errs.KindConflict, "folder-cipher references a deleted folder or cipher", errs.ErrForeignKeyViolation)
	}
	return err
}

func (s *Store) ListFolderCiphersByFolder(ctx context.Context, folderID uuid.UUID) ([]model.FolderCipher, error) {
	rows, err := s.Pool.Query(ctx, `SELECT folder_id, cipher_id FROM folder_ciphers WHERE folder_id=$1`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FolderCipher
	for rows.Next() {
		var fc model.FolderCipher
		if err := rows.Scan(&fc.FolderID, &fc.CipherID); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteFolderCipher(ctx context.Context, folderID, cipherID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM folder_ciphers WHERE folder_id=$1 AND cipher_id=$2`, folderID, cipherID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "folder-cipher", errs.ErrNotFound)
	}
	return nil
}

// Attachment is delegated to the embedded memory store (see DESIGN.md).
func (s *Store) SaveAttachment(ctx context.Context, a *model.Attachment) error {
	return s.aux.SaveAttachment(ctx, a)
}
func (s *Store) GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error) {
	return s.aux.GetAttachment(ctx, id)
}
func (s *Store) ListAttachmentsByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.Attachment, error) {
	return s.aux.ListAttachmentsByCipher(ctx, cipherID)
}
func (s *Store) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	return s.aux.DeleteAttachment(ctx, id)
}

func (s *Store) SaveSend(ctx context.Context, send *model.Send) error {
	const q = `
INSERT INTO sends (id, user_id, type, data, password_hash, password_salt, max_access_count, access_count, expiration_date, deletion_date, disabled, hide_email)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  data = EXCLUDED.data, password_hash = EXCLUDED.password_hash, password_salt = EXCLUDED.password_salt,
  max_access_count = EXCLUDED.max_access_count, access_count = EXCLUDED.access_count,
  expiration_date = EXCLUDED.expiration_date, deletion_date = EXCLUDED.deletion_date,
  disabled = EXCLUDED.disabled, hide_email = EXCLUDED.hide_email, updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, send.ID, send.UserID, send.Type, []byte(send.Data), send.PasswordHash, send.PasswordSalt,
		send.MaxAccessCount, send.AccessCount, send.ExpirationDate, send.DeletionDate, send.Disabled, send.HideEmail)
	if err := row.Scan(&send.UpdatedAt, &send.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "send references a deleted user", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

const selectSendCols = `
SELECT id, user_id, type, data, password_hash, password_salt, max_access_count, access_count,
  expiration_date, deletion_date, disabled, hide_email, created_at, updated_at
FROM sends`

func scanSend(row pgx.Row) (*model.Send, error) {
	var send model.Send
	var data []byte
	err := row.Scan(&send.ID, &send.UserID, &send.Type, &data, &send.PasswordHash, &send.PasswordSalt,
		&send.MaxAccessCount, &send.AccessCount, &send.ExpirationDate, &send.DeletionDate, &send.Disabled, &send.HideEmail,
		&send.CreatedAt, &send.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "send", errs.ErrNotFound)
		}
		return nil, err
	}
	send.Data = data
	return &send, nil
}

func (s *Store) GetSend(ctx context.Context, id uuid.UUID) (*model.Send, error) {
	return scanSend(s.Pool.QueryRow(ctx, selectSendCols+` WHERE id=$1`, id))
}

func (s *Store) ListSendsByUser(ctx context.Context, userID uuid.UUID) ([]model.Send, error) {
	rows, err := s.Pool.Query(ctx, selectSendCols+` WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Send
	for rows.Next() {
		var send model.Send
		var data []byte
		if err := rows.Scan(&send.ID, &send.UserID, &send.Type, &data, &send.PasswordHash, &send.PasswordSalt,
			&send.MaxAccessCount, &send.AccessCount, &send.ExpirationDate, &send.DeletionDate, &send.Disabled, &send.HideEmail,
			&send.CreatedAt, &send.UpdatedAt); err != nil {
			return nil, err
		}
		send.Data = data
		out = append(out, send)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSend(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM sends WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "send", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeExpiredSends(ctx context.Context, now time.Time) (int, error) {
	const q = `
DELETE FROM sends WHERE disabled
  OR deletion_date < $1
  OR (expiration_date IS NOT NULL AND expiration_date < $1)
  OR (max_access_count IS NOT NULL AND access_count >= max_access_count)`
	tag, err := s.Pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
