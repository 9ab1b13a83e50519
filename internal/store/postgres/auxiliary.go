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

func (s *Store) SaveTwoFactor(ctx context.Context, tf *model.TwoFactor) error {
	const q = `
INSERT INTO two_factors (user_id, kind, data, enabled, last_used) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id, kind) DO UPDATE SET
  data = EXCLUDED.data, enabled = EXCLUDED.enabled, last_used = EXCLUDED.last_used, updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, tf.UserID, tf.Kind, tf.Data, tf.Enabled, tf.LastUsed)
	if err := row.Scan(&tf.UpdatedAt, &tf.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "two-factor references a deleted user", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

func (s *Store) GetTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) (*model.TwoFactor, error) {
	var tf model.TwoFactor
	err := s.Pool.QueryRow(ctx, `
SELECT user_id, kind, data, enabled, last_used, created_at, updated_at
FROM two_factors WHERE user_id=$1 AND kind=$2`, userID, kind).
		Scan(&tf.UserID, &tf.Kind, &tf.Data, &tf.Enabled, &tf.LastUsed, &tf.CreatedAt, &tf.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Wrap(errs.KindNotFound, "two-factor", errs.ErrNotFound)
	}
	return &tf, err
}

func (s *Store) ListTwoFactorsByUser(ctx context.Context, userID uuid.UUID) ([]model.TwoFactor, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT user_id, kind, data, enabled, last_used, created_at, updated_at
FROM two_factors WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TwoFactor
	for rows.Next() {
		var tf model.TwoFactor
		if err := rows.Scan(&tf.UserID, &tf.Kind, &tf.Data, &tf.Enabled, &tf.LastUsed, &tf.CreatedAt, &tf.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTwoFactor(ctx context.Context, userID uuid.UUID, kind model.TwoFactorKind) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM two_factors WHERE user_id=$1 AND kind=$2`, userID, kind)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "two-factor", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveAuthRequest(ctx context.Context, r *model.AuthRequest) error {
	const q = `
INSERT INTO auth_requests (id, user_id, request_device_id, device_type, request_ip, access_code, public_key, approved, enc_key, master_password_hash, creation_date, response_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  approved = EXCLUDED.approved, enc_key = EXCLUDED.enc_key,
  master_password_hash = EXCLUDED.master_password_hash, response_date = EXCLUDED.response_date`
	_, err := s.Pool.Exec(ctx, q, r.ID, r.UserID, r.RequestDeviceID, r.DeviceType, r.RequestIP, r.AccessCode,
		r.PublicKey, r.Approved, r.EncKey, r.MasterPasswordHash, r.CreationDate, r.ResponseDate)
	if isFKViolation(err) {
		return errs.Wrap(errs.KindConflict, "auth request references a deleted user", errs.ErrForeignKeyViolation)
	}
	return err
}

const selectAuthRequestCols = `
SELECT id, user_id, request_device_id, device_type, request_ip, access_code, public_key, approved, enc_key, master_password_hash, creation_date, response_date
FROM auth_requests`

func scanAuthRequest(row pgx.Row) (*model.AuthRequest, error) {
	var r model.AuthRequest
	err := row.Scan(&r.ID, &r.UserID, &r.RequestDeviceID, &r.DeviceType, &r.RequestIP, &r.AccessCode,
		&r.PublicKey, &r.Approved, &r.EncKey, &r.MasterPasswordHash, &r.CreationDate, &r.ResponseDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "auth request", errs.ErrNotFound)
		}
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetAuthRequest(ctx context.Context, id uuid.UUID) (*model.AuthRequest, error) {
	return scanAuthRequest(s.Pool.QueryRow(ctx, selectAuthRequestCols+` WHERE id=$1`, id))
}

func (s *Store) ListPendingAuthRequestsByUser(ctx context.Context, userID uuid.UUID) ([]model.AuthRequest, error) {
	rows, err := s.Pool.Query(ctx, selectAuthRequestCols+` WHERE user_id=$1 AND approved IS NULL`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuthRequest
	for rows.Next() {
		var r model.AuthRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.RequestDeviceID, &r.DeviceType, &r.RequestIP, &r.AccessCode,
			&r.PublicKey, &r.Approved, &r.EncKey, &r.MasterPasswordHash, &r.CreationDate, &r.ResponseDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAuthRequest(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM auth_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "auth request", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) PurgeExpiredAuthRequests(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-model.AuthRequestLifetime)
	tag, err := s.Pool.Exec(ctx, `DELETE FROM auth_requests WHERE creation_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Event is delegated to the embedded memory store (see DESIGN.md).
func (s *Store) SaveEvent(ctx context.Context, e *model.Event) error { return s.aux.SaveEvent(ctx, e) }
func (s *Store) ListEventsByOrg(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.Event, error) {
	return s.aux.ListEventsByOrg(ctx, orgID, since)
}
func (s *Store) ListEventsByUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.Event, error) {
	return s.aux.ListEventsByUser(ctx, userID, since)
}
func (s *Store) PurgeEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.aux.PurgeEventsBefore(ctx, cutoff)
}

// Backup is embedded-store only per spec 4.3; the postgres backend relies
// on `pg_dump` for disaster recovery instead of an application-level
// snapshot.
func (s *Store) Backup(ctx context.Context) ([]byte, error) {
	return nil, errs.New(errs.KindFatal, "Backup is not supported by the postgres store; use pg_dump")
}
