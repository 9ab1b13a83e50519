package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, password_hash, salt, password_iterations,
  client_kdf_type, client_kdf_iterations, client_kdf_memory, client_kdf_parallelism,
  akey, private_key, public_key, security_stamp, totp_recover, email_verified_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  password_hash = EXCLUDED.password_hash,
  salt = EXCLUDED.salt,
  password_iterations = EXCLUDED.password_iterations,
  client_kdf_type = EXCLUDED.client_kdf_type,
  client_kdf_iterations = EXCLUDED.client_kdf_iterations,
  client_kdf_memory = EXCLUDED.client_kdf_memory,
  client_kdf_parallelism = EXCLUDED.client_kdf_parallelism,
  akey = EXCLUDED.akey,
  private_key = EXCLUDED.private_key,
  public_key = EXCLUDED.public_key,
  security_stamp = EXCLUDED.security_stamp,
  totp_recover = EXCLUDED.totp_recover,
  email_verified_at = EXCLUDED.email_verified_at,
  updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.Salt, u.PasswordIterations,
		u.ClientKdfType, u.ClientKdfIterations, u.ClientKdfMemory, u.ClientKdfParallelism,
		u.AKey, u.PrivateKey, u.PublicKey, u.SecurityStamp, u.TOTPRecover, u.EmailVerifiedAt,
	)
	if err := row.Scan(&u.UpdatedAt, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(errs.KindConflict, "email already registered", err)
		}
		return err
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Salt, &u.PasswordIterations,
		&u.ClientKdfType, &u.ClientKdfIterations, &u.ClientKdfMemory, &u.ClientKdfParallelism,
		&u.AKey, &u.PrivateKey, &u.PublicKey, &u.SecurityStamp, &u.TOTPRecover,
		&u.EmailVerifiedAt, &u.UpdatedAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "user", errs.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

const selectUserCols = `
SELECT id, email, password_hash, salt, password_iterations,
  client_kdf_type, client_kdf_iterations, client_kdf_memory, client_kdf_parallelism,
  akey, private_key, public_key, security_stamp, totp_recover,
  email_verified_at, updated_at, created_at
FROM users`

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(s.Pool.QueryRow(ctx, selectUserCols+` WHERE id=$1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.Pool.QueryRow(ctx, selectUserCols+` WHERE lower(email)=lower($1)`, email))
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "user", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) CurrentSecurityStamp(ctx context.Context, id uuid.UUID) (string, error) {
	var stamp string
	err := s.Pool.QueryRow(ctx, `SELECT security_stamp FROM users WHERE id=$1`, id).Scan(&stamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.Wrap(errs.KindNotFound, "user", errs.ErrNotFound)
	}
	return stamp, err
}

func (s *Store) SaveDevice(ctx context.Context, d *model.Device) error {
	const q = `
INSERT INTO devices (id, user_id, type, name, refresh_token, push_token, push_uuid, two_factor_remember)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  refresh_token = EXCLUDED.refresh_token,
  push_token = EXCLUDED.push_token,
  push_uuid = EXCLUDED.push_uuid,
  two_factor_remember = EXCLUDED.two_factor_remember,
  updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, d.ID, d.UserID, d.Type, d.Name, d.RefreshToken, d.PushToken, d.PushUUID, d.TwoFactorRemember)
	if err := row.Scan(&d.UpdatedAt, &d.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "device references a deleted user", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

const selectDeviceCols = `
SELECT id, user_id, type, name, refresh_token, push_token, push_uuid, two_factor_remember, created_at, updated_at
FROM devices`

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	err := row.Scan(&d.ID, &d.UserID, &d.Type, &d.Name, &d.RefreshToken, &d.PushToken, &d.PushUUID, &d.TwoFactorRemember, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "device", errs.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	return scanDevice(s.Pool.QueryRow(ctx, selectDeviceCols+` WHERE id=$1`, id))
}

func (s *Store) GetDeviceByRefreshToken(ctx context.Context, refreshToken string) (*model.Device, error) {
	return scanDevice(s.Pool.QueryRow(ctx, selectDeviceCols+` WHERE refresh_token=$1`, refreshToken))
}

func (s *Store) ListDevicesByUser(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	rows, err := s.Pool.Query(ctx, selectDeviceCols+` WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.Type, &d.Name, &d.RefreshToken, &d.PushToken, &d.PushUUID, &d.TwoFactorRemember, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM devices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "device", errs.ErrNotFound)
	}
	return nil
}
