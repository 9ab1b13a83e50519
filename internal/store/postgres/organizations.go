package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SaveOrganization(ctx context.Context, o *model.Organization) error {
	const q = `
INSERT INTO organizations (id, name, billing_email) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, billing_email = EXCLUDED.billing_email
RETURNING created_at`
	return s.Pool.QueryRow(ctx, q, o.ID, o.Name, o.BillingEmail).Scan(&o.CreatedAt)
}

func (s *Store) GetOrganization(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var o model.Organization
	err := s.Pool.QueryRow(ctx, `SELECT id, name, billing_email, created_at FROM organizations WHERE id=$1`, id).
		Scan(&o.ID, &o.Name, &o.BillingEmail, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Wrap(errs.KindNotFound, "organization", errs.ErrNotFound)
	}
	return &o, err
}

func (s *Store) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM organizations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "organization", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveMembership(ctx context.Context, m *model.Membership) error {
	const q = `
INSERT INTO memberships (id, user_id, organization_id, status, type, access_all, org_key, reset_password_key)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status, type = EXCLUDED.type, access_all = EXCLUDED.access_all,
  org_key = EXCLUDED.org_key, reset_password_key = EXCLUDED.reset_password_key, updated_at = now()
RETURNING updated_at, created_at`
	row := s.Pool.QueryRow(ctx, q, m.ID, m.UserID, m.OrganizationID, m.Status, m.Type, m.AccessAll, m.Key, m.ResetPasswordKey)
	if err := row.Scan(&m.UpdatedAt, &m.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "membership references a deleted user or organization", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

const selectMembershipCols = `
SELECT id, user_id, organization_id, status, type, access_all, org_key, reset_password_key, created_at, updated_at
FROM memberships`

func scanMembership(row pgx.Row) (*model.Membership, error) {
	var m model.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Status, &m.Type, &m.AccessAll, &m.Key, &m.ResetPasswordKey, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Wrap(errs.KindNotFound, "membership", errs.ErrNotFound)
	}
	return &m, err
}

func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (*model.Membership, error) {
	return scanMembership(s.Pool.QueryRow(ctx, selectMembershipCols+` WHERE id=$1`, id))
}

func (s *Store) GetMembershipByUserOrg(ctx context.Context, userID, orgID uuid.UUID) (*model.Membership, error) {
	return scanMembership(s.Pool.QueryRow(ctx, selectMembershipCols+` WHERE user_id=$1 AND organization_id=$2`, userID, orgID))
}

func (s *Store) ListMembershipsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Membership, error) {
	return queryMemberships(ctx, s.Pool, selectMembershipCols+` WHERE organization_id=$1`, orgID)
}

func (s *Store) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]model.Membership, error) {
	return queryMemberships(ctx, s.Pool, selectMembershipCols+` WHERE user_id=$1`, userID)
}

func queryMemberships(ctx context.Context, pool PgxPool, q string, arg uuid.UUID) ([]model.Membership, error) {
	rows, err := pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Status, &m.Type, &m.AccessAll, &m.Key, &m.ResetPasswordKey, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM memberships WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "membership", errs.ErrNotFound)
	}
	return nil
}

// Group/GroupUser are delegated to the embedded memory store: they are
// optional, lower-traffic entities and duplicating the pgx plumbing for
// them adds repetition without exercising new invariants (see DESIGN.md).
func (s *Store) SaveGroup(ctx context.Context, g *model.Group) error { return s.aux.SaveGroup(ctx, g) }
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	return s.aux.GetGroup(ctx, id)
}
func (s *Store) ListGroupsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Group, error) {
	return s.aux.ListGroupsByOrg(ctx, orgID)
}
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error { return s.aux.DeleteGroup(ctx, id) }

func (s *Store) SaveGroupUser(ctx context.Context, gu *model.GroupUser) error {
	return s.aux.SaveGroupUser(ctx, gu)
}
func (s *Store) ListGroupUsersByGroup(ctx context.Context, groupID uuid.UUID) ([]model.GroupUser, error) {
	return s.aux.ListGroupUsersByGroup(ctx, groupID)
}
func (s *Store) ListGroupsByUser(ctx context.Context, userID, orgID uuid.UUID) ([]model.GroupUser, error) {
	return s.aux.ListGroupsByUser(ctx, userID, orgID)
}
func (s *Store) DeleteGroupUser(ctx context.Context, groupID, userID uuid.UUID) error {
	return s.aux.DeleteGroupUser(ctx, groupID, userID)
}

func (s *Store) SaveCollection(ctx context.Context, c *model.Collection) error {
	const q = `
INSERT INTO collections (id, organization_id, name) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
RETURNING created_at`
	row := s.Pool.QueryRow(ctx, q, c.ID, c.OrganizationID, c.Name)
	if err := row.Scan(&c.CreatedAt); err != nil {
		if isFKViolation(err) {
			return errs.Wrap(errs.KindConflict, "collection references a deleted organization", errs.ErrForeignKeyViolation)
		}
		return err
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, id uuid.UUID) (*model.Collection, error) {
	var c model.Collection
	err := s.Pool.QueryRow(ctx, `SELECT id, organization_id, name, created_at FROM collections WHERE id=$1`, id).
		Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Wrap(errs.KindNotFound, "collection", errs.ErrNotFound)
	}
	return &c, err
}

func (s *Store) ListCollectionsByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Collection, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, organization_id, name, created_at FROM collections WHERE organization_id=$1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Collection
	for rows.Next() {
		var c model.Collection
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM collections WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "collection", errs.ErrNotFound)
	}
	return nil
}

func (s *Store) SaveCollectionUser(ctx context.Context, cu *model.CollectionUser) error {
	const q = `
INSERT INTO collection_users (collection_id, user_id, read_only, hide_passwords) VALUES ($1,$2,$3,$4)
ON CONFLICT (collection_id, user_id) DO UPDATE SET read_only = EXCLUDED.read_only, hide_passwords = EXCLUDED.hide_passwords`
	_, err := s.Pool.Exec(ctx, q, cu.CollectionID, cu.UserID, cu.ReadOnly, cu.HidePasswords)
	if isFKViolation(err) {
		return errs.Wrap(errs.KindConflict, "collection-user references a deleted collection or user", errs.ErrForeignKeyViolation)
	}
	return err
}

func (s *Store) ListCollectionUsersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionUser, error) {
	rows, err := s.Pool.Query(ctx, `SELECT collection_id, user_id, read_only, hide_passwords FROM collection_users WHERE collection_id=$1`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CollectionUser
	for rows.Next() {
		var cu model.CollectionUser
		if err := rows.Scan(&cu.CollectionID, &cu.UserID, &cu.ReadOnly, &cu.HidePasswords); err != nil {
			return nil, err
		}
		out = append(out, cu)
	}
	return out, rows.Err()
}

func (s *Store) ListCollectionUsersByUser(ctx context.Context, userID uuid.UUID) ([]model.CollectionUser, error) {
	rows, err := s.Pool.Query(ctx, `SELECT collection_id, user_id, read_only, hide_passwords FROM collection_users WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CollectionUser
	for rows.Next() {
		var cu model.CollectionUser
		if err := rows.Scan(&cu.CollectionID, &cu.UserID, &cu.ReadOnly, &cu.HidePasswords); err != nil {
			return nil, err
		}
		out = append(out, cu)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCollectionUser(ctx context.Context, collectionID, userID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM collection_users WHERE collection_id=$1 AND user_id=$2`, collectionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "collection-user", errs.ErrNotFound)
	}
	return nil
}

// CollectionGroup is delegated to the embedded memory store (see note on
// Group above); CollectionCipher is pgx-backed since VaultOps exercises it
// on every sync.
func (s *Store) SaveCollectionGroup(ctx context.Context, cg *model.CollectionGroup) error {
	return s.aux.SaveCollectionGroup(ctx, cg)
}
func (s *Store) ListCollectionGroupsByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionGroup, error) {
	return s.aux.ListCollectionGroupsByCollection(ctx, collectionID)
}
func (s *Store) DeleteCollectionGroup(ctx context.Context, collectionID, groupID uuid.UUID) error {
	return s.aux.DeleteCollectionGroup(ctx, collectionID, groupID)
}

func (s *Store) SaveCollectionCipher(ctx context.Context, cc *model.CollectionCipher) error {
	const q = `
INSERT INTO collection_ciphers (collection_id, cipher_id) VALUES ($1,$2)
ON CONFLICT (collection_id, cipher_id) DO NOTHING`
	_, err := s.Pool.Exec(ctx, q, cc.CollectionID, cc.CipherID)
	if isFKViolation(err) {
		return errs.Wrap(errs.KindConflict, "collection-cipher references a deleted collection or cipher", errs.ErrForeignKeyViolation)
	}
	return err
}

func (s *Store) ListCollectionCiphersByCollection(ctx context.Context, collectionID uuid.UUID) ([]model.CollectionCipher, error) {
	rows, err := s.Pool.Query(ctx, `SELECT collection_id, cipher_id FROM collection_ciphers WHERE collection_id=$1`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CollectionCipher
	for rows.Next() {
		var cc model.CollectionCipher
		if err := rows.Scan(&cc.CollectionID, &cc.CipherID); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (s *Store) ListCollectionCiphersByCipher(ctx context.Context, cipherID uuid.UUID) ([]model.CollectionCipher, error) {
	rows, err := s.Pool.Query(ctx, `SELECT collection_id, cipher_id FROM collection_ciphers WHERE cipher_id=$1`, cipherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CollectionCipher
	for rows.Next() {
		var cc model.CollectionCipher
		if err := rows.Scan(&cc.CollectionID, &cc.CipherID); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCollectionCipher(ctx context.Context, collectionID, cipherID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM collection_ciphers WHERE collection_id=$1 AND cipher_id=$2`, collectionID, cipherID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "collection-cipher", errs.ErrNotFound)
	}
	return nil
}
