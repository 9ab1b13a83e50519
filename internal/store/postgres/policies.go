package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/vaultkeep/server/internal/errs"
	"github.com/vaultkeep/server/internal/model"
)

func (s *Store) SavePolicy(ctx context.Context, p *model.Policy) error {
	const q = `
INSERT INTO policies (organization_id, kind, enabled, data)
VALUES ($1,$2,$3,$4)
ON CONFLICT (organization_id, kind) DO UPDATE SET
  enabled = EXCLUDED.enabled, data = EXCLUDED.data`
	_, err := s.Pool.Exec(ctx, q, p.OrganizationID, p.Type, p.Enabled, p.Data)
	if isFKViolation(err) {
		return errs.Wrap(errs.KindConflict, "policy references a deleted organization", errs.ErrForeignKeyViolation)
	}
	return err
}

func (s *Store) GetPolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) (*model.Policy, error) {
	row := s.Pool.QueryRow(ctx, `SELECT organization_id, kind, enabled, data FROM policies WHERE organization_id=$1 AND kind=$2`, orgID, kind)
	var p model.Policy
	if err := row.Scan(&p.OrganizationID, &p.Type, &p.Enabled, &p.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.KindNotFound, "policy", errs.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPoliciesByOrg(ctx context.Context, orgID uuid.UUID) ([]model.Policy, error) {
	rows, err := s.Pool.Query(ctx, `SELECT organization_id, kind, enabled, data FROM policies WHERE organization_id=$1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Policy
	for rows.Next() {
		var p model.Policy
		if err := rows.Scan(&p.OrganizationID, &p.Type, &p.Enabled, &p.Data); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePolicy(ctx context.Context, orgID uuid.UUID, kind model.PolicyType) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM policies WHERE organization_id=$1 AND kind=$2`, orgID, kind)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrap(errs.KindNotFound, "policy", errs.ErrNotFound)
	}
	return nil
}
