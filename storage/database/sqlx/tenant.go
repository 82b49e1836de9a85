package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/tenant"
)

type tenantRepository struct {
	exec core.DBExecutor
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(exec core.DBExecutor) *tenantRepository {
	return &tenantRepository{exec: exec}
}

func (repo tenantRepository) CreateTenant(ctx context.Context, ten tenant.Tenant, exec ...core.DBExecutor) (tenant.Tenant, error) {
	exe := getExec(repo.exec, exec)
	ten.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, `
		INSERT INTO tenant (id, name, max_role_slots, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ten.ID, ten.Name, ten.MaxRoleSlots, ten.CreatedAt, ten.UpdatedAt,
	)
	if err != nil {
		return tenant.Tenant{}, errors.Wrap(err, "inserting tenant")
	}
	return ten, nil
}

func (repo tenantRepository) GetTenantByID(ctx context.Context, id string, exec ...core.DBExecutor) (tenant.Tenant, error) {
	exe := getExec(repo.exec, exec)
	if _, err := uuid.Parse(id); err != nil {
		return tenant.Tenant{}, tenant.ErrNotFound
	}

	var ten tenant.Tenant
	if err := exe.GetContext(ctx, &ten, `SELECT * FROM tenant WHERE id = $1`, id); err != nil {
		return tenant.Tenant{}, trapNoRowsErr(err, tenant.ErrNotFound, "finding tenant by ID")
	}
	return ten, nil
}

func (repo tenantRepository) UpdateTenant(ctx context.Context, ten tenant.Tenant, exec ...core.DBExecutor) (tenant.Tenant, error) {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx, `
		UPDATE tenant SET name = $1, max_role_slots = $2, updated_at = $3 WHERE id = $4`,
		ten.Name, ten.MaxRoleSlots, ten.UpdatedAt, ten.ID,
	)
	if err != nil {
		return tenant.Tenant{}, errors.Wrap(err, "updating tenant")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	return ten, nil
}
