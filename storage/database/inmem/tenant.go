package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/tenant"
)

type tenantRepository struct {
	db *DB
}

var _ tenant.Repository = (*tenantRepository)(nil)

func NewTenantRepository(db *DB) *tenantRepository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) CreateTenant(_ context.Context, ten tenant.Tenant, _ ...core.DBExecutor) (tenant.Tenant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ten.ID = uuid.New().String()
	repo.db.tenants[ten.ID] = &ten
	return ten, nil
}

func (repo *tenantRepository) GetTenantByID(_ context.Context, id string, _ ...core.DBExecutor) (tenant.Tenant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ten, ok := repo.db.tenants[id]; ok {
		return *ten, nil
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) UpdateTenant(_ context.Context, ten tenant.Tenant, _ ...core.DBExecutor) (tenant.Tenant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tenants[ten.ID]; !ok {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	repo.db.tenants[ten.ID] = &ten
	return ten, nil
}
