package tenant

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound = errors.New("tenant not found")
)

type (
	Repository interface {
		CreateTenant(ctx context.Context, ten Tenant, exec ...core.DBExecutor) (Tenant, error)
		GetTenantByID(ctx context.Context, id string, exec ...core.DBExecutor) (Tenant, error)
		UpdateTenant(ctx context.Context, ten Tenant, exec ...core.DBExecutor) (Tenant, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nt NewTenant) (Tenant, error) {
	now := time.Now().UTC()
	ten := Tenant{
		Name:         nt.Name,
		MaxRoleSlots: nt.MaxRoleSlots,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateTenant(ctx, ten)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Tenant, error) {
	return svc.repo.GetTenantByID(ctx, id)
}

// RaiseSlotCap raises the tenant's role-slot limit after a plan upgrade.
// Lowering the cap is not supported; existing roles could exceed it.
func (svc *Service) RaiseSlotCap(ctx context.Context, id string, maxRoleSlots int) (Tenant, error) {
	ten, err := svc.repo.GetTenantByID(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if maxRoleSlots <= ten.MaxRoleSlots {
		return Tenant{}, core.NewValidationError(
			errors.New("new role slot limit must be greater than the current one"),
			core.FieldError{Field: "max_role_slots", Error: "must be greater than the current limit"},
		)
	}
	ten.MaxRoleSlots = maxRoleSlots
	ten.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTenant(ctx, ten)
}
