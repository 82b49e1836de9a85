package role

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/tenant"
)

var (
	// errors
	ErrNotFound            = errors.New("role not found")
	ErrAliasExists         = errors.New("a role with this alias already exists")
	ErrSlotTaken           = errors.New("this slot position is already in use")
	ErrTemplateSetNotFound = errors.New("role template set not found")
	ErrTenantHasRoles      = errors.New("tenant already has roles")
	ErrCapacityExceeded    = errors.New("role slot limit reached")
)

type (
	Repository interface {
		// CreateRole inserts the role and its permission joins; callers wanting
		// atomicity with other writes pass a transaction executor.
		CreateRole(ctx context.Context, r Role, exec ...core.DBExecutor) (Role, error)
		GetRoleByID(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (Role, error)
		// QueryRoles returns the tenant's roles ordered by slot position, with
		// permission ids preloaded.
		QueryRoles(ctx context.Context, tenantID string, exec ...core.DBExecutor) ([]Role, error)
		// CountRoles counts the tenant's roles; countedOnly restricts the count
		// to roles consuming a slot.
		CountRoles(ctx context.Context, tenantID string, countedOnly bool, exec ...core.DBExecutor) (int, error)
		TakenSlotPositions(ctx context.Context, tenantID string, exec ...core.DBExecutor) ([]int, error)
		// AliasExists matches case-insensitively; excludedRoleID may be empty.
		AliasExists(ctx context.Context, tenantID, alias, excludedRoleID string, exec ...core.DBExecutor) (bool, error)
		UpdateRole(ctx context.Context, r Role, exec ...core.DBExecutor) (Role, error)
		ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string, exec ...core.DBExecutor) error
		// QueryTemplateSet returns the set's templates ordered by intended slot
		// position, with permission ids preloaded.
		QueryTemplateSet(ctx context.Context, setName string, exec ...core.DBExecutor) ([]Template, error)
		QueryTemplatesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (map[string]Template, error)
		QueryPermissionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Permission, error)
		// CountRoleUsers returns live assignment counts keyed by role id.
		CountRoleUsers(ctx context.Context, tenantID string, exec ...core.DBExecutor) (map[string]int, error)
	}

	Service struct {
		txr      core.Transactor
		repo     Repository
		tenants  tenant.Repository
		auditSvc *audit.Service
	}
)

func NewService(txr core.Transactor, repo Repository, tenants tenant.Repository, auditSvc *audit.Service) *Service {
	return &Service{
		txr:      txr,
		repo:     repo,
		tenants:  tenants,
		auditSvc: auditSvc,
	}
}

func errCapacityExceeded(limit int) error {
	return core.NewValidationError(ErrCapacityExceeded, core.FieldError{
		Field: "role_slots",
		Error: fmt.Sprintf("this tenant is limited to %d roles; raise the plan limit or free a slot", limit),
	})
}

// Create creates one custom (or single-template-derived) role for the tenant.
// The capacity and uniqueness checks run inside the same transaction as the
// insert; the unique constraints back them up under concurrency.
func (svc *Service) Create(ctx context.Context, tenantID string, nr NewRole, actorID string) (Info, error) {
	ten, err := svc.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return Info{}, errors.Wrap(err, "finding tenant")
	}

	var created Role
	err = svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if !nr.Uncounted {
			used, err := svc.repo.CountRoles(ctx, tenantID, true, tx)
			if err != nil {
				return errors.Wrap(err, "counting used role slots")
			}
			if used >= ten.MaxRoleSlots {
				return errCapacityExceeded(ten.MaxRoleSlots)
			}
		}

		exists, err := svc.repo.AliasExists(ctx, tenantID, nr.Alias, "", tx)
		if err != nil {
			return errors.Wrap(err, "checking alias uniqueness")
		}
		if exists {
			return core.NewValidationError(ErrAliasExists, core.FieldError{Field: "role_alias", Error: ErrAliasExists.Error()})
		}

		taken, err := svc.repo.TakenSlotPositions(ctx, tenantID, tx)
		if err != nil {
			return errors.Wrap(err, "loading taken slot positions")
		}
		var pos int
		if nr.SlotPosition != nil {
			pos = *nr.SlotPosition
			for _, p := range taken {
				if p == pos {
					return core.NewValidationError(ErrSlotTaken, core.FieldError{Field: "slot_position", Error: ErrSlotTaken.Error()})
				}
			}
		} else {
			if pos, err = NextFreeSlotPosition(taken, ten.MaxRoleSlots); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		created, err = svc.repo.CreateRole(ctx, Role{
			TenantID:      tenantID,
			Alias:         nr.Alias,
			Description:   nr.Description,
			SlotPosition:  pos,
			IsActive:      true,
			Uncounted:     nr.Uncounted,
			PermissionIDs: nr.PermissionIDs,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, tx)
		return errors.Wrap(err, "inserting role")
	})
	if err != nil {
		return Info{}, err
	}

	svc.auditSvc.Log(ctx, audit.Record{
		TenantID:     tenantID,
		ActorID:      actorID,
		Action:       audit.ActionRoleCreate,
		ResourceType: audit.ResourceRole,
		ResourceID:   created.ID,
		Details: map[string]interface{}{
			"role_alias":       created.Alias,
			"slot_position":    created.SlotPosition,
			"permission_count": len(created.PermissionIDs),
		},
	})

	return svc.buildInfo(ctx, created, nil, 0)
}

// InitTemplateSet materializes the named template set for a tenant with no
// roles yet. Templates whose intended slot exceeds the tenant's cap and the
// reserved Guest template are skipped; everything else is created in one
// transaction, all or nothing.
func (svc *Service) InitTemplateSet(ctx context.Context, tenantID, setName, actorID string) (InitResult, error) {
	ten, err := svc.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return InitResult{}, errors.Wrap(err, "finding tenant")
	}

	templates, err := svc.repo.QueryTemplateSet(ctx, setName)
	if err != nil {
		return InitResult{}, errors.Wrap(err, "loading template set")
	}
	if len(templates) == 0 {
		return InitResult{}, core.NewValidationError(ErrTemplateSetNotFound, core.FieldError{
			Field: "template_set_name",
			Error: fmt.Sprintf("no role templates found for set %q", setName),
		})
	}

	var created []Role
	err = svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		count, err := svc.repo.CountRoles(ctx, tenantID, false, tx)
		if err != nil {
			return errors.Wrap(err, "counting roles")
		}
		if count > 0 {
			return core.NewValidationError(ErrTenantHasRoles, core.FieldError{
				Field: "tenant",
				Error: "this tenant already has roles; template initialization only applies to tenants without any",
			})
		}

		now := time.Now().UTC()
		for _, tpl := range templates {
			if tpl.SlotPosition > ten.MaxRoleSlots {
				continue
			}
			if tpl.RoleName == GuestAlias {
				continue
			}
			r, err := svc.repo.CreateRole(ctx, Role{
				TenantID:              tenantID,
				Alias:                 tpl.RoleName,
				Description:           tpl.Description,
				SlotPosition:          tpl.SlotPosition,
				IsActive:              true,
				CreatedFromTemplateID: null.StringFrom(tpl.ID),
				PermissionIDs:         tpl.PermissionIDs,
				CreatedAt:             now,
				UpdatedAt:             now,
			}, tx)
			if err != nil {
				return errors.Wrapf(err, "materializing template %q", tpl.RoleName)
			}
			created = append(created, r)
		}
		return nil
	})
	if err != nil {
		return InitResult{}, err
	}

	res := InitResult{
		Success: true,
		Message: fmt.Sprintf("initialized %d roles from template set %q", len(created), setName),
		Roles:   make([]InitializedRole, 0, len(created)),
	}
	for _, r := range created {
		res.Roles = append(res.Roles, InitializedRole{
			ID:              r.ID,
			Alias:           r.Alias,
			SlotPosition:    r.SlotPosition,
			PermissionCount: len(r.PermissionIDs),
		})
	}

	svc.auditSvc.Log(ctx, audit.Record{
		TenantID:     tenantID,
		ActorID:      actorID,
		Action:       audit.ActionRoleInitTemplates,
		ResourceType: audit.ResourceTenant,
		ResourceID:   tenantID,
		Details: map[string]interface{}{
			"template_set_name": setName,
			"roles_created":     len(created),
		},
	})
	return res, nil
}

// Query lists a tenant's roles with permissions, live user counts, slot usage
// and the derived modified-from-template flag. Template permission sets are
// loaded once, keyed by template id, so the divergence computation stays
// O(roles + template permissions).
func (svc *Service) Query(ctx context.Context, tenantID string) (List, error) {
	ten, err := svc.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return List{}, errors.Wrap(err, "finding tenant")
	}

	roles, err := svc.repo.QueryRoles(ctx, tenantID)
	if err != nil {
		return List{}, errors.Wrap(err, "querying roles")
	}

	var tplIDs, permIDs []string
	for _, r := range roles {
		if r.CreatedFromTemplateID.Valid {
			tplIDs = append(tplIDs, r.CreatedFromTemplateID.String)
		}
		permIDs = append(permIDs, r.PermissionIDs...)
	}

	templates, err := svc.repo.QueryTemplatesByID(ctx, tplIDs)
	if err != nil {
		return List{}, errors.Wrap(err, "loading role templates")
	}
	perms, err := svc.permissionsByID(ctx, permIDs)
	if err != nil {
		return List{}, err
	}
	userCounts, err := svc.repo.CountRoleUsers(ctx, tenantID)
	if err != nil {
		return List{}, errors.Wrap(err, "counting role users")
	}

	list := List{
		Tenant: TenantInfo{ID: ten.ID, Name: ten.Name, MaxRoleSlots: ten.MaxRoleSlots},
		Roles:  make([]Info, 0, len(roles)),
	}
	for _, r := range roles {
		info := newInfo(r, templates, perms, userCounts[r.ID])
		list.Roles = append(list.Roles, info)
		if !r.Uncounted {
			list.UsedSlots++
		}
	}
	if list.AvailableSlots = ten.MaxRoleSlots - list.UsedSlots; list.AvailableSlots < 0 {
		list.AvailableSlots = 0
	}
	return list, nil
}

// Update renames, re-permissions or (de)activates a role. Nil UpdateRole
// fields are left untouched; a non-nil permission list replaces the role's
// permission set atomically with the other changes.
func (svc *Service) Update(ctx context.Context, tenantID, roleID string, ur UpdateRole, actorID string) (Info, error) {
	if _, err := svc.tenants.GetTenantByID(ctx, tenantID); err != nil {
		return Info{}, errors.Wrap(err, "finding tenant")
	}

	var updated Role
	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		r, err := svc.repo.GetRoleByID(ctx, tenantID, roleID, tx)
		if err != nil {
			return errors.Wrap(err, "finding role")
		}

		if ur.Alias != "" && ur.Alias != r.Alias {
			exists, err := svc.repo.AliasExists(ctx, tenantID, ur.Alias, r.ID, tx)
			if err != nil {
				return errors.Wrap(err, "checking alias uniqueness")
			}
			if exists {
				return core.NewValidationError(ErrAliasExists, core.FieldError{Field: "role_alias", Error: ErrAliasExists.Error()})
			}
			r.Alias = ur.Alias
		}
		if ur.Description != nil {
			r.Description = *ur.Description
		}
		if ur.IsActive != nil {
			r.IsActive = *ur.IsActive
		}
		r.UpdatedAt = time.Now().UTC()

		if updated, err = svc.repo.UpdateRole(ctx, r, tx); err != nil {
			return errors.Wrap(err, "updating role")
		}
		if ur.PermissionIDs != nil {
			if err = svc.repo.ReplaceRolePermissions(ctx, r.ID, ur.PermissionIDs, tx); err != nil {
				return errors.Wrap(err, "replacing role permissions")
			}
			updated.PermissionIDs = ur.PermissionIDs
		}
		return nil
	})
	if err != nil {
		return Info{}, err
	}

	svc.auditSvc.Log(ctx, audit.Record{
		TenantID:     tenantID,
		ActorID:      actorID,
		Action:       audit.ActionRoleUpdate,
		ResourceType: audit.ResourceRole,
		ResourceID:   updated.ID,
		Details: map[string]interface{}{
			"role_alias":       updated.Alias,
			"is_active":        updated.IsActive,
			"permission_count": len(updated.PermissionIDs),
		},
	})

	userCounts, err := svc.repo.CountRoleUsers(ctx, tenantID)
	if err != nil {
		return Info{}, errors.Wrap(err, "counting role users")
	}
	templates, err := svc.templatesFor(ctx, updated)
	if err != nil {
		return Info{}, err
	}
	return svc.buildInfo(ctx, updated, templates, userCounts[updated.ID])
}

func (svc *Service) GetByID(ctx context.Context, tenantID, roleID string) (Info, error) {
	r, err := svc.repo.GetRoleByID(ctx, tenantID, roleID)
	if err != nil {
		return Info{}, err
	}
	templates, err := svc.templatesFor(ctx, r)
	if err != nil {
		return Info{}, err
	}
	userCounts, err := svc.repo.CountRoleUsers(ctx, tenantID)
	if err != nil {
		return Info{}, errors.Wrap(err, "counting role users")
	}
	return svc.buildInfo(ctx, r, templates, userCounts[r.ID])
}

func (svc *Service) templatesFor(ctx context.Context, r Role) (map[string]Template, error) {
	if !r.CreatedFromTemplateID.Valid {
		return nil, nil
	}
	templates, err := svc.repo.QueryTemplatesByID(ctx, []string{r.CreatedFromTemplateID.String})
	return templates, errors.Wrap(err, "loading role template")
}

func (svc *Service) permissionsByID(ctx context.Context, ids []string) (map[string]Permission, error) {
	perms, err := svc.repo.QueryPermissionsByID(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "loading permissions")
	}
	byID := make(map[string]Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}
	return byID, nil
}

func (svc *Service) buildInfo(ctx context.Context, r Role, templates map[string]Template, userCount int) (Info, error) {
	perms, err := svc.permissionsByID(ctx, r.PermissionIDs)
	if err != nil {
		return Info{}, err
	}
	return newInfo(r, templates, perms, userCount), nil
}

func newInfo(r Role, templates map[string]Template, perms map[string]Permission, userCount int) Info {
	info := Info{
		Role:                 r,
		Permissions:          make([]Permission, 0, len(r.PermissionIDs)),
		UserCount:            userCount,
		ModifiedFromTemplate: ModifiedFromTemplate(r.Alias, r.CreatedFromTemplateID, r.PermissionIDs, templates),
	}
	for _, id := range r.PermissionIDs {
		if p, ok := perms[id]; ok {
			info.Permissions = append(info.Permissions, p)
		}
	}
	info.PermissionCount = len(info.Permissions)
	if r.CreatedFromTemplateID.Valid {
		if tpl, ok := templates[r.CreatedFromTemplateID.String]; ok {
			info.CreatedFromTemplate = &TemplateRef{
				ID:              tpl.ID,
				TemplateSetName: tpl.TemplateSetName,
				RoleName:        tpl.RoleName,
			}
		}
	}
	return info
}
