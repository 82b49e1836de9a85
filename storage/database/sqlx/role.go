package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/role"
)

type roleRepository struct {
	exec core.DBExecutor
}

var _ role.Repository = (*roleRepository)(nil) // interface compliance check

func NewRoleRepository(exec core.DBExecutor) *roleRepository {
	return &roleRepository{exec: exec}
}

func (repo roleRepository) CreateRole(ctx context.Context, r role.Role, exec ...core.DBExecutor) (role.Role, error) {
	exe := getExec(repo.exec, exec)
	r.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, `
		INSERT INTO tenant_role
			(id, tenant_id, role_alias, description, slot_position, is_active, uncounted, created_from_template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.TenantID, r.Alias, r.Description, r.SlotPosition, r.IsActive, r.Uncounted, r.CreatedFromTemplateID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		switch {
		case uniqueViolation(err, "tenant_role_alias_uniq"):
			return role.Role{}, role.ErrAliasExists
		case uniqueViolation(err, "tenant_role_tenant_id_slot_position_key"):
			return role.Role{}, role.ErrSlotTaken
		}
		return role.Role{}, errors.Wrap(err, "inserting role")
	}

	for _, permID := range r.PermissionIDs {
		if _, err = exe.ExecContext(ctx,
			`INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2)`, r.ID, permID); err != nil {
			return role.Role{}, errors.Wrap(err, "inserting role permission")
		}
	}
	return r, nil
}

func (repo roleRepository) GetRoleByID(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (role.Role, error) {
	exe := getExec(repo.exec, exec)
	if _, err := uuid.Parse(id); err != nil {
		return role.Role{}, role.ErrNotFound
	}

	var r role.Role
	err := exe.GetContext(ctx, &r,
		`SELECT * FROM tenant_role WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return role.Role{}, trapNoRowsErr(err, role.ErrNotFound, "finding role by ID")
	}
	if err = exe.SelectContext(ctx, &r.PermissionIDs,
		`SELECT permission_id FROM role_permission WHERE role_id = $1`, r.ID); err != nil {
		return role.Role{}, errors.Wrap(err, "loading role permissions")
	}
	return r, nil
}

func (repo roleRepository) QueryRoles(ctx context.Context, tenantID string, exec ...core.DBExecutor) ([]role.Role, error) {
	exe := getExec(repo.exec, exec)

	var roles []role.Role
	err := exe.SelectContext(ctx, &roles,
		`SELECT * FROM tenant_role WHERE tenant_id = $1 ORDER BY slot_position`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}

	rows, err := exe.QueryxContext(ctx, `
		SELECT rp.role_id, rp.permission_id
		FROM role_permission rp
		JOIN tenant_role r ON r.id = rp.role_id
		WHERE r.tenant_id = $1`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "loading role permissions")
	}
	defer func() { _ = rows.Close() }()

	permsByRole := make(map[string][]string)
	for rows.Next() {
		var roleID, permID string
		if err = rows.Scan(&roleID, &permID); err != nil {
			return nil, errors.Wrap(err, "scanning role permission")
		}
		permsByRole[roleID] = append(permsByRole[roleID], permID)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "loading role permissions")
	}

	for i := range roles {
		roles[i].PermissionIDs = permsByRole[roles[i].ID]
	}
	return roles, nil
}

func (repo roleRepository) CountRoles(ctx context.Context, tenantID string, countedOnly bool, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.exec, exec)

	q := `SELECT COUNT(*) FROM tenant_role WHERE tenant_id = $1`
	if countedOnly {
		q += ` AND uncounted = FALSE`
	}
	var count int
	if err := exe.GetContext(ctx, &count, q, tenantID); err != nil {
		return 0, errors.Wrap(err, "counting roles")
	}
	return count, nil
}

func (repo roleRepository) TakenSlotPositions(ctx context.Context, tenantID string, exec ...core.DBExecutor) ([]int, error) {
	exe := getExec(repo.exec, exec)

	var positions []int
	err := exe.SelectContext(ctx, &positions,
		`SELECT slot_position FROM tenant_role WHERE tenant_id = $1 ORDER BY slot_position`, tenantID)
	return positions, errors.Wrap(err, "loading taken slot positions")
}

func (repo roleRepository) AliasExists(ctx context.Context, tenantID, alias, excludedRoleID string, exec ...core.DBExecutor) (bool, error) {
	exe := getExec(repo.exec, exec)

	q := `SELECT EXISTS (SELECT 1 FROM tenant_role WHERE tenant_id = $1 AND lower(role_alias) = lower($2)`
	args := []interface{}{tenantID, alias}
	if excludedRoleID != "" {
		q += ` AND id <> $3`
		args = append(args, excludedRoleID)
	}
	q += `)`

	var exists bool
	if err := exe.GetContext(ctx, &exists, q, args...); err != nil {
		return false, errors.Wrap(err, "checking alias uniqueness")
	}
	return exists, nil
}

func (repo roleRepository) UpdateRole(ctx context.Context, r role.Role, exec ...core.DBExecutor) (role.Role, error) {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx, `
		UPDATE tenant_role
		SET role_alias = $1, description = $2, is_active = $3, updated_at = $4
		WHERE tenant_id = $5 AND id = $6`,
		r.Alias, r.Description, r.IsActive, r.UpdatedAt, r.TenantID, r.ID,
	)
	if err != nil {
		if uniqueViolation(err, "tenant_role_alias_uniq") {
			return role.Role{}, role.ErrAliasExists
		}
		return role.Role{}, errors.Wrap(err, "updating role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return role.Role{}, role.ErrNotFound
	}
	return r, nil
}

func (repo roleRepository) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	if _, err := exe.ExecContext(ctx, `DELETE FROM role_permission WHERE role_id = $1`, roleID); err != nil {
		return errors.Wrap(err, "deleting role permissions")
	}
	for _, permID := range permissionIDs {
		if _, err := exe.ExecContext(ctx,
			`INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2)`, roleID, permID); err != nil {
			return errors.Wrap(err, "inserting role permission")
		}
	}
	return nil
}

func (repo roleRepository) QueryTemplateSet(ctx context.Context, setName string, exec ...core.DBExecutor) ([]role.Template, error) {
	exe := getExec(repo.exec, exec)

	var templates []role.Template
	err := exe.SelectContext(ctx, &templates,
		`SELECT * FROM role_template WHERE template_set_name = $1 ORDER BY slot_position`, setName)
	if err != nil {
		return nil, errors.Wrap(err, "querying template set")
	}
	if err = repo.loadTemplatePermissions(ctx, exe, templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (repo roleRepository) QueryTemplatesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (map[string]role.Template, error) {
	byID := make(map[string]role.Template, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	exe := getExec(repo.exec, exec)

	q, args, err := sqlx.In(`SELECT * FROM role_template WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building template query")
	}

	var templates []role.Template
	if err = exe.SelectContext(ctx, &templates, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	if err = repo.loadTemplatePermissions(ctx, exe, templates); err != nil {
		return nil, err
	}
	for _, tpl := range templates {
		byID[tpl.ID] = tpl
	}
	return byID, nil
}

func (repo roleRepository) loadTemplatePermissions(ctx context.Context, exe core.DBExecutor, templates []role.Template) error {
	if len(templates) == 0 {
		return nil
	}
	ids := make([]string, 0, len(templates))
	for _, tpl := range templates {
		ids = append(ids, tpl.ID)
	}

	q, args, err := sqlx.In(`SELECT template_id, permission_id FROM template_permission WHERE template_id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building template permission query")
	}
	rows, err := exe.QueryxContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
	if err != nil {
		return errors.Wrap(err, "loading template permissions")
	}
	defer func() { _ = rows.Close() }()

	permsByTpl := make(map[string][]string)
	for rows.Next() {
		var tplID, permID string
		if err = rows.Scan(&tplID, &permID); err != nil {
			return errors.Wrap(err, "scanning template permission")
		}
		permsByTpl[tplID] = append(permsByTpl[tplID], permID)
	}
	if err = rows.Err(); err != nil {
		return errors.Wrap(err, "loading template permissions")
	}

	for i := range templates {
		templates[i].PermissionIDs = permsByTpl[templates[i].ID]
	}
	return nil
}

func (repo roleRepository) QueryPermissionsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]role.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	exe := getExec(repo.exec, exec)

	q, args, err := sqlx.In(`SELECT * FROM permission WHERE id IN (?) ORDER BY category, code`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building permission query")
	}
	var perms []role.Permission
	if err = exe.SelectContext(ctx, &perms, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return nil, errors.Wrap(err, "querying permissions")
	}
	return perms, nil
}

func (repo roleRepository) CountRoleUsers(ctx context.Context, tenantID string, exec ...core.DBExecutor) (map[string]int, error) {
	exe := getExec(repo.exec, exec)

	rows, err := exe.QueryxContext(ctx,
		`SELECT role_id, COUNT(*) FROM user_role WHERE tenant_id = $1 GROUP BY role_id`, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "counting role users")
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var roleID string
		var count int
		if err = rows.Scan(&roleID, &count); err != nil {
			return nil, errors.Wrap(err, "scanning role user count")
		}
		counts[roleID] = count
	}
	return counts, errors.Wrap(rows.Err(), "counting role users")
}
