package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/role"
)

type roleRepository struct {
	db *DB
}

var _ role.Repository = (*roleRepository)(nil)

func NewRoleRepository(db *DB) *roleRepository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) query(tenantID string) []role.Role {
	roles := make([]role.Role, 0, len(repo.db.roles))
	for _, r := range repo.db.roles {
		if r.TenantID == tenantID {
			roles = append(roles, *r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].SlotPosition < roles[j].SlotPosition })
	return roles
}

func (repo *roleRepository) CreateRole(_ context.Context, r role.Role, _ ...core.DBExecutor) (role.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.roles {
		if existing.TenantID != r.TenantID {
			continue
		}
		if strings.EqualFold(existing.Alias, r.Alias) {
			return role.Role{}, role.ErrAliasExists
		}
		if existing.SlotPosition == r.SlotPosition {
			return role.Role{}, role.ErrSlotTaken
		}
	}

	r.ID = uuid.New().String()
	repo.db.roles[r.ID] = &r
	return r, nil
}

func (repo *roleRepository) GetRoleByID(_ context.Context, tenantID, id string, _ ...core.DBExecutor) (role.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.roles[id]; ok && r.TenantID == tenantID {
		return *r, nil
	}
	return role.Role{}, role.ErrNotFound
}

func (repo *roleRepository) QueryRoles(_ context.Context, tenantID string, _ ...core.DBExecutor) ([]role.Role, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(tenantID), nil
}

func (repo *roleRepository) CountRoles(_ context.Context, tenantID string, countedOnly bool, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, r := range repo.db.roles {
		if r.TenantID != tenantID {
			continue
		}
		if countedOnly && r.Uncounted {
			continue
		}
		count++
	}
	return count, nil
}

func (repo *roleRepository) TakenSlotPositions(_ context.Context, tenantID string, _ ...core.DBExecutor) ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var positions []int
	for _, r := range repo.query(tenantID) {
		positions = append(positions, r.SlotPosition)
	}
	return positions, nil
}

func (repo *roleRepository) AliasExists(_ context.Context, tenantID, alias, excludedRoleID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, r := range repo.db.roles {
		if r.TenantID == tenantID && r.ID != excludedRoleID && strings.EqualFold(r.Alias, alias) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *roleRepository) UpdateRole(_ context.Context, r role.Role, _ ...core.DBExecutor) (role.Role, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.roles[r.ID]
	if !ok || orig.TenantID != r.TenantID {
		return role.Role{}, role.ErrNotFound
	}
	r.PermissionIDs = orig.PermissionIDs
	repo.db.roles[r.ID] = &r
	return r, nil
}

func (repo *roleRepository) ReplaceRolePermissions(_ context.Context, roleID string, permissionIDs []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r, ok := repo.db.roles[roleID]; ok {
		r.PermissionIDs = permissionIDs
	}
	return nil
}

func (repo *roleRepository) QueryTemplateSet(_ context.Context, setName string, _ ...core.DBExecutor) ([]role.Template, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var templates []role.Template
	for _, tpl := range repo.db.templates {
		if tpl.TemplateSetName == setName {
			templates = append(templates, *tpl)
		}
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].SlotPosition < templates[j].SlotPosition })
	return templates, nil
}

func (repo *roleRepository) QueryTemplatesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (map[string]role.Template, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	byID := make(map[string]role.Template, len(ids))
	for _, id := range ids {
		if tpl, ok := repo.db.templates[id]; ok {
			byID[id] = *tpl
		}
	}
	return byID, nil
}

func (repo *roleRepository) QueryPermissionsByID(_ context.Context, ids []string, _ ...core.DBExecutor) ([]role.Permission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[string]bool, len(ids))
	var perms []role.Permission
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := repo.db.permissions[id]; ok {
			perms = append(perms, *p)
		}
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Category != perms[j].Category {
			return perms[i].Category < perms[j].Category
		}
		return perms[i].Code < perms[j].Code
	})
	return perms, nil
}

func (repo *roleRepository) CountRoleUsers(_ context.Context, tenantID string, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[string]int)
	for _, a := range repo.db.assignments {
		if a.TenantID == tenantID {
			counts[a.RoleID]++
		}
	}
	return counts, nil
}
