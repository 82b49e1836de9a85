package role

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

const (
	// GuestAlias is the reserved view-only role. Its template is never
	// materialized during template-set initialization; a tenant opting in
	// creates it individually, outside the slot limit.
	GuestAlias = "Guest"

	// DefaultTemplateSet is the template set tenants are bootstrapped from.
	DefaultTemplateSet = "generic"
)

// Permission is a globally defined capability; immutable reference data.
type Permission struct {
	ID       string `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
}

// Template is a tenant-independent role blueprint, grouped into a named set.
type Template struct {
	ID              string `json:"id" db:"id"`
	TemplateSetName string `json:"template_set_name" db:"template_set_name"`
	RoleName        string `json:"role_name" db:"role_name"`
	Description     string `json:"description" db:"description"`
	// SlotPosition is the slot the role is intended to occupy when the set
	// is materialized for a tenant.
	SlotPosition  int      `json:"slot_position" db:"slot_position"`
	PermissionIDs []string `json:"permission_ids" db:"-"`
}

// Role is a concrete role belonging to exactly one tenant.
type Role struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	Alias       string `json:"role_alias" db:"role_alias"`
	Description string `json:"description" db:"description"`
	// SlotPosition is unique within the tenant and drives ordering and
	// free-slot selection.
	SlotPosition int  `json:"slot_position" db:"slot_position"`
	IsActive     bool `json:"is_active" db:"is_active"`
	// Uncounted roles (e.g. Guest) do not consume a role slot.
	Uncounted             bool        `json:"does_not_count_toward_slot_limit" db:"uncounted"`
	CreatedFromTemplateID null.String `json:"created_from_template_id" db:"created_from_template_id"`
	PermissionIDs         []string    `json:"-" db:"-"`
	CreatedAt             time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt             time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// NewRole contains information needed to create a custom tenant role.
type NewRole struct {
	Alias         string   `json:"role_alias" validate:"required,max=80,alphanum_"`
	Description   string   `json:"description" validate:"max=255"`
	SlotPosition  *int     `json:"slot_position" validate:"omitempty,min=1"`
	PermissionIDs []string `json:"permission_ids"`
	Uncounted     bool     `json:"does_not_count_toward_slot_limit"`
}

func (nr *NewRole) Validate(validate *validator.Validate) error {
	nr.Alias = core.CleanString(nr.Alias)
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

// UpdateRole defines what may be modified on an existing role.
// Nil fields are left unchanged.
type UpdateRole struct {
	Alias         string   `json:"role_alias" validate:"omitempty,max=80,alphanum_"`
	Description   *string  `json:"description" validate:"omitempty,max=255"`
	PermissionIDs []string `json:"permission_ids"`
	IsActive      *bool    `json:"is_active"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	ur.Alias = core.CleanString(ur.Alias)
	if ur.Description != nil {
		desc := core.CleanString(*ur.Description)
		ur.Description = &desc
	}
	return validate.Struct(ur)
}

// TemplateRef identifies the template a role was created from.
type TemplateRef struct {
	ID              string `json:"id"`
	TemplateSetName string `json:"template_set_name"`
	RoleName        string `json:"role_name"`
}

// Info is the read model for one role: the role, its resolved permissions
// and the derived template-divergence flag.
type Info struct {
	Role
	Permissions          []Permission `json:"permissions"`
	PermissionCount      int          `json:"permission_count"`
	UserCount            int          `json:"user_count"`
	CreatedFromTemplate  *TemplateRef `json:"created_from_template"`
	ModifiedFromTemplate bool         `json:"modified_from_template"`
}

// TenantInfo is the tenant header of a role listing.
type TenantInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MaxRoleSlots int    `json:"max_role_slots"`
}

// List is the full role listing for one tenant.
type List struct {
	Tenant         TenantInfo `json:"tenant"`
	Roles          []Info     `json:"roles"`
	UsedSlots      int        `json:"used_slots"`
	AvailableSlots int        `json:"available_slots"`
}

// InitializedRole is one entry of a template-set initialization result.
type InitializedRole struct {
	ID              string `json:"id"`
	Alias           string `json:"role_alias"`
	SlotPosition    int    `json:"slot_position"`
	PermissionCount int    `json:"permission_count"`
}

// InitResult reports a successful template-set initialization.
type InitResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Roles   []InitializedRole `json:"roles"`
}
