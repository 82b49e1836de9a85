package tenant

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Tenant is an isolated organization; all roles, users and data are
// partitioned by it.
type Tenant struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	// MaxRoleSlots caps the number of roles that count toward the tenant's
	// plan limit. Raised by plan upgrades.
	MaxRoleSlots int       `json:"max_role_slots" db:"max_role_slots"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// NewTenant contains information needed to onboard a new Tenant.
type NewTenant struct {
	Name         string `json:"name" validate:"required"`
	MaxRoleSlots int    `json:"max_role_slots" validate:"required,min=1"`
}

func (nt *NewTenant) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}
