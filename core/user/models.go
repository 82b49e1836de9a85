package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
)

// User belongs to at most one tenant; identity itself lives with the
// external identity provider, this app only keeps the tenant-side record.
type User struct {
	ID       string      `json:"id" db:"id"`
	Name     string      `json:"name" db:"name"`
	Email    string      `json:"email" db:"email"`
	TenantID null.String `json:"tenant_id" db:"tenant_id"`
	// ReportsToID points at the user's manager within the same tenant.
	// The reports-to graph must stay acyclic.
	ReportsToID null.String `json:"reports_to_id" db:"reports_to_id"`
	IsActive    *bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// Assignment records which single role a user currently holds within a tenant.
type Assignment struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	RoleID     string    `json:"role_id" db:"role_id"`
	AssignedBy string    `json:"assigned_by" db:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"` // UTC
}

// AssignRole contains information needed to (re)assign a user's role.
type AssignRole struct {
	RoleID string `json:"role_id" validate:"required"`
}

func (ar *AssignRole) Validate(validate *validator.Validate) error {
	ar.RoleID = core.CleanString(ar.RoleID)
	return validate.Struct(ar)
}

// UpdateUser defines what may be modified on an existing user from this app.
// A nil ReportsToID leaves the manager unchanged; an empty string clears it.
type UpdateUser struct {
	Name        string  `json:"name"`
	ReportsToID *string `json:"reports_to_id"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uu.ReportsToID != nil {
		id := core.CleanString(*uu.ReportsToID)
		uu.ReportsToID = &id
	}
	return validate.Struct(uu)
}

// NewManager resolves the requested reports-to change against the stored
// value: (unchangedOrNew, isSet).
func (uu *UpdateUser) NewManager() (null.String, bool) {
	if uu.ReportsToID == nil {
		return null.String{}, false
	}
	if *uu.ReportsToID == "" {
		return null.String{}, true // explicit clear
	}
	return null.StringFrom(*uu.ReportsToID), true
}
