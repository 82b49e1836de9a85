package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

// NewConfig returns a config suitable for tests; no environment is read.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:           "Darasa",
		Env:               "TEST",
		Debug:             false,
		TestMode:          true,
		SecretKey:         "test-secret-key",
		MaxReportsToDepth: 100,
		Server: core.ServerConfig{
			Host:            "localhost:0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// NewValidator returns a ready-to-use validator and its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

// Logger is a no-op core.Logger.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

func CreateTenant(t *testing.T, repo tenant.Repository, name string, maxRoleSlots int) tenant.Tenant {
	t.Helper()
	now := time.Now().UTC()
	ten, err := repo.CreateTenant(context.Background(), tenant.Tenant{
		Name:         name,
		MaxRoleSlots: maxRoleSlots,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	return ten
}

func CreateRole(
	t *testing.T,
	repo role.Repository,
	tenantID, alias string,
	slotPosition int,
	isActive, uncounted bool,
	permissionIDs []string,
) role.Role {
	t.Helper()
	now := time.Now().UTC()
	r, err := repo.CreateRole(context.Background(), role.Role{
		TenantID:      tenantID,
		Alias:         alias,
		SlotPosition:  slotPosition,
		IsActive:      isActive,
		Uncounted:     uncounted,
		PermissionIDs: permissionIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateRole() failed: %v", err)
	}
	return r
}

func CreateUser(t *testing.T, repo user.Repository, name, email, tenantID string, reportsToID ...string) user.User {
	t.Helper()
	now := time.Now().UTC()
	active := true
	usr := user.User{
		Name:      name,
		Email:     email,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if tenantID != "" {
		usr.TenantID = null.StringFrom(tenantID)
	}
	if len(reportsToID) > 0 && reportsToID[0] != "" {
		usr.ReportsToID = null.StringFrom(reportsToID[0])
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Permission ids seeded by SeedGenericTemplates, keyed by capability code.
var PermissionIDs = map[string]string{
	"roles.read":     "8f2d1c6a-0001-4a60-9c30-000000000001",
	"roles.create":   "8f2d1c6a-0001-4a60-9c30-000000000002",
	"roles.assign":   "8f2d1c6a-0001-4a60-9c30-000000000003",
	"users.read":     "8f2d1c6a-0001-4a60-9c30-000000000004",
	"users.update":   "8f2d1c6a-0001-4a60-9c30-000000000005",
	"courses.read":   "8f2d1c6a-0001-4a60-9c30-000000000006",
	"courses.manage": "8f2d1c6a-0001-4a60-9c30-000000000007",
	"audit.read":     "8f2d1c6a-0001-4a60-9c30-000000000008",
}

// SeedGenericTemplates loads the "generic" template set and its permissions
// into the in-memory store, mirroring the seed migration. Returns the
// templates ordered by slot position.
func SeedGenericTemplates(db *inmemdb.DB) []role.Template {
	perms := []role.Permission{
		{ID: PermissionIDs["roles.read"], Code: "roles.read", Name: "View roles", Category: "roles"},
		{ID: PermissionIDs["roles.create"], Code: "roles.create", Name: "Create and edit roles", Category: "roles"},
		{ID: PermissionIDs["roles.assign"], Code: "roles.assign", Name: "Assign roles to users", Category: "roles"},
		{ID: PermissionIDs["users.read"], Code: "users.read", Name: "View users", Category: "users"},
		{ID: PermissionIDs["users.update"], Code: "users.update", Name: "Update users", Category: "users"},
		{ID: PermissionIDs["courses.read"], Code: "courses.read", Name: "View courses", Category: "courses"},
		{ID: PermissionIDs["courses.manage"], Code: "courses.manage", Name: "Create and edit courses", Category: "courses"},
		{ID: PermissionIDs["audit.read"], Code: "audit.read", Name: "View the audit log", Category: "audit"},
	}
	allPermIDs := make([]string, 0, len(perms))
	for _, p := range perms {
		db.AddPermission(p)
		allPermIDs = append(allPermIDs, p.ID)
	}

	templates := []role.Template{
		{
			ID: "51b7aa90-0002-4c11-8d40-000000000001", TemplateSetName: "generic", RoleName: "Owner",
			Description: "Full control over the tenant", SlotPosition: 1, PermissionIDs: allPermIDs,
		},
		{
			ID: "51b7aa90-0002-4c11-8d40-000000000002", TemplateSetName: "generic", RoleName: "Admin",
			Description: "Manages roles, users and courses", SlotPosition: 2, PermissionIDs: allPermIDs,
		},
		{
			ID: "51b7aa90-0002-4c11-8d40-000000000003", TemplateSetName: "generic", RoleName: "Instructor",
			Description: "Creates and teaches courses", SlotPosition: 3,
			PermissionIDs: []string{PermissionIDs["users.read"], PermissionIDs["courses.read"], PermissionIDs["courses.manage"]},
		},
		{
			ID: "51b7aa90-0002-4c11-8d40-000000000004", TemplateSetName: "generic", RoleName: "Member",
			Description: "Takes courses", SlotPosition: 4,
			PermissionIDs: []string{PermissionIDs["courses.read"]},
		},
		{
			ID: "51b7aa90-0002-4c11-8d40-000000000005", TemplateSetName: "generic", RoleName: "Guest",
			Description: "View-only access", SlotPosition: 5,
			PermissionIDs: []string{PermissionIDs["courses.read"]},
		},
	}
	for _, tpl := range templates {
		db.AddTemplate(tpl)
	}
	return templates
}
