package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
	testutil "github.com/darasahq/darasa/tests"
)

var roleRepo role.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db := inmemdb.NewDB()
	testutil.SeedGenericTemplates(db)
	tenantRepo := inmemdb.NewTenantRepository(db)
	roleRepo = inmemdb.NewRoleRepository(db)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db), testutil.Logger{})

	// start CLI; migrations are mocked so the handle is never dialed
	return &commandLine{
		db:        &sqlx.DB{},
		tenantSvc: tenant.NewService(tenantRepo),
		roleSvc:   role.NewService(inmemdb.NewTransactor(), roleRepo, tenantRepo, auditSvc),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addTenant(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no name", args: []string{"addtenant"}, wantErr: errHelp},
		{name: "onboard with roles", args: []string{"addtenant", "-name", "Acme"}},
		{name: "onboard without roles", args: []string{"addtenant", "-name", "Globex", "-noinit"}},
		{name: "onboard with a tight slot limit", args: []string{"addtenant", "-name", "Initech", "-slots", "2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_initTemplates(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	ten, err := cli.tenantSvc.Create(ctx, tenant.NewTenant{Name: "Acme", MaxRoleSlots: 5})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no tenant", args: []string{"inittemplates"}, wantErr: errHelp},
		{name: "unknown tenant", args: []string{"inittemplates", "-tenant", "lol"}, wantErr: tenant.ErrNotFound},
		{name: "unknown set", args: []string{"inittemplates", "-tenant", ten.ID, "-set", "fancy"}, wantErr: role.ErrTemplateSetNotFound},
		{name: "default set", args: []string{"inittemplates", "-tenant", ten.ID}},
		{name: "tenant already has roles", args: []string{"inittemplates", "-tenant", ten.ID}, wantErr: role.ErrTenantHasRoles},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			cause := errors.Cause(err)
			if vErr, ok := cause.(*core.ValidationError); ok {
				cause = vErr.Err
			}
			if cause != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	roles, err := roleRepo.QueryRoles(ctx, ten.ID)
	if err != nil {
		t.Fatalf("QueryRoles() failed: %v", err)
	}
	if len(roles) != 4 {
		t.Errorf("len(roles) = %d, want 4", len(roles))
	}
}
