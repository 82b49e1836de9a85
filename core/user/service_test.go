package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
	testutil "github.com/darasahq/darasa/tests"
)

type userFixture struct {
	db         *inmemdb.DB
	repo       user.Repository
	roleRepo   role.Repository
	tenantRepo tenant.Repository
	auditSvc   *audit.Service
	svc        *user.Service
}

func setup(t *testing.T) *userFixture {
	t.Helper()
	emailsvc.ClearSentMessages()

	db := inmemdb.NewDB()
	repo := inmemdb.NewUserRepository(db)
	roleRepo := inmemdb.NewRoleRepository(db)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db), testutil.Logger{})
	conf := testutil.NewConfig()
	return &userFixture{
		db:         db,
		repo:       repo,
		roleRepo:   roleRepo,
		tenantRepo: inmemdb.NewTenantRepository(db),
		auditSvc:   auditSvc,
		svc: user.NewService(
			inmemdb.NewTransactor(), repo, roleRepo, auditSvc,
			emailsvc.NewConsoleServiceMock(conf), conf,
		),
	}
}

func assertValidationErr(t *testing.T, err, want error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error, got nil")
	}
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok {
		t.Fatalf("expected *core.ValidationError, got %T: %v", errors.Cause(err), err)
	}
	if want != nil && vErr.Err != want {
		t.Errorf("validation error = %v, want %v", vErr.Err, want)
	}
}

func TestService_AssignRole(t *testing.T) {
	ctx := context.Background()

	t.Run("reassignment replaces the previous role", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		r1 := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Admin", 1, true, false, nil)
		r2 := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Member", 2, true, false, nil)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		if _, err := fix.svc.AssignRole(ctx, ten.ID, usr.ID, r1.ID, "actor"); err != nil {
			t.Fatalf("AssignRole() failed: %v", err)
		}
		if _, err := fix.svc.AssignRole(ctx, ten.ID, usr.ID, r2.ID, "actor"); err != nil {
			t.Fatalf("AssignRole() failed: %v", err)
		}

		a, err := fix.svc.GetAssignment(ctx, ten.ID, usr.ID)
		if err != nil {
			t.Fatalf("GetAssignment() failed: %v", err)
		}
		if a.RoleID != r2.ID {
			t.Errorf("RoleID = %s, want %s", a.RoleID, r2.ID)
		}

		counts, err := fix.roleRepo.CountRoleUsers(ctx, ten.ID)
		if err != nil {
			t.Fatalf("CountRoleUsers() failed: %v", err)
		}
		if counts[r1.ID] != 0 || counts[r2.ID] != 1 {
			t.Errorf("role user counts = %v, want only %s held once", counts, r2.ID)
		}
	})

	t.Run("inactive role rejected", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		r := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Retired", 1, false, false, nil)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		_, err := fix.svc.AssignRole(ctx, ten.ID, usr.ID, r.ID, "actor")
		assertValidationErr(t, err, user.ErrRoleNotFound)
	})

	t.Run("role of another tenant rejected", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		other := testutil.CreateTenant(t, fix.tenantRepo, "Umbrella", 5)
		foreign := testutil.CreateRole(t, fix.roleRepo, other.ID, "Admin", 1, true, false, nil)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		_, err := fix.svc.AssignRole(ctx, ten.ID, usr.ID, foreign.ID, "actor")
		assertValidationErr(t, err, user.ErrRoleNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		r := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Admin", 1, true, false, nil)

		_, err := fix.svc.AssignRole(ctx, ten.ID, "nope", r.ID, "actor")
		if errors.Cause(err) != user.ErrNotFound {
			t.Errorf("error = %v, want %v", err, user.ErrNotFound)
		}
	})

	t.Run("audit record and notification emitted", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		r := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Admin", 1, true, false, []string{"p1", "p2"})
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		if _, err := fix.svc.AssignRole(ctx, ten.ID, usr.ID, r.ID, "actor-1"); err != nil {
			t.Fatalf("AssignRole() failed: %v", err)
		}

		recs, err := fix.auditSvc.Query(ctx, ten.ID, &audit.QueryFilter{Action: audit.ActionRoleAssign})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("audit records = %d, want 1", len(recs))
		}
		rec := recs[0]
		if rec.ActorID != "actor-1" || rec.ResourceID != usr.ID {
			t.Errorf("unexpected audit record: %+v", rec)
		}
		if rec.Details["role_alias"] != "Admin" {
			t.Errorf("Details[role_alias] = %v, want Admin", rec.Details["role_alias"])
		}

		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("sent messages = %d, want 1", len(emailsvc.SentMessages))
		}
		if to := emailsvc.SentMessages[0].To[0].Address; to != usr.Email {
			t.Errorf("notification sent to %s, want %s", to, usr.Email)
		}
	})
}

func TestService_AssignDefaultRole(t *testing.T) {
	ctx := context.Background()

	t.Run("highest slot position wins", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		testutil.CreateRole(t, fix.roleRepo, ten.ID, "Owner", 1, true, false, nil)
		member := testutil.CreateRole(t, fix.roleRepo, ten.ID, "Member", 4, true, false, nil)
		testutil.CreateRole(t, fix.roleRepo, ten.ID, "Retired", 5, false, false, nil) // inactive
		testutil.CreateRole(t, fix.roleRepo, ten.ID, "Guest", 6, true, true, nil)     // uncounted
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		a, err := fix.svc.AssignDefaultRole(ctx, ten.ID, usr.ID, "actor")
		if err != nil {
			t.Fatalf("AssignDefaultRole() failed: %v", err)
		}
		if a.RoleID != member.ID {
			t.Errorf("RoleID = %s, want %s (Member)", a.RoleID, member.ID)
		}
	})

	t.Run("no assignable roles", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		_, err := fix.svc.AssignDefaultRole(ctx, ten.ID, usr.ID, "actor")
		assertValidationErr(t, err, nil)
	})
}

func TestService_SetReportsTo(t *testing.T) {
	ctx := context.Background()

	t.Run("self-reporting rejected", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		_, err := fix.svc.SetReportsTo(ctx, ten.ID, usr.ID, null.StringFrom(usr.ID))
		assertValidationErr(t, err, user.ErrSelfReporting)
	})

	t.Run("cross-tenant manager rejected", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		other := testutil.CreateTenant(t, fix.tenantRepo, "Umbrella", 5)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)
		foreignMgr := testutil.CreateUser(t, fix.repo, "Out", "out@test.cd", other.ID)

		_, err := fix.svc.SetReportsTo(ctx, ten.ID, usr.ID, null.StringFrom(foreignMgr.ID))
		assertValidationErr(t, err, user.ErrCrossTenantManager)
	})

	t.Run("cycle rejected and chain left intact", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		a := testutil.CreateUser(t, fix.repo, "A", "a@test.cd", ten.ID)
		b := testutil.CreateUser(t, fix.repo, "B", "b@test.cd", ten.ID, a.ID)
		c := testutil.CreateUser(t, fix.repo, "C", "c@test.cd", ten.ID, b.ID)

		// a <- b <- c ; closing the loop must fail
		_, err := fix.svc.SetReportsTo(ctx, ten.ID, a.ID, null.StringFrom(c.ID))
		assertValidationErr(t, err, user.ErrCyclicReporting)

		refreshed, err := fix.repo.GetUserByID(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		if refreshed.ReportsToID.Valid {
			t.Errorf("ReportsToID = %v, want unchanged (null)", refreshed.ReportsToID)
		}
	})

	t.Run("valid change with audit trail", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		mgr := testutil.CreateUser(t, fix.repo, "Mgr", "mgr@test.cd", ten.ID)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		updated, err := fix.svc.SetReportsTo(ctx, ten.ID, usr.ID, null.StringFrom(mgr.ID))
		if err != nil {
			t.Fatalf("SetReportsTo() failed: %v", err)
		}
		if updated.ReportsToID.String != mgr.ID {
			t.Errorf("ReportsToID = %v, want %s", updated.ReportsToID, mgr.ID)
		}

		recs, err := fix.auditSvc.Query(ctx, ten.ID, &audit.QueryFilter{Action: audit.ActionReportsToChange})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("audit records = %d, want 1", len(recs))
		}
		if got := recs[0].Details["new_reports_to_id"]; got == nil || *(got.(*string)) != mgr.ID {
			t.Errorf("Details[new_reports_to_id] = %v, want %s", got, mgr.ID)
		}
	})

	t.Run("no-op change emits no audit record", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		mgr := testutil.CreateUser(t, fix.repo, "Mgr", "mgr@test.cd", ten.ID)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID, mgr.ID)

		if _, err := fix.svc.SetReportsTo(ctx, ten.ID, usr.ID, null.StringFrom(mgr.ID)); err != nil {
			t.Fatalf("SetReportsTo() failed: %v", err)
		}
		recs, err := fix.auditSvc.Query(ctx, ten.ID, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("audit records = %d, want 0", len(recs))
		}
	})

	t.Run("clearing the manager", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		mgr := testutil.CreateUser(t, fix.repo, "Mgr", "mgr@test.cd", ten.ID)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID, mgr.ID)

		updated, err := fix.svc.SetReportsTo(ctx, ten.ID, usr.ID, null.String{})
		if err != nil {
			t.Fatalf("SetReportsTo() failed: %v", err)
		}
		if updated.ReportsToID.Valid {
			t.Errorf("ReportsToID = %v, want null", updated.ReportsToID)
		}
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("profile change", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		updated, err := fix.svc.Update(ctx, ten.ID, usr.ID, user.UpdateUser{Name: "Joanna"})
		if err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		if updated.Name != "Joanna" {
			t.Errorf("Name = %s, want Joanna", updated.Name)
		}
	})

	t.Run("manager change goes through the chain validation", func(t *testing.T) {
		fix := setup(t)
		ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
		usr := testutil.CreateUser(t, fix.repo, "Jo", "jo@test.cd", ten.ID)

		self := usr.ID
		_, err := fix.svc.Update(ctx, ten.ID, usr.ID, user.UpdateUser{Name: "Jo", ReportsToID: &self})
		assertValidationErr(t, err, user.ErrSelfReporting)
	})
}
