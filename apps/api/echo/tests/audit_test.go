package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	testutil "github.com/darasahq/darasa/tests"
)

func TestAuditAPI(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)
	ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
	basePath := "/v1/tenants/" + ten.ID + "/audit"

	// seed two audit events with distinct actors
	const bootstrapActor = "admin-bootstrap"
	if _, err := fix.roleSvc.InitTemplateSet(ctx, ten.ID, "generic", bootstrapActor); err != nil {
		t.Fatalf("InitTemplateSet() failed: %v", err)
	}
	if _, err := fix.roleSvc.Create(ctx, ten.ID, role.NewRole{Alias: "Moderator"}, actorID); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	token := fix.getToken(t, actorID, ten.ID, "audit.read")
	do := func(path string) *httptest.ResponseRecorder {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		fix.server.ServeHTTP(rec, req)
		return rec
	}

	t.Run("listing is most recent first", func(t *testing.T) {
		rec := do(basePath)
		checkCode(t, rec, http.StatusOK)

		var recs []audit.Record
		unmarchallObj(t, rec, &recs)
		if len(recs) != 2 {
			t.Fatalf("len(recs) = %d, want 2", len(recs))
		}
		if recs[0].Action != audit.ActionRoleCreate || recs[1].Action != audit.ActionRoleInitTemplates {
			t.Errorf("actions = [%s, %s], want newest first", recs[0].Action, recs[1].Action)
		}
	})

	t.Run("ascending ordering on demand", func(t *testing.T) {
		rec := do(basePath + "?ordering=created_at")
		checkCode(t, rec, http.StatusOK)

		var recs []audit.Record
		unmarchallObj(t, rec, &recs)
		if len(recs) != 2 {
			t.Fatalf("len(recs) = %d, want 2", len(recs))
		}
		if recs[0].Action != audit.ActionRoleInitTemplates {
			t.Errorf("recs[0].Action = %s, want %s", recs[0].Action, audit.ActionRoleInitTemplates)
		}
	})

	t.Run("filtering by action", func(t *testing.T) {
		rec := do(basePath + "?action=role.create")
		checkCode(t, rec, http.StatusOK)

		var recs []audit.Record
		unmarchallObj(t, rec, &recs)
		if len(recs) != 1 {
			t.Fatalf("len(recs) = %d, want 1", len(recs))
		}
		if recs[0].ResourceType != audit.ResourceRole || recs[0].ActorID != actorID {
			t.Errorf("got %+v", recs[0])
		}
		if alias, _ := recs[0].Details["role_alias"].(string); alias != "Moderator" {
			t.Errorf("Details[role_alias] = %v, want Moderator", recs[0].Details["role_alias"])
		}
	})

	t.Run("filtering by actor", func(t *testing.T) {
		rec := do(basePath + "?actor_id=" + bootstrapActor)
		checkCode(t, rec, http.StatusOK)

		var recs []audit.Record
		unmarchallObj(t, rec, &recs)
		if len(recs) != 1 || recs[0].Action != audit.ActionRoleInitTemplates {
			t.Fatalf("recs = %+v, want the bootstrap event only", recs)
		}
	})

	t.Run("no match yields an empty list", func(t *testing.T) {
		rec := do(basePath + "?action=nope")
		tt := httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("requires the audit capability", func(t *testing.T) {
		blindToken := fix.getToken(t, actorID, ten.ID, "roles.read")
		req, rec := newAuthRequest(http.MethodGet, basePath, blindToken)
		fix.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})
}
