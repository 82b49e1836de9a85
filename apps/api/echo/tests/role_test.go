package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darasahq/darasa/core/role"
	testutil "github.com/darasahq/darasa/tests"
)

const actorID = "11e8dd8a-0a0a-4f42-9c11-0000000000ac"

func TestHome(t *testing.T) {
	fix := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	fix.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "Welcome to Darasa API!" {
		t.Errorf("failed! data = %v", rec.Body.String())
	}
}

func TestRoleAPI_accessControl(t *testing.T) {
	fix := setup(t)
	ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
	other := testutil.CreateTenant(t, fix.tenantRepo, "Globex", 5)
	basePath := "/v1/tenants/" + ten.ID + "/roles"

	readToken := fix.getToken(t, actorID, ten.ID, "roles.read")
	noPermToken := fix.getToken(t, actorID, ten.ID)
	foreignToken := fix.getToken(t, actorID, other.ID, "roles.read", "roles.create")

	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{
			name: "anonymous request is rejected", method: http.MethodGet, path: basePath,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "missing capability is rejected", method: http.MethodGet, path: basePath, token: noPermToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "read capability does not grant create", method: http.MethodPost, path: basePath, token: readToken,
			body:     marchallObj(t, map[string]string{"role_alias": "Moderator"}),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "foreign tenant path reads as not found", method: http.MethodGet, path: basePath, token: foreignToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			fix.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestRoleAPI_lifecycle(t *testing.T) {
	fix := setup(t)
	ten := testutil.CreateTenant(t, fix.tenantRepo, "Acme", 5)
	basePath := "/v1/tenants/" + ten.ID + "/roles"
	token := fix.getToken(t, actorID, ten.ID, "roles.read", "roles.create")

	do := func(method, path string, body []byte) *httptest.ResponseRecorder {
		req, rec := newAuthRequest(method, path, token, body)
		fix.server.ServeHTTP(rec, req)
		return rec
	}

	var moderatorID string

	t.Run("initializing the default template set", func(t *testing.T) {
		rec := do(http.MethodPut, basePath, marchallObj(t, map[string]string{"template_set_name": "generic"}))
		checkCode(t, rec, http.StatusOK)

		var res role.InitResult
		unmarchallObj(t, rec, &res)
		if !res.Success {
			t.Error("expected Success")
		}
		if want := `initialized 4 roles from template set "generic"`; res.Message != want {
			t.Errorf("Message = %q, want %q", res.Message, want)
		}
		if len(res.Roles) != 4 {
			t.Fatalf("len(Roles) = %d, want 4", len(res.Roles))
		}
		wantAliases := []string{"Owner", "Admin", "Instructor", "Member"}
		for i, r := range res.Roles {
			if r.Alias != wantAliases[i] || r.SlotPosition != i+1 {
				t.Errorf("Roles[%d] = %q at slot %d, want %q at slot %d", i, r.Alias, r.SlotPosition, wantAliases[i], i+1)
			}
		}
	})

	t.Run("re-initialization is rejected", func(t *testing.T) {
		rec := do(http.MethodPut, basePath, nil)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"tenant": "this tenant already has roles; template initialization only applies to tenants without any",
			}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown template set", func(t *testing.T) {
		rec := do(http.MethodPut, basePath, marchallObj(t, map[string]string{"template_set_name": "fancy"}))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"template_set_name": `no role templates found for set "fancy"`}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("listing the initialized roles", func(t *testing.T) {
		rec := do(http.MethodGet, basePath, nil)
		checkCode(t, rec, http.StatusOK)

		var list role.List
		unmarchallObj(t, rec, &list)
		if list.Tenant.Name != "Acme" || list.Tenant.MaxRoleSlots != 5 {
			t.Errorf("Tenant = %+v", list.Tenant)
		}
		if len(list.Roles) != 4 {
			t.Fatalf("len(Roles) = %d, want 4", len(list.Roles))
		}
		if list.UsedSlots != 4 || list.AvailableSlots != 1 {
			t.Errorf("slots = %d used / %d available, want 4 / 1", list.UsedSlots, list.AvailableSlots)
		}
		owner := list.Roles[0]
		if owner.Alias != "Owner" || owner.PermissionCount != 8 {
			t.Errorf("Roles[0] = %q with %d permissions, want Owner with 8", owner.Alias, owner.PermissionCount)
		}
		if owner.CreatedFromTemplate == nil || owner.ModifiedFromTemplate {
			t.Error("expected a pristine template-derived role")
		}
	})

	t.Run("creating a custom role", func(t *testing.T) {
		rec := do(http.MethodPost, basePath, marchallObj(t, map[string]interface{}{
			"role_alias":     "Moderator",
			"description":    "Keeps things civil",
			"permission_ids": []string{testutil.PermissionIDs["users.read"], testutil.PermissionIDs["courses.read"]},
		}))
		checkCode(t, rec, http.StatusCreated)

		var info role.Info
		unmarchallObj(t, rec, &info)
		if info.Alias != "Moderator" || info.SlotPosition != 5 {
			t.Errorf("created %q at slot %d, want Moderator at slot 5", info.Alias, info.SlotPosition)
		}
		if !info.IsActive {
			t.Error("expected the role to be active")
		}
		if info.PermissionCount != 2 {
			t.Errorf("PermissionCount = %d, want 2", info.PermissionCount)
		}
		if !info.ModifiedFromTemplate {
			t.Error("a custom role is always considered modified")
		}
		moderatorID = info.ID
	})

	t.Run("alias uniqueness is case-insensitive", func(t *testing.T) {
		rec := do(http.MethodPost, basePath, marchallObj(t, map[string]string{"role_alias": "moderator"}))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role_alias": "a role with this alias already exists"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("slot limit reached", func(t *testing.T) {
		rec := do(http.MethodPost, basePath, marchallObj(t, map[string]string{"role_alias": "Extra"}))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"role_slots": "this tenant is limited to 5 roles; raise the plan limit or free a slot",
			}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("uncounted role bypasses the limit", func(t *testing.T) {
		rec := do(http.MethodPost, basePath, marchallObj(t, map[string]interface{}{
			"role_alias":                       "Observer",
			"slot_position":                    6,
			"does_not_count_toward_slot_limit": true,
		}))
		checkCode(t, rec, http.StatusCreated)

		rec = do(http.MethodGet, basePath, nil)
		checkCode(t, rec, http.StatusOK)
		var list role.List
		unmarchallObj(t, rec, &list)
		if len(list.Roles) != 6 {
			t.Errorf("len(Roles) = %d, want 6", len(list.Roles))
		}
		if list.UsedSlots != 5 || list.AvailableSlots != 0 {
			t.Errorf("slots = %d used / %d available, want 5 / 0", list.UsedSlots, list.AvailableSlots)
		}
	})

	t.Run("alias is required", func(t *testing.T) {
		rec := do(http.MethodPost, basePath, marchallObj(t, map[string]string{}))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role_alias": "this field is required"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("retrieving a role", func(t *testing.T) {
		rec := do(http.MethodGet, basePath+"/"+moderatorID, nil)
		checkCode(t, rec, http.StatusOK)

		var info role.Info
		unmarchallObj(t, rec, &info)
		if info.ID != moderatorID || info.Alias != "Moderator" {
			t.Errorf("got %q (%s)", info.Alias, info.ID)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		rec := do(http.MethodGet, basePath+"/nope", nil)
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("renaming a role", func(t *testing.T) {
		rec := do(http.MethodPatch, basePath+"/"+moderatorID, marchallObj(t, map[string]string{"role_alias": "Mod"}))
		checkCode(t, rec, http.StatusOK)

		var info role.Info
		unmarchallObj(t, rec, &info)
		if info.Alias != "Mod" {
			t.Errorf("Alias = %q, want Mod", info.Alias)
		}
	})

	t.Run("renaming into an existing alias", func(t *testing.T) {
		rec := do(http.MethodPatch, basePath+"/"+moderatorID, marchallObj(t, map[string]string{"role_alias": "owner"}))
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role_alias": "a role with this alias already exists"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("deactivating a role", func(t *testing.T) {
		rec := do(http.MethodPatch, basePath+"/"+moderatorID, marchallObj(t, map[string]interface{}{"is_active": false}))
		checkCode(t, rec, http.StatusOK)

		var info role.Info
		unmarchallObj(t, rec, &info)
		if info.IsActive {
			t.Error("expected the role to be deactivated")
		}
	})
}
