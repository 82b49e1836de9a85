package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
	testutil "github.com/darasahq/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	conf       *core.Config
	server     http.Handler
	db         *inmemdb.DB
	tenantRepo tenant.Repository
	roleRepo   role.Repository
	userRepo   user.Repository
	roleSvc    *role.Service
	userSvc    *user.Service
	auditSvc   *audit.Service
	templates  []role.Template
}

func setup(t *testing.T) *fixture {
	t.Helper()

	// set up DB & repos
	db := inmemdb.NewDB()
	templates := testutil.SeedGenericTemplates(db)
	tenantRepo := inmemdb.NewTenantRepository(db)
	roleRepo := inmemdb.NewRoleRepository(db)
	userRepo := inmemdb.NewUserRepository(db)
	txr := inmemdb.NewTransactor()

	// set up services
	conf := testutil.NewConfig()
	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db), testutil.Logger{})
	roleSvc := role.NewService(txr, roleRepo, tenantRepo, auditSvc)
	usrSvc := user.NewService(txr, userRepo, roleRepo, auditSvc, mailSvc, conf)

	// set up server
	validate, translator := testutil.NewValidator()
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     testutil.Logger{},
		RoleSvc:    roleSvc,
		UserSvc:    usrSvc,
		AuditSvc:   auditSvc,
		Validate:   validate,
		Translator: translator,
	})

	return &fixture{
		conf:       conf,
		server:     server,
		db:         db,
		tenantRepo: tenantRepo,
		roleRepo:   roleRepo,
		userRepo:   userRepo,
		roleSvc:    roleSvc,
		userSvc:    usrSvc,
		auditSvc:   auditSvc,
		templates:  templates,
	}
}

// getToken signs a token the way the identity provider would.
func (f *fixture) getToken(t *testing.T, actorID, tenantID string, perms ...string) string {
	t.Helper()
	token, err := echoapi.GenerateToken(f.conf, &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{Subject: actorID},
		TenantID:       tenantID,
		Permissions:    perms,
	})
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v; body: %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body: %s", rec.Code, wantCode, rec.Body.String())
	}
}
