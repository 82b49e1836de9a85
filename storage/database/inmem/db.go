// Package inmemdb provides map-backed repositories for tests and local
// hacking. Behavior mirrors the postgres repositories, including the
// uniqueness guarantees the DB constraints provide there.
package inmemdb

import (
	"context"
	"sync"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	"github.com/darasahq/darasa/core/user"
)

type DB struct {
	mutex sync.RWMutex

	tenants     map[string]*tenant.Tenant
	roles       map[string]*role.Role
	templates   map[string]*role.Template
	permissions map[string]*role.Permission
	users       map[string]*user.User
	assignments map[string]*user.Assignment
	audits      []*audit.Record
}

func NewDB() *DB {
	return &DB{
		tenants:     make(map[string]*tenant.Tenant),
		roles:       make(map[string]*role.Role),
		templates:   make(map[string]*role.Template),
		permissions: make(map[string]*role.Permission),
		users:       make(map[string]*user.User),
		assignments: make(map[string]*user.Assignment),
	}
}

// AddTemplate seeds a role template the way a migration would.
func (db *DB) AddTemplate(tpl role.Template) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.templates[tpl.ID] = &tpl
}

// AddPermission seeds a permission the way a migration would.
func (db *DB) AddPermission(p role.Permission) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.permissions[p.ID] = &p
}

type transactor struct{}

var _ core.Transactor = (*transactor)(nil)

// NewTransactor returns a pass-through Transactor; the map store has no
// transactions so the function runs against the repositories directly.
func NewTransactor() *transactor { return &transactor{} }

func (transactor) RunInTx(ctx context.Context, fn func(tx core.DBExecutor) error) error {
	return fn(nil)
}
