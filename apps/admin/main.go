package main

import (
	"log"
	"os"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
	logsvc "github.com/darasahq/darasa/services/logger"
	"github.com/darasahq/darasa/storage/database"
	sqlxrepos "github.com/darasahq/darasa/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	tenantRepo := sqlxrepos.NewTenantRepository(db)
	roleRepo := sqlxrepos.NewRoleRepository(db)
	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db), appLogger)

	// start CLI
	cli := commandLine{
		db:        db,
		tenantSvc: tenant.NewService(tenantRepo),
		roleSvc:   role.NewService(core.NewTransactor(db), roleRepo, tenantRepo, auditSvc),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
