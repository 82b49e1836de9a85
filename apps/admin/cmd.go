package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
)

var errHelp = errors.New("help provided")

// cliActor identifies this CLI in audit records.
const cliActor = "admin-cli"

type commandLine struct {
	db        *sqlx.DB
	tenantSvc *tenant.Service
	roleSvc   *role.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (goose commands)")
	fmt.Println("  addtenant -name NAME [-slots N] [-noinit] - onboard a tenant")
	fmt.Println("  inittemplates -tenant ID [-set NAME] - initialize a tenant's roles from a template set")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTenantCmd := flag.NewFlagSet("addtenant", flag.ExitOnError)
	addTenantName := addTenantCmd.String("name", "", "The tenant's name.")
	addTenantSlots := addTenantCmd.Int("slots", 5, "The tenant's role slot limit.")
	addTenantNoInit := addTenantCmd.Bool("noinit", false, "Skip role template initialization.")

	initTemplatesCmd := flag.NewFlagSet("inittemplates", flag.ExitOnError)
	initTemplatesTenant := initTemplatesCmd.String("tenant", "", "The tenant's ID.")
	initTemplatesSet := initTemplatesCmd.String("set", role.DefaultTemplateSet, "The template set name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addtenant":
		if err := addTenantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTenantName == "" {
			addTenantCmd.Usage()
			return errHelp
		}
		return cli.addTenant(*addTenantName, *addTenantSlots, !*addTenantNoInit)
	case "inittemplates":
		if err := initTemplatesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *initTemplatesTenant == "" {
			initTemplatesCmd.Usage()
			return errHelp
		}
		return cli.initTemplates(*initTemplatesTenant, *initTemplatesSet)
	default:
		cli.printUsage()
		return errHelp
	}
}
