package main

import (
	"context"
	"fmt"

	"github.com/darasahq/darasa/core/role"
	"github.com/darasahq/darasa/core/tenant"
)

// addTenant onboards a tenant and, unless told otherwise, bootstraps its
// roles from the default template set.
func (cli *commandLine) addTenant(name string, maxRoleSlots int, initTemplates bool) error {
	ctx := context.Background()

	ten, err := cli.tenantSvc.Create(ctx, tenant.NewTenant{Name: name, MaxRoleSlots: maxRoleSlots})
	if err != nil {
		return err
	}
	fmt.Printf("tenant %q created: %s\n", ten.Name, ten.ID)

	if initTemplates {
		return cli.initTemplates(ten.ID, role.DefaultTemplateSet)
	}
	return nil
}
