package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) initTemplates(tenantID, setName string) error {
	res, err := cli.roleSvc.InitTemplateSet(context.Background(), tenantID, setName, cliActor)
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	for _, r := range res.Roles {
		fmt.Printf("  slot %d: %s (%d permissions)\n", r.SlotPosition, r.Alias, r.PermissionCount)
	}
	return nil
}
