package main

import (
	"context"

	"github.com/trezcool/learnsmart/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	return cli.usrSvc.SetPassword(ctx, usr, pwd)
}
